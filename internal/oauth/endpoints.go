package oauth

// Provider endpoints and default scopes. Kept as data so the manager logic
// stays provider-agnostic; only profile normalization switches on provider.

type endpoints struct {
	auth     string
	token    string
	userInfo string
}

var providerEndpoints = map[Provider]endpoints{
	Google: {
		auth:     "https://accounts.google.com/o/oauth2/v2/auth",
		token:    "https://oauth2.googleapis.com/token",
		userInfo: "https://www.googleapis.com/oauth2/v2/userinfo",
	},
	GitHub: {
		auth:     "https://github.com/login/oauth/authorize",
		token:    "https://github.com/login/oauth/access_token",
		userInfo: "https://api.github.com/user",
	},
	Discord: {
		auth:     "https://discord.com/api/oauth2/authorize",
		token:    "https://discord.com/api/oauth2/token",
		userInfo: "https://discord.com/api/users/@me",
	},
	Microsoft: {
		auth:     "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		token:    "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		userInfo: "https://graph.microsoft.com/v1.0/me",
	},
}

var defaultScopes = map[Provider][]string{
	Google:    {"openid", "email", "profile"},
	GitHub:    {"user:email", "read:user"},
	Discord:   {"identify", "email"},
	Microsoft: {"openid", "email", "profile", "User.Read"},
}
