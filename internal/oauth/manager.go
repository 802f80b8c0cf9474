package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
)

// Manager implements Service for the supported providers over plain HTTP.
// One instance is built at startup and shared read-only afterwards.
type Manager struct {
	configs map[Provider]Config
	states  *StateStore // optional; nil = host application manages state
	http    *http.Client
	log     *zap.Logger

	// sf collapses concurrent identical profile fetches.
	sf singleflight.Group

	// endpoints is swappable in tests (httptest servers).
	endpoints map[Provider]endpoints
}

// NewManager creates a Manager with the given provider configs.
// states may be nil when the hosting application does its own CSRF checks.
func NewManager(configs map[Provider]Config, states *StateStore) *Manager {
	return &Manager{
		configs:   configs,
		states:    states,
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       logger.Named("oauth"),
		endpoints: providerEndpoints,
	}
}

// States exposes the state store (nil when not configured).
func (m *Manager) States() *StateStore { return m.states }

// Providers lists the configured providers.
func (m *Manager) Providers() []Provider {
	out := make([]Provider, 0, len(m.configs))
	for p := range m.configs {
		out = append(out, p)
	}
	return out
}

func (m *Manager) config(provider Provider) (Config, endpoints, error) {
	cfg, ok := m.configs[provider]
	if !ok {
		return Config{}, endpoints{}, fmt.Errorf("%w: %s", ErrConfig, provider)
	}
	ep, ok := m.endpoints[provider]
	if !ok {
		return Config{}, endpoints{}, fmt.Errorf("%w: no endpoints for %s", ErrConfig, provider)
	}
	return cfg, ep, nil
}

func (m *Manager) AuthURL(ctx context.Context, provider Provider, state string, extraScopes []string) (string, error) {
	cfg, ep, err := m.config(provider)
	if err != nil {
		return "", err
	}
	scopes := mergeScopes(provider, cfg.AdditionalScopes, extraScopes)

	u, err := url.Parse(ep.auth)
	if err != nil {
		return "", fmt.Errorf("%w: bad auth endpoint: %v", ErrConfig, err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", cfg.RedirectURI)
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("state", state)
	if provider == Google {
		// Ask for a refresh token and incremental consent.
		q.Set("access_type", "offline")
		q.Set("include_granted_scopes", "true")
	}
	u.RawQuery = q.Encode()

	m.log.Debug("built auth url", zap.String("provider", string(provider)), zap.Strings("scopes", scopes))
	return u.String(), nil
}

// tokenResponse covers every supported provider's token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

func (m *Manager) postTokenEndpoint(ctx context.Context, provider Provider, form url.Values) (*Token, error) {
	cfg, ep, err := m.config(provider)
	if err != nil {
		return nil, err
	}
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.token, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: token endpoint: %v", ErrInvalidResponse, err)
	}
	if resp.StatusCode/100 != 2 || tr.Error != "" {
		return nil, fmt.Errorf("%w: http %d: %s %s", ErrTokenExchange, resp.StatusCode, tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", ErrTokenExchange)
	}

	now := time.Now().UTC()
	tok := &Token{
		Provider:     provider,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		CreatedAt:    now,
	}
	if tr.ExpiresIn > 0 {
		exp := now.Add(time.Duration(tr.ExpiresIn) * time.Second)
		tok.ExpiresAt = &exp
	}
	return tok, nil
}

func (m *Manager) Exchange(ctx context.Context, provider Provider, code, state string) (*Token, error) {
	if m.states != nil {
		if err := m.states.Consume(ctx, provider, state); err != nil {
			return nil, err
		}
	}
	cfg, _, err := m.config(provider)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", cfg.RedirectURI)

	tok, err := m.postTokenEndpoint(ctx, provider, form)
	if err != nil {
		m.log.Debug("code exchange failed", zap.String("provider", string(provider)), zap.Error(err))
		return nil, err
	}
	m.log.Info("code exchange ok", zap.String("provider", string(provider)))
	return tok, nil
}

func (m *Manager) Refresh(ctx context.Context, tok *Token) (*Token, error) {
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token granted", ErrTokenExchange)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tok.RefreshToken)

	next, err := m.postTokenEndpoint(ctx, tok.Provider, form)
	if err != nil {
		return nil, err
	}
	// Providers may omit the refresh token on rotation; keep the old one.
	if next.RefreshToken == "" {
		next.RefreshToken = tok.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = tok.Scope
	}
	return next, nil
}

func (m *Manager) FetchProfile(ctx context.Context, tok *Token) (*Profile, error) {
	key := string(tok.Provider) + "\x00" + tok.AccessToken
	v, err, _ := m.sf.Do(key, func() (any, error) {
		return m.fetchProfile(ctx, tok)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile), nil
}

func (m *Manager) fetchProfile(ctx context.Context, tok *Token) (*Profile, error) {
	cfg, ep, err := m.config(tok.Provider)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.userInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: http %d", ErrUserInfo, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	prof, err := normalize(tok.Provider, raw)
	if err != nil {
		return nil, err
	}
	m.log.Debug("profile fetched",
		zap.String("provider", string(tok.Provider)),
		zap.String("subject", prof.SubjectID))
	return prof, nil
}

func (m *Manager) FrontendRedirectURI(provider Provider) (string, error) {
	cfg, _, err := m.config(provider)
	if err != nil {
		return "", err
	}
	return cfg.FrontendRedirectURI, nil
}

// normalize maps a raw provider response into the canonical Profile.
// The subject id is mandatory everywhere; the rest varies per provider.
func normalize(provider Provider, raw map[string]any) (*Profile, error) {
	p := &Profile{Provider: provider, SyncedAt: time.Now().UTC(), Raw: raw}

	switch provider {
	case Google:
		p.SubjectID = strField(raw, "id")
		p.Email = strField(raw, "email")
		p.Name = strField(raw, "name")
		p.AvatarURL = strField(raw, "picture")
		p.EmailVerified = boolField(raw, "verified_email")
		p.Locale = strField(raw, "locale")

	case GitHub:
		// GitHub returns a numeric id, and the public email may be empty.
		if n, ok := raw["id"].(float64); ok {
			p.SubjectID = strconv.FormatInt(int64(n), 10)
		}
		p.Name = strField(raw, "name")
		p.AvatarURL = strField(raw, "avatar_url")
		p.Email = strField(raw, "email")

	case Discord:
		p.SubjectID = strField(raw, "id")
		p.Email = strField(raw, "email")
		p.Name = strField(raw, "username")
		if hash := strField(raw, "avatar"); hash != "" && p.SubjectID != "" {
			p.AvatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", p.SubjectID, hash)
		}
		p.EmailVerified = boolField(raw, "verified")
		p.Locale = strField(raw, "locale")

	case Microsoft:
		p.SubjectID = strField(raw, "id")
		p.Email = strField(raw, "mail")
		if p.Email == "" {
			p.Email = strField(raw, "userPrincipalName")
		}
		p.Name = strField(raw, "displayName")
		// Microsoft Graph has no avatar URL nor verified flag in /me.

	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfig, provider)
	}

	if p.SubjectID == "" {
		return nil, fmt.Errorf("%w: missing subject id", ErrInvalidResponse)
	}
	return p, nil
}

func strField(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func boolField(m map[string]any, k string) bool {
	b, _ := m[k].(bool)
	return b
}
