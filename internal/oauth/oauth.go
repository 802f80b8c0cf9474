// Package oauth implements the identity-provider bridge: building
// authorization URLs, exchanging authorization codes, refreshing provider
// tokens and normalizing provider profiles into one canonical shape.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider identifies a supported OAuth2 provider.
type Provider string

const (
	Google    Provider = "google"
	GitHub    Provider = "github"
	Discord   Provider = "discord"
	Microsoft Provider = "microsoft"
)

// ParseProvider validates a provider name coming from config or requests.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case Google, GitHub, Discord, Microsoft:
		return Provider(s), nil
	}
	return "", fmt.Errorf("%w: unknown provider %q", ErrConfig, s)
}

// Failure points of the delegated flow, surfaced separately so callers can
// tell "provider rejected the code" from "profile endpoint unreachable".
var (
	ErrConfig          = errors.New("oauth: provider not configured")
	ErrTokenExchange   = errors.New("oauth: token exchange failed")
	ErrUserInfo        = errors.New("oauth: user info request failed")
	ErrInvalidResponse = errors.New("oauth: invalid provider response")
	ErrNetwork         = errors.New("oauth: network error")
)

// Token is a provider-issued token set.
type Token struct {
	Provider     Provider   `json:"provider"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Profile is the provider-agnostic shape every raw provider response is
// mapped into before identity resolution. SubjectID is mandatory; every
// other field is provider-dependent and may be empty.
type Profile struct {
	Provider      Provider
	SubjectID     string
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
	Locale        string
	SyncedAt      time.Time
	Raw           map[string]any
}

// Config holds per-provider deployment settings.
type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string // backend callback
	FrontendRedirectURI string // where to send the browser after the flow
	AdditionalScopes    []string
	UserAgent           string // some providers (GitHub) require one
}

// Service is the bridge contract consumed by the orchestrator.
type Service interface {
	// AuthURL builds the provider authorization URL. Scopes are the union
	// of provider defaults, deployment config and extraScopes (set
	// semantics, order unspecified).
	AuthURL(ctx context.Context, provider Provider, state string, extraScopes []string) (string, error)

	// Exchange redeems an authorization code for a provider token.
	Exchange(ctx context.Context, provider Provider, code, state string) (*Token, error)

	// FetchProfile fetches and normalizes the provider profile.
	FetchProfile(ctx context.Context, tok *Token) (*Profile, error)

	// Refresh obtains a fresh provider token. Fails with ErrTokenExchange
	// when no refresh capability was granted.
	Refresh(ctx context.Context, tok *Token) (*Token, error)

	// FrontendRedirectURI returns the configured frontend redirect for the
	// provider.
	FrontendRedirectURI(provider Provider) (string, error)
}
