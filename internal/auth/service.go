// Package auth is the orchestration core: it composes the credential
// verifier, the token lifecycle, the provider bridge and the user store into
// login, signup, link-account, unlink-account and token-introspect, and owns
// the identity-resolution algorithm and the failure taxonomy.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/gatehouse/internal/domain/repository"
	"github.com/dropDatabas3/gatehouse/internal/metrics"
	"github.com/dropDatabas3/gatehouse/internal/oauth"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	"github.com/dropDatabas3/gatehouse/internal/token"
)

// resolveAttempts bounds the re-resolution loop after an insert/update
// conflict. Two passes are enough: the conflicting row exists by the time we
// retry the lookup.
const resolveAttempts = 2

// Service is the orchestrator. Collaborators are injected once at
// construction and never mutated afterwards; the user store is the only
// shared mutable state, and no store lock is held across the network-bound
// steps (hashing aside, every step is a plain sequential call).
type Service struct {
	repo      repository.UserRepository
	hasher    password.Hasher
	policy    password.Policy
	tokens    token.Service
	providers oauth.Service
	log       *zap.Logger
}

// New builds a Service. All collaborators are required except policy, whose
// zero value accepts any non-empty password.
func New(repo repository.UserRepository, hasher password.Hasher, policy password.Policy, tokens token.Service, providers oauth.Service) (*Service, error) {
	if repo == nil || hasher == nil || tokens == nil || providers == nil {
		return nil, fmt.Errorf("auth: nil collaborator")
	}
	return &Service{
		repo:      repo,
		hasher:    hasher,
		policy:    policy,
		tokens:    tokens,
		providers: providers,
		log:       logger.Named("auth"),
	}, nil
}

// Result is what every authentication operation produces: exactly one user
// and one token pair.
type Result struct {
	User   *repository.User
	Tokens token.TokenPair
}

// SignupCredentials creates a new local-credential user. Identifier
// uniqueness is the store's contract; a conflict surfaces as ErrSignup.
func (s *Service) SignupCredentials(ctx context.Context, identifier, plain string) (*Result, error) {
	if identifier == "" {
		metrics.SignupTotal.WithLabelValues("credentials", "error").Inc()
		return nil, fmt.Errorf("%w: empty identifier", ErrSignup)
	}
	if err := s.policy.Validate(plain); err != nil {
		metrics.SignupTotal.WithLabelValues("credentials", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSignup, err)
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		metrics.SignupTotal.WithLabelValues("credentials", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSignup, err)
	}

	now := time.Now().UTC()
	u := &repository.User{
		ID:          uuid.NewString(),
		Credentials: &repository.Credentials{Identifier: identifier, PasswordHash: hash},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		metrics.SignupTotal.WithLabelValues("credentials", "conflict").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSignup, err)
	}

	pair, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	metrics.SignupTotal.WithLabelValues("credentials", "ok").Inc()
	s.log.Info("user signed up", logger.Operation("signup"), logger.UserID(u.ID))
	return &Result{User: u, Tokens: pair}, nil
}

// LoginCredentials authenticates a local-credential user. An unknown
// identifier and a wrong password both fail with ErrInvalidCredentials.
func (s *Service) LoginCredentials(ctx context.Context, identifier, plain string) (*Result, error) {
	u, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsNotFound(err) {
			metrics.LoginTotal.WithLabelValues("credentials", "denied").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Credentials == nil || !s.hasher.Verify(plain, u.Credentials.PasswordHash) {
		metrics.LoginTotal.WithLabelValues("credentials", "denied").Inc()
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	metrics.LoginTotal.WithLabelValues("credentials", "ok").Inc()
	s.log.Info("user logged in", logger.Operation("login"), logger.UserID(u.ID))
	return &Result{User: u, Tokens: pair}, nil
}

// LoginOAuth redeems an authorization grant and resolves it to exactly one
// user, creating one when the identity was never seen before (OAuth2 is
// self-registering). Signup over OAuth2 is the same operation.
func (s *Service) LoginOAuth(ctx context.Context, provider oauth.Provider, code, state string) (*Result, error) {
	started := time.Now()
	tok, err := s.providers.Exchange(ctx, provider, code, state)
	metrics.OAuthExchangeLatency.WithLabelValues(string(provider)).Observe(float64(time.Since(started).Milliseconds()))
	if err != nil {
		metrics.LoginTotal.WithLabelValues("oauth2", "error").Inc()
		return nil, err
	}
	profile, err := s.providers.FetchProfile(ctx, tok)
	if err != nil {
		metrics.LoginTotal.WithLabelValues("oauth2", "error").Inc()
		return nil, err
	}

	u, err := s.resolve(ctx, profile)
	if err != nil {
		metrics.LoginTotal.WithLabelValues("oauth2", "error").Inc()
		return nil, err
	}

	pair, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	metrics.LoginTotal.WithLabelValues("oauth2", "ok").Inc()
	s.log.Info("user logged in",
		logger.Operation("login"),
		logger.ProviderField(string(provider)),
		logger.UserID(u.ID))
	return &Result{User: u, Tokens: pair}, nil
}

// SignupOAuth is LoginOAuth under another name: the resolution algorithm is
// shared and already creates the user when nothing matches.
func (s *Service) SignupOAuth(ctx context.Context, provider oauth.Provider, code, state string) (*Result, error) {
	res, err := s.LoginOAuth(ctx, provider, code, state)
	if err != nil {
		metrics.SignupTotal.WithLabelValues("oauth2", "error").Inc()
		return nil, err
	}
	metrics.SignupTotal.WithLabelValues("oauth2", "ok").Inc()
	return res, nil
}

// resolve walks the strategy list in order and persists the outcome. A
// conflict on persist means another request won the race for the same
// identity between our lookup and our write, so the lookup is retried
// instead of creating a duplicate.
func (s *Service) resolve(ctx context.Context, p *oauth.Profile) (*repository.User, error) {
	var lastErr error
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		u, err := s.resolveOnce(ctx, p)
		if err == nil {
			return u, nil
		}
		if !repository.IsConflict(err) {
			return nil, err
		}
		lastErr = err
		s.log.Debug("conflict during identity resolution, retrying lookup",
			logger.ProviderField(string(p.Provider)))
	}
	return nil, fmt.Errorf("%w: %v", ErrSignup, lastErr)
}

func (s *Service) resolveOnce(ctx context.Context, p *oauth.Profile) (*repository.User, error) {
	for _, strategy := range resolveOrder {
		u, err := strategy(ctx, s.repo, p)
		if err != nil {
			return nil, err
		}
		if u == nil {
			continue
		}
		// Reuse the matched user and refresh the link in place so
		// email, name and avatar track the provider on every login.
		u.LinkAccount(linkFromProfile(p))
		u.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}

	u := newUserFromProfile(p)
	if err := s.repo.Insert(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user created from provider profile",
		logger.Operation("signup"),
		logger.ProviderField(string(p.Provider)),
		logger.UserID(u.ID))
	return u, nil
}

// LinkAccount attaches (or replaces) the provider link on an explicit user.
// Unlike the login path there is no resolution ambiguity and no cross-user
// pre-check: the caller already named the target.
func (s *Service) LinkAccount(ctx context.Context, userID string, provider oauth.Provider, code, state string) (*repository.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	tok, err := s.providers.Exchange(ctx, provider, code, state)
	if err != nil {
		return nil, err
	}
	profile, err := s.providers.FetchProfile(ctx, tok)
	if err != nil {
		return nil, err
	}

	u.LinkAccount(linkFromProfile(profile))
	u.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("account linked",
		logger.Operation("link-account"),
		logger.ProviderField(string(provider)),
		logger.UserID(u.ID))
	return u, nil
}

// UnlinkAccount removes the provider link if present. Removing an absent
// link is not an error; the unchanged user is returned.
func (s *Service) UnlinkAccount(ctx context.Context, userID string, provider oauth.Provider) (*repository.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if _, linked := u.Accounts[string(provider)]; !linked {
		return u, nil
	}

	u.UnlinkAccount(string(provider))
	u.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("account unlinked",
		logger.Operation("unlink-account"),
		logger.ProviderField(string(provider)),
		logger.UserID(u.ID))
	return u, nil
}

// UserFromToken validates an access token and loads its user. A valid token
// whose subject no longer exists fails with ErrUserNotFound.
func (s *Service) UserFromToken(ctx context.Context, accessToken string) (*repository.User, error) {
	claims, err := s.tokens.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UserIDFromToken validates an access token and returns its subject without
// touching the store.
func (s *Service) UserIDFromToken(ctx context.Context, accessToken string) (string, error) {
	claims, err := s.tokens.Validate(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// IsTokenExpired reports true for any validation failure, not only expiry.
// Callers that need to tell expired from malformed use ValidateAccessToken.
func (s *Service) IsTokenExpired(ctx context.Context, accessToken string) bool {
	_, err := s.tokens.Validate(ctx, accessToken)
	return err != nil
}

// Tokens issues a fresh pair for an existing user.
func (s *Service) Tokens(ctx context.Context, userID string) (token.TokenPair, error) {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return token.TokenPair{}, ErrUserNotFound
		}
		return token.TokenPair{}, err
	}
	return s.tokens.Issue(ctx, userID)
}

// ValidateAccessToken is the validate passthrough.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (*token.Claims, error) {
	return s.tokens.Validate(ctx, accessToken)
}

// RefreshAccessToken rotates a token pair from a refresh token.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (token.TokenPair, error) {
	pair, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("denied").Inc()
		return token.TokenPair{}, err
	}
	metrics.TokenRefreshTotal.WithLabelValues("ok").Inc()
	return pair, nil
}

// AuthURL is the provider-bridge passthrough for building the authorization
// endpoint.
func (s *Service) AuthURL(ctx context.Context, provider oauth.Provider, state string, extraScopes []string) (string, error) {
	return s.providers.AuthURL(ctx, provider, state, extraScopes)
}

// FrontendRedirectURI returns where to send the browser after the provider
// flow completes.
func (s *Service) FrontendRedirectURI(provider oauth.Provider) (string, error) {
	return s.providers.FrontendRedirectURI(provider)
}

// RefreshProviderToken rotates a provider-issued token.
func (s *Service) RefreshProviderToken(ctx context.Context, tok *oauth.Token) (*oauth.Token, error) {
	return s.providers.Refresh(ctx, tok)
}

// LinkedProviders lists the providers linked to a user.
func (s *Service) LinkedProviders(ctx context.Context, userID string) ([]string, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u.Providers(), nil
}
