package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/gatehouse/internal/domain/repository"
	"github.com/dropDatabas3/gatehouse/internal/oauth"
)

// resolveStrategy tries to find the user a normalized profile belongs to.
// It either produces a target user or falls through (nil, nil). The order
// the strategies run in is the identity-resolution contract: an exact
// (provider, subject-id) match must win over an email match, so that an
// already-linked account is never re-merged into a different user when the
// email changes upstream.
type resolveStrategy func(ctx context.Context, repo repository.UserRepository, p *oauth.Profile) (*repository.User, error)

func byProviderSubject(ctx context.Context, repo repository.UserRepository, p *oauth.Profile) (*repository.User, error) {
	u, err := repo.GetByExternalAccount(ctx, string(p.Provider), p.SubjectID)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	return u, err
}

// byEmailIdentifier bridges an OAuth2 identity into a pre-existing local
// account. Exact string equality only, attempted once, never fuzzy.
func byEmailIdentifier(ctx context.Context, repo repository.UserRepository, p *oauth.Profile) (*repository.User, error) {
	if p.Email == "" {
		return nil, nil
	}
	u, err := repo.GetByIdentifier(ctx, p.Email)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	return u, err
}

var resolveOrder = []resolveStrategy{byProviderSubject, byEmailIdentifier}

// linkFromProfile turns a normalized profile into the link to persist.
func linkFromProfile(p *oauth.Profile) repository.ExternalAccount {
	synced := p.SyncedAt
	if synced.IsZero() {
		synced = time.Now().UTC()
	}
	return repository.ExternalAccount{
		Provider:      string(p.Provider),
		SubjectID:     p.SubjectID,
		Email:         p.Email,
		Name:          p.Name,
		AvatarURL:     p.AvatarURL,
		EmailVerified: p.EmailVerified,
		Locale:        p.Locale,
		SyncedAt:      synced,
		Raw:           p.Raw,
	}
}

func newUserFromProfile(p *oauth.Profile) *repository.User {
	now := time.Now().UTC()
	u := &repository.User{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	u.LinkAccount(linkFromProfile(p))
	return u
}
