package httpapi

import (
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain/repository"
	"github.com/dropDatabas3/gatehouse/internal/token"
)

type credentialsRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type accountDTO struct {
	Provider      string    `json:"provider"`
	SubjectID     string    `json:"subject_id"`
	Email         string    `json:"email,omitempty"`
	Name          string    `json:"name,omitempty"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	Locale        string    `json:"locale,omitempty"`
	SyncedAt      time.Time `json:"synced_at"`
}

// userDTO is the caller-facing shape of a user. The password hash never
// leaves the process.
type userDTO struct {
	ID         string       `json:"id"`
	Identifier string       `json:"identifier,omitempty"`
	Accounts   []accountDTO `json:"accounts"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type sessionResponse struct {
	User   userDTO         `json:"user"`
	Tokens token.TokenPair `json:"tokens"`
}

type introspectResponse struct {
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
}

func toUserDTO(u *repository.User) userDTO {
	dto := userDTO{
		ID:         u.ID,
		Identifier: u.Identifier(),
		Accounts:   make([]accountDTO, 0, len(u.Accounts)),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	for _, acc := range u.Accounts {
		dto.Accounts = append(dto.Accounts, accountDTO{
			Provider:      acc.Provider,
			SubjectID:     acc.SubjectID,
			Email:         acc.Email,
			Name:          acc.Name,
			AvatarURL:     acc.AvatarURL,
			EmailVerified: acc.EmailVerified,
			Locale:        acc.Locale,
			SyncedAt:      acc.SyncedAt,
		})
	}
	return dto
}
