package repository

import (
	"context"
	"time"
)

// User representa el principal autenticado del sistema.
// Invariante: después de una creación exitosa, un User tiene credenciales
// locales, al menos una cuenta externa vinculada, o ambas; nunca ninguna.
type User struct {
	ID          string
	Credentials *Credentials
	// Accounts mapea provider → cuenta externa vinculada.
	// Cada provider aparece como máximo una vez.
	Accounts  map[string]ExternalAccount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credentials son las credenciales locales de un usuario.
// PasswordHash es opaco para el resto del sistema (PHC string).
type Credentials struct {
	Identifier   string
	PasswordHash string
}

// ExternalAccount vincula una identidad de un provider OAuth2 a un User.
// El par (Provider, SubjectID) es único entre todos los usuarios.
type ExternalAccount struct {
	Provider      string // "google", "github", "discord", "microsoft"
	SubjectID     string // ID del usuario en el provider
	Email         string // puede ser vacío (provider-dependiente)
	Name          string
	AvatarURL     string
	EmailVerified bool
	Locale        string
	SyncedAt      time.Time
	Raw           map[string]any
}

// Identifier devuelve el identificador local, o "" si el usuario no tiene
// credenciales.
func (u *User) Identifier() string {
	if u.Credentials == nil {
		return ""
	}
	return u.Credentials.Identifier
}

// LinkAccount agrega o reemplaza la cuenta externa del provider de acc.
func (u *User) LinkAccount(acc ExternalAccount) {
	if u.Accounts == nil {
		u.Accounts = make(map[string]ExternalAccount, 1)
	}
	u.Accounts[acc.Provider] = acc
}

// UnlinkAccount elimina la cuenta externa del provider. Idempotente.
func (u *User) UnlinkAccount(provider string) {
	delete(u.Accounts, provider)
}

// Providers lista los providers vinculados (orden no determinístico).
func (u *User) Providers() []string {
	out := make([]string, 0, len(u.Accounts))
	for p := range u.Accounts {
		out = append(out, p)
	}
	return out
}

// Clone devuelve una copia profunda. Los stores en memoria la usan para no
// compartir punteros con el caller.
func (u *User) Clone() *User {
	cp := *u
	if u.Credentials != nil {
		c := *u.Credentials
		cp.Credentials = &c
	}
	if u.Accounts != nil {
		cp.Accounts = make(map[string]ExternalAccount, len(u.Accounts))
		for k, v := range u.Accounts {
			if v.Raw != nil {
				raw := make(map[string]any, len(v.Raw))
				for rk, rv := range v.Raw {
					raw[rk] = rv
				}
				v.Raw = raw
			}
			cp.Accounts[k] = v
		}
	}
	return &cp
}

// UserRepository define la persistencia de usuarios.
//
// Invariantes que toda implementación debe garantizar, incluso bajo
// escrituras concurrentes:
//   - Credentials.Identifier es único entre todos los usuarios.
//   - (Provider, SubjectID) es único entre todos los usuarios.
//
// Dos Insert concurrentes con el mismo identifier dejan exactamente un
// ganador; el perdedor recibe ErrConflict.
type UserRepository interface {
	// Insert crea un usuario nuevo.
	// Retorna ErrConflict si el identifier o alguna cuenta externa ya existe.
	Insert(ctx context.Context, u *User) error

	// GetByID busca por ID interno. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByIdentifier busca por identificador local (igualdad exacta).
	// Retorna ErrNotFound si no existe.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	// GetByExternalAccount busca por (provider, subjectID).
	// Retorna ErrNotFound si no existe.
	GetByExternalAccount(ctx context.Context, provider, subjectID string) (*User, error)

	// Update reemplaza el estado del usuario.
	// Retorna ErrNotFound si el ID no existe, ErrConflict si la escritura
	// violaría unicidad de identifier o de (provider, subjectID).
	Update(ctx context.Context, u *User) error
}
