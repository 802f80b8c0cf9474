// Package token define el contrato de ciclo de vida de tokens propios
// (access + refresh) y su implementación JWT por defecto.
package token

import (
	"context"
	"errors"
	"time"
)

// TokenPair es el par access/refresh emitido en cada autenticación exitosa.
// Ambos strings son opacos para el caller y validables de forma independiente.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims es el contenido decodificado y verificado de un token.
// Nunca se construye a mano: sólo sale de Service.Validate.
type Claims struct {
	Subject   string    // ID interno del usuario
	ExpiresAt time.Time // instante de expiración
	IssuedAt  time.Time
}

// ErrInvalidToken indica que un token falló la validación: expirado,
// malformado, firma inválida o tipo incorrecto (access donde va refresh).
var ErrInvalidToken = errors.New("invalid token")

// Service emite, valida y rota tokens para un subject.
//
// Garantías del contrato:
//   - access y refresh se validan de forma independiente
//   - access TTL < refresh TTL
//   - Refresh rechaza tokens que son access tokens o que expiraron
//   - Issue no requiere estado server-side
type Service interface {
	// Issue emite un par nuevo para el subject dado.
	Issue(ctx context.Context, subject string) (TokenPair, error)

	// Validate valida un access token y devuelve sus claims.
	// Retorna ErrInvalidToken si falla.
	Validate(ctx context.Context, accessToken string) (*Claims, error)

	// Refresh emite un par nuevo a partir de un refresh token válido.
	// Retorna ErrInvalidToken si el token no es un refresh token vigente.
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}
