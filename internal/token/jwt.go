package token

import (
	"context"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"

	// Tolerancia de clock-skew al validar exp/nbf.
	leeway = 30 * time.Second
)

// JWT implementa Service firmando con HMAC-SHA256 y un secreto compartido.
// El tipo de token viaja en la claim "token_type" para que un access token
// nunca pase por refresh token (ni al revés).
type JWT struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWT crea el servicio. Exige accessTTL < refreshTTL.
func NewJWT(secret, issuer string, accessTTL, refreshTTL time.Duration) (*JWT, error) {
	if secret == "" {
		return nil, fmt.Errorf("token: empty signing secret")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token: non-positive ttl")
	}
	if accessTTL >= refreshTTL {
		return nil, fmt.Errorf("token: access ttl (%s) must be shorter than refresh ttl (%s)", accessTTL, refreshTTL)
	}
	return &JWT{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

func (s *JWT) sign(subject, tokenType string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwtv5.MapClaims{
		"iss":        s.issuer,
		"sub":        subject,
		"iat":        now.Unix(),
		"nbf":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		"jti":        uuid.NewString(),
		"token_type": tokenType,
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	return tk.SignedString(s.secret)
}

func (s *JWT) Issue(ctx context.Context, subject string) (TokenPair, error) {
	if subject == "" {
		return TokenPair{}, fmt.Errorf("token: empty subject")
	}
	now := time.Now().UTC()
	access, err := s.sign(subject, typeAccess, s.accessTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(subject, typeRefresh, s.refreshTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// parse valida firma, exp/nbf (con leeway), iss y token_type.
func (s *JWT) parse(raw, wantType string) (*Claims, error) {
	tok, err := jwtv5.Parse(raw,
		func(t *jwtv5.Token) (any, error) { return s.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithLeeway(leeway),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" {
		if iss, _ := claims["iss"].(string); iss != s.issuer {
			return nil, ErrInvalidToken
		}
	}
	if tt, _ := claims["token_type"].(string); tt != wantType {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	out := &Claims{Subject: sub}
	if expf, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(expf), 0)
	}
	if iatf, ok := claims["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(iatf), 0)
	}
	return out, nil
}

func (s *JWT) Validate(ctx context.Context, accessToken string) (*Claims, error) {
	return s.parse(accessToken, typeAccess)
}

func (s *JWT) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.parse(refreshToken, typeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return s.Issue(ctx, claims.Subject)
}
