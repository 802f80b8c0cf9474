package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/cache"
)

// StateStore issues and consumes one-shot CSRF states for the
// authorization-code flow. States are random, provider-bound and expire.
type StateStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewStateStore builds a store on top of the shared cache.
func NewStateStore(c cache.Cache, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{cache: c, ttl: ttl}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// New issues a fresh state bound to the provider.
func (s *StateStore) New(ctx context.Context, provider Provider) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, "oauth:state:"+state, []byte(provider), s.ttl); err != nil {
		return "", err
	}
	return state, nil
}

// Consume validates and burns a state. A state is valid exactly once and
// only for the provider it was issued for.
func (s *StateStore) Consume(ctx context.Context, provider Provider, state string) error {
	if state == "" {
		return fmt.Errorf("%w: empty state", ErrTokenExchange)
	}
	v, err := s.cache.Take(ctx, "oauth:state:"+state)
	if err != nil {
		if cache.IsNotFound(err) {
			return fmt.Errorf("%w: unknown or expired state", ErrTokenExchange)
		}
		return err
	}
	if Provider(v) != provider {
		return fmt.Errorf("%w: state issued for another provider", ErrTokenExchange)
	}
	return nil
}
