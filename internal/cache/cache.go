// Package cache provee un cache chico multi-backend (memoria o Redis).
// Se usa para estados CSRF de OAuth2 y otros valores efímeros.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indica que la key no existe o expiró.
var ErrNotFound = errors.New("cache: key not found")

// Cache define las operaciones que necesita el core.
type Cache interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set guarda un valor con TTL. ttl == 0 significa sin expiración.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Take obtiene y elimina atómicamente (consumo one-shot).
	// Retorna ErrNotFound si no existe.
	Take(ctx context.Context, key string) ([]byte, error)

	// Delete elimina una key. No es error si no existe.
	Delete(ctx context.Context, key string) error

	// Close libera recursos del backend.
	Close() error
}

// Config selecciona e inicializa un backend.
type Config struct {
	Kind   string // "memory" | "redis"
	Prefix string

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Memory struct {
		DefaultTTL time.Duration
	}
}

// New crea un Cache según la configuración.
func New(cfg Config) (Cache, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.Memory.DefaultTTL), nil
	default:
		return nil, fmt.Errorf("cache: unsupported kind %q", cfg.Kind)
	}
}

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
