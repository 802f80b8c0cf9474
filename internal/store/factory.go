// Package store selecciona la implementación de UserRepository según config.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/gatehouse/internal/domain/repository"
	"github.com/dropDatabas3/gatehouse/internal/store/memory"
	"github.com/dropDatabas3/gatehouse/internal/store/pg"
)

// Config describe el backend de usuarios.
type Config struct {
	Driver   string // "memory" | "postgres"
	DSN      string
	Postgres struct {
		MaxConns        int
		ConnMaxLifetime string
	}
}

// Open crea el repositorio según el driver.
func Open(ctx context.Context, cfg Config) (repository.UserRepository, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory", "":
		return memory.New(), nil
	case "postgres", "pg", "postgresql":
		return pg.New(ctx, cfg.DSN, pg.Options{
			MaxConns:        cfg.Postgres.MaxConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
