// Package pg implementa UserRepository sobre Postgres con pgx.
// La unicidad de identifier y de (provider, subject_id) la garantizan los
// unique constraints del schema (ver migrations/); un 23505 se traduce a
// repository.ErrConflict.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/gatehouse/internal/domain/repository"
)

// Options de conexión.
type Options struct {
	MaxConns        int
	ConnMaxLifetime string // duración parseable, ej "30m"
}

// Repo implementa repository.UserRepository.
type Repo struct {
	pool *pgxpool.Pool
}

// New abre el pool y verifica la conexión.
func New(ctx context.Context, dsn string, opts Options) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.ConnMaxLifetime != "" {
		d, err := time.ParseDuration(opts.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("pg: conn_max_lifetime: %w", err)
		}
		cfg.MaxConnLifetime = d
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close cierra el pool.
func (r *Repo) Close() { r.pool.Close() }

// mapErr traduce errores de pgx a los del contrato.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func (r *Repo) Insert(ctx context.Context, u *repository.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO app_user (id, created_at, updated_at) VALUES ($1, $2, $3)`,
		u.ID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if err := insertChildren(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertChildren(ctx context.Context, tx pgx.Tx, u *repository.User) error {
	if u.Credentials != nil {
		_, err := tx.Exec(ctx,
			`INSERT INTO credential (user_id, identifier, password_hash) VALUES ($1, $2, $3)`,
			u.ID, u.Credentials.Identifier, u.Credentials.PasswordHash)
		if err != nil {
			return mapErr(err)
		}
	}
	for _, acc := range u.Accounts {
		raw, err := json.Marshal(acc.Raw)
		if err != nil {
			return fmt.Errorf("pg: marshal raw profile: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO external_account
				(user_id, provider, subject_id, email, name, avatar_url, email_verified, locale, synced_at, raw)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			u.ID, acc.Provider, acc.SubjectID, acc.Email, acc.Name, acc.AvatarURL,
			acc.EmailVerified, acc.Locale, acc.SyncedAt, raw)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return r.getOne(ctx, `SELECT u.id, u.created_at, u.updated_at FROM app_user u WHERE u.id = $1`, id)
}

func (r *Repo) GetByIdentifier(ctx context.Context, identifier string) (*repository.User, error) {
	return r.getOne(ctx, `
		SELECT u.id, u.created_at, u.updated_at
		  FROM app_user u
		  JOIN credential c ON c.user_id = u.id
		 WHERE c.identifier = $1`, identifier)
}

func (r *Repo) GetByExternalAccount(ctx context.Context, provider, subjectID string) (*repository.User, error) {
	return r.getOne(ctx, `
		SELECT u.id, u.created_at, u.updated_at
		  FROM app_user u
		  JOIN external_account ea ON ea.user_id = u.id
		 WHERE ea.provider = $1 AND ea.subject_id = $2`, provider, subjectID)
}

func (r *Repo) getOne(ctx context.Context, query string, args ...any) (*repository.User, error) {
	var u repository.User
	err := r.pool.QueryRow(ctx, query, args...).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := r.loadChildren(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) loadChildren(ctx context.Context, u *repository.User) error {
	var cred repository.Credentials
	err := r.pool.QueryRow(ctx,
		`SELECT identifier, password_hash FROM credential WHERE user_id = $1`, u.ID,
	).Scan(&cred.Identifier, &cred.PasswordHash)
	switch {
	case err == nil:
		u.Credentials = &cred
	case errors.Is(err, pgx.ErrNoRows):
		// sin credenciales locales
	default:
		return err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT provider, subject_id, email, name, avatar_url, email_verified, locale, synced_at, raw
		  FROM external_account WHERE user_id = $1`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var acc repository.ExternalAccount
		var raw []byte
		if err := rows.Scan(&acc.Provider, &acc.SubjectID, &acc.Email, &acc.Name,
			&acc.AvatarURL, &acc.EmailVerified, &acc.Locale, &acc.SyncedAt, &raw); err != nil {
			return err
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &acc.Raw)
		}
		if u.Accounts == nil {
			u.Accounts = make(map[string]repository.ExternalAccount)
		}
		u.Accounts[acc.Provider] = acc
	}
	return rows.Err()
}

// Update reemplaza credenciales y cuentas con delete+insert dentro de una
// transacción. Simple y correcto: los unique constraints siguen vigilando.
func (r *Repo) Update(ctx context.Context, u *repository.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE app_user SET updated_at = $2 WHERE id = $1`, u.ID, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM credential WHERE user_id = $1`, u.ID); err != nil {
		return mapErr(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM external_account WHERE user_id = $1`, u.ID); err != nil {
		return mapErr(err)
	}
	if err := insertChildren(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
