package pg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/gatehouse/internal/domain/repository"
)

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"unique violation", &pgconn.PgError{Code: "23505"}, repository.ErrConflict},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), repository.ErrConflict},
		{"no rows", pgx.ErrNoRows, repository.ErrNotFound},
		{"other pg error", &pgconn.PgError{Code: "23503"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapErr(tc.in)
			if tc.want != nil {
				if !errors.Is(got, tc.want) {
					t.Fatalf("mapErr = %v, want %v", got, tc.want)
				}
				return
			}
			if tc.in == nil {
				if got != nil {
					t.Fatalf("mapErr(nil) = %v", got)
				}
				return
			}
			// errores no mapeados pasan tal cual
			if !errors.Is(got, tc.in) && got.Error() != tc.in.Error() {
				t.Fatalf("mapErr = %v, quiero passthrough de %v", got, tc.in)
			}
		})
	}
}
