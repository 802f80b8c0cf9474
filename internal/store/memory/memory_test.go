package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/dropDatabas3/gatehouse/internal/domain/repository"
)

func localUser(identifier string) *repository.User {
	return &repository.User{
		ID: uuid.NewString(),
		Credentials: &repository.Credentials{
			Identifier:   identifier,
			PasswordHash: "$argon2id$...",
		},
	}
}

func oauthUser(provider, subject string) *repository.User {
	u := &repository.User{ID: uuid.NewString()}
	u.LinkAccount(repository.ExternalAccount{Provider: provider, SubjectID: subject})
	return u
}

func TestInsertAndLookups(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := localUser("ana@example.com")
	u.LinkAccount(repository.ExternalAccount{Provider: "google", SubjectID: "g-1"})
	if err := s.Insert(ctx, u); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Identifier() != "ana@example.com" {
		t.Fatalf("identifier = %q", got.Identifier())
	}

	if _, err := s.GetByIdentifier(ctx, "ana@example.com"); err != nil {
		t.Fatalf("GetByIdentifier: %v", err)
	}
	if _, err := s.GetByExternalAccount(ctx, "google", "g-1"); err != nil {
		t.Fatalf("GetByExternalAccount: %v", err)
	}
	if _, err := s.GetByIdentifier(ctx, "nadie@example.com"); !repository.IsNotFound(err) {
		t.Fatalf("err = %v, quiero ErrNotFound", err)
	}
}

func TestInsertRejectsDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Insert(ctx, localUser("dup@example.com")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, localUser("dup@example.com")); !repository.IsConflict(err) {
		t.Fatalf("identifier duplicado: err = %v", err)
	}

	if err := s.Insert(ctx, oauthUser("github", "77")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, oauthUser("github", "77")); !repository.IsConflict(err) {
		t.Fatalf("cuenta externa duplicada: err = %v", err)
	}
}

func TestUpdateReindexes(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := localUser("old@example.com")
	if err := s.Insert(ctx, u); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	u.Credentials.Identifier = "new@example.com"
	u.LinkAccount(repository.ExternalAccount{Provider: "discord", SubjectID: "d-9"})
	if err := s.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := s.GetByIdentifier(ctx, "old@example.com"); !repository.IsNotFound(err) {
		t.Fatalf("índice viejo sigue vivo: err = %v", err)
	}
	if _, err := s.GetByIdentifier(ctx, "new@example.com"); err != nil {
		t.Fatalf("GetByIdentifier nuevo: %v", err)
	}
	if _, err := s.GetByExternalAccount(ctx, "discord", "d-9"); err != nil {
		t.Fatalf("GetByExternalAccount: %v", err)
	}
}

func TestUpdateUnknownUser(t *testing.T) {
	s := New()
	if err := s.Update(context.Background(), localUser("x@example.com")); !repository.IsNotFound(err) {
		t.Fatalf("err = %v, quiero ErrNotFound", err)
	}
}

func TestUpdateCannotStealIdentifier(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := localUser("a@example.com")
	b := localUser("b@example.com")
	if err := s.Insert(ctx, a); err != nil {
		t.Fatalf("Insert a: %v", err)
	}
	if err := s.Insert(ctx, b); err != nil {
		t.Fatalf("Insert b: %v", err)
	}

	b.Credentials.Identifier = "a@example.com"
	if err := s.Update(ctx, b); !repository.IsConflict(err) {
		t.Fatalf("err = %v, quiero ErrConflict", err)
	}
}

func TestClonesAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := oauthUser("google", "g-iso")
	if err := s.Insert(ctx, u); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.Accounts["google"] = repository.ExternalAccount{Provider: "google", SubjectID: "mutado"}

	again, err := s.GetByExternalAccount(ctx, "google", "g-iso")
	if err != nil {
		t.Fatalf("la mutación del clone tocó el store: %v", err)
	}
	if again.Accounts["google"].SubjectID != "g-iso" {
		t.Fatalf("subject = %q", again.Accounts["google"].SubjectID)
	}
}

// Bajo inserciones concurrentes con el mismo identifier gana exactamente una.
func TestConcurrentInsertSingleWinner(t *testing.T) {
	s := New()
	ctx := context.Background()

	const n = 32
	var wins, conflicts atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Insert(ctx, localUser("race@example.com"))
			switch {
			case err == nil:
				wins.Add(1)
			case repository.IsConflict(err):
				conflicts.Add(1)
			default:
				t.Errorf("Insert: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || conflicts.Load() != n-1 {
		t.Fatalf("wins=%d conflicts=%d", wins.Load(), conflicts.Load())
	}
}
