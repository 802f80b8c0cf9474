// Package memory implementa UserRepository en memoria. Es la implementación
// de referencia: un solo lock exclusivo, suficiente para tests y single-node.
// Las garantías de unicidad valen igual que en un backend SQL.
package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/gatehouse/internal/domain/repository"
)

type accountKey struct {
	provider  string
	subjectID string
}

// Store implementa repository.UserRepository.
type Store struct {
	mu           sync.RWMutex
	byID         map[string]*repository.User
	byIdentifier map[string]string     // identifier → userID
	byAccount    map[accountKey]string // (provider, subject) → userID
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		byID:         make(map[string]*repository.User),
		byIdentifier: make(map[string]string),
		byAccount:    make(map[accountKey]string),
	}
}

// checkUnique verifica unicidad de identifier y cuentas externas de u,
// ignorando al propio u (para Update). Llamar con el lock tomado.
func (s *Store) checkUnique(u *repository.User) error {
	if id := u.Identifier(); id != "" {
		if owner, ok := s.byIdentifier[id]; ok && owner != u.ID {
			return repository.ErrConflict
		}
	}
	for _, acc := range u.Accounts {
		k := accountKey{acc.Provider, acc.SubjectID}
		if owner, ok := s.byAccount[k]; ok && owner != u.ID {
			return repository.ErrConflict
		}
	}
	return nil
}

// reindex borra las entradas de índice de old (si existe) y agrega las de u.
// Llamar con el lock tomado y después de checkUnique.
func (s *Store) reindex(old, u *repository.User) {
	if old != nil {
		if id := old.Identifier(); id != "" {
			delete(s.byIdentifier, id)
		}
		for _, acc := range old.Accounts {
			delete(s.byAccount, accountKey{acc.Provider, acc.SubjectID})
		}
	}
	if id := u.Identifier(); id != "" {
		s.byIdentifier[id] = u.ID
	}
	for _, acc := range u.Accounts {
		s.byAccount[accountKey{acc.Provider, acc.SubjectID}] = u.ID
	}
}

func (s *Store) Insert(ctx context.Context, u *repository.User) error {
	if u.ID == "" {
		return repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[u.ID]; ok {
		return repository.ErrConflict
	}
	if err := s.checkUnique(u); err != nil {
		return err
	}
	cp := u.Clone()
	s.byID[cp.ID] = cp
	s.reindex(nil, cp)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdentifier[identifier]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *Store) GetByExternalAccount(ctx context.Context, provider, subjectID string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAccount[accountKey{provider, subjectID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *Store) Update(ctx context.Context, u *repository.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := s.checkUnique(u); err != nil {
		return err
	}
	cp := u.Clone()
	cp.CreatedAt = old.CreatedAt
	s.byID[cp.ID] = cp
	s.reindex(old, cp)
	return nil
}
