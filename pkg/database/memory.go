package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	dserrors "github.com/docseal/api/pkg/errors"
)

// MemoryStore keeps records in process memory. It backs tests and local
// development and is safe for concurrent use.
type MemoryStore struct {
	// mu is nil for the store handed to a transaction, which already holds
	// the parent's lock.
	mu    *sync.Mutex
	state *memoryState
}

type memoryState struct {
	users map[string]User

	// signatures in insertion order
	signatures []Signature
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:    &sync.Mutex{},
		state: &memoryState{users: make(map[string]User)},
	}
}

func (s *MemoryStore) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	u.prepare()
	if _, ok := s.state.users[u.ID]; ok {
		return fmt.Errorf("%w: users_pkey", dserrors.DuplicateRecord)
	}
	if s.state.userByEmail(u.Email) != nil {
		return fmt.Errorf("%w: idx_users_email", dserrors.DuplicateRecord)
	}

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	s.state.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	u, ok := s.state.users[id]
	if !ok {
		return nil, dserrors.RecordNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	u := s.state.userByEmail(email)
	if u == nil {
		return nil, dserrors.RecordNotFound
	}
	return u, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	users := make([]User, 0, len(s.state.users))
	for _, u := range s.state.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, u *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	prev, ok := s.state.users[u.ID]
	if !ok {
		return dserrors.RecordNotFound
	}
	if other := s.state.userByEmail(u.Email); other != nil && other.ID != u.ID {
		return fmt.Errorf("%w: idx_users_email", dserrors.DuplicateRecord)
	}

	u.CreatedAt = prev.CreatedAt
	u.UpdatedAt = time.Now()
	s.state.users[u.ID] = *u
	return nil
}

// DeleteUser removes the user and, like the postgres foreign key, every
// signature they own.
func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	if _, ok := s.state.users[id]; !ok {
		return dserrors.RecordNotFound
	}
	delete(s.state.users, id)
	s.state.deleteSignatures(SignatureFilter{OwnerID: id})
	return nil
}

func (s *MemoryStore) CreateSignature(ctx context.Context, sig *Signature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	if _, ok := s.state.users[sig.OwnerID]; !ok {
		return fmt.Errorf("owner %q does not exist", sig.OwnerID)
	}
	for i := range s.state.signatures {
		if s.state.signatures[i].Identifier == sig.Identifier {
			return fmt.Errorf("%w: idx_signatures_identifier", dserrors.DuplicateRecord)
		}
	}

	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now()
	}

	stored := *sig
	if sig.DocumentData != nil {
		data := *sig.DocumentData
		stored.DocumentData = &data
	}
	s.state.signatures = append(s.state.signatures, stored)
	return nil
}

func (s *MemoryStore) FindSignatures(ctx context.Context, f SignatureFilter) ([]Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.lock()()

	found := []Signature{}
	for i := len(s.state.signatures) - 1; i >= 0; i-- {
		sig := s.state.signatures[i]
		if !f.match(&sig) {
			continue
		}
		if f.WithDocument && sig.DocumentData != nil {
			data := *sig.DocumentData
			sig.DocumentData = &data
		} else {
			sig.DocumentData = nil
		}
		found = append(found, sig)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})
	return found, nil
}

func (s *MemoryStore) DeleteSignatures(ctx context.Context, f SignatureFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.empty() {
		return 0, errUnfilteredDelete
	}
	defer s.lock()()

	return s.state.deleteSignatures(f), nil
}

func (s *MemoryStore) CountSignatures(ctx context.Context, f SignatureFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer s.lock()()

	var count int64
	for _, sig := range s.state.signatures {
		if f.match(&sig) {
			count++
		}
	}
	return count, nil
}

// Transaction runs fn on a copy of the records and swaps the copy in when fn
// succeeds. Other callers wait until the transaction is done.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.mu == nil {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (m *memoryState) userByEmail(email string) *User {
	for _, u := range m.users {
		if u.Email == email {
			return &u
		}
	}
	return nil
}

func (m *memoryState) deleteSignatures(f SignatureFilter) int64 {
	kept := m.signatures[:0:0]
	for _, sig := range m.signatures {
		if !f.match(&sig) {
			kept = append(kept, sig)
		}
	}
	deleted := int64(len(m.signatures) - len(kept))
	m.signatures = kept
	return deleted
}

func (m *memoryState) clone() *memoryState {
	c := &memoryState{
		users:      make(map[string]User, len(m.users)),
		signatures: append([]Signature(nil), m.signatures...),
	}
	for id, u := range m.users {
		c.users[id] = u
	}
	return c
}
