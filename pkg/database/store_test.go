package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/docseal/api/pkg/errors"
)

// storeContract runs the behaviour every Store backend shares.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	newUser := func(t *testing.T, s Store) *User {
		u := &User{
			Email:        uuid.NewString() + "@docseal.test",
			PasswordHash: "hash",
			FirstName:    "Jane",
			LastName:     "Doe",
		}
		require.NoError(t, s.CreateUser(ctx, u))
		return u
	}

	newSignature := func(t *testing.T, s Store, owner string, at time.Time) *Signature {
		data := "JVBERi0="
		sig := &Signature{
			Identifier:   uuid.NewString(),
			OwnerID:      owner,
			SignerName:   "Jane Doe",
			CreatedAt:    at,
			Verified:     true,
			DocumentData: &data,
		}
		require.NoError(t, s.CreateSignature(ctx, sig))
		return sig
	}

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s)

		assert.NotEmpty(t, u.ID)
		assert.Equal(t, DefaultRole, u.Role)

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, got.Email)

		got, err = s.GetUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		_, err = s.GetUser(ctx, uuid.NewString())
		assert.ErrorIs(t, err, dserrors.RecordNotFound)

		dup := &User{Email: u.Email, PasswordHash: "x"}
		assert.ErrorIs(t, s.CreateUser(ctx, dup), dserrors.DuplicateRecord)
	})

	t.Run("save user", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s)

		u.Organization = "Acme"
		u.Admin = true
		require.NoError(t, s.SaveUser(ctx, u))

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Organization)
		assert.True(t, got.Admin)

		missing := &User{ID: uuid.NewString(), Email: "missing@docseal.test"}
		assert.ErrorIs(t, s.SaveUser(ctx, missing), dserrors.RecordNotFound)
	})

	t.Run("signatures newest first", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s)
		base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

		older := newSignature(t, s, u.ID, base)
		newer := newSignature(t, s, u.ID, base.Add(time.Minute))

		sigs, err := s.FindSignatures(ctx, SignatureFilter{OwnerID: u.ID})
		require.NoError(t, err)
		require.Len(t, sigs, 2)
		assert.Equal(t, newer.Identifier, sigs[0].Identifier)
		assert.Equal(t, older.Identifier, sigs[1].Identifier)
		assert.Nil(t, sigs[0].DocumentData)

		sigs, err = s.FindSignatures(ctx, SignatureFilter{Identifier: older.Identifier, WithDocument: true})
		require.NoError(t, err)
		require.Len(t, sigs, 1)
		require.NotNil(t, sigs[0].DocumentData)
		assert.Equal(t, "JVBERi0=", *sigs[0].DocumentData)

		count, err := s.CountSignatures(ctx, SignatureFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		other := newUser(t, s)
		newSignature(t, s, other.ID, base)

		count, err = s.CountSignatures(ctx, SignatureFilter{OwnerID: u.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
		count, err = s.CountSignatures(ctx, SignatureFilter{OwnerID: other.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
		count, err = s.CountSignatures(ctx, SignatureFilter{Identifier: older.Identifier})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s)
		sig := newSignature(t, s, u.ID, time.Now())

		again := &Signature{Identifier: sig.Identifier, OwnerID: u.ID, SignerName: "x"}
		assert.ErrorIs(t, s.CreateSignature(ctx, again), dserrors.DuplicateRecord)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s)
		other := newUser(t, s)
		newSignature(t, s, u.ID, time.Now())
		kept := newSignature(t, s, other.ID, time.Now())

		_, err := s.DeleteSignatures(ctx, SignatureFilter{})
		assert.Error(t, err)

		n, err := s.DeleteSignatures(ctx, SignatureFilter{OwnerID: u.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		require.NoError(t, s.DeleteUser(ctx, u.ID))
		assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), dserrors.RecordNotFound)

		sigs, err := s.FindSignatures(ctx, SignatureFilter{Identifier: kept.Identifier})
		require.NoError(t, err)
		assert.Len(t, sigs, 1)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s)
		sig := newSignature(t, s, u.ID, time.Now())

		boom := errors.New("boom")
		err := s.Transaction(ctx, func(tx Store) error {
			if _, err := tx.DeleteSignatures(ctx, SignatureFilter{OwnerID: u.ID}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		sigs, err := s.FindSignatures(ctx, SignatureFilter{Identifier: sig.Identifier})
		require.NoError(t, err)
		assert.Len(t, sigs, 1)
	})

	t.Run("transaction commit", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s)
		newSignature(t, s, u.ID, time.Now())

		err := s.Transaction(ctx, func(tx Store) error {
			if _, err := tx.DeleteSignatures(ctx, SignatureFilter{OwnerID: u.ID}); err != nil {
				return err
			}
			return tx.DeleteUser(ctx, u.ID)
		})
		require.NoError(t, err)

		_, err = s.GetUser(ctx, u.ID)
		assert.ErrorIs(t, err, dserrors.RecordNotFound)
		sigs, err := s.FindSignatures(ctx, SignatureFilter{OwnerID: u.ID})
		require.NoError(t, err)
		assert.Empty(t, sigs)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStoreCascade(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u := &User{Email: "a@docseal.test"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.CreateSignature(ctx, &Signature{Identifier: "id-1", OwnerID: u.ID}))

	require.NoError(t, s.DeleteUser(ctx, u.ID))

	count, err := s.CountSignatures(ctx, SignatureFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStoreRejectsUnknownOwner(t *testing.T) {
	err := NewMemoryStore().CreateSignature(context.Background(), &Signature{Identifier: "x", OwnerID: "nobody"})
	assert.Error(t, err)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().ListUsers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// Runs against a real database when DOCSEAL_TEST_POSTGRES_DSN is set.
func TestGormStore(t *testing.T) {
	dsn := os.Getenv("DOCSEAL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DOCSEAL_TEST_POSTGRES_DSN not set")
	}

	db, err := Connect(dsn)
	require.NoError(t, err)

	storeContract(t, func(t *testing.T) Store {
		require.NoError(t, db.Exec("TRUNCATE signatures, users CASCADE").Error)
		return NewGormStore(db)
	})
}

func TestUserPatch(t *testing.T) {
	u := User{FirstName: "Jane", LastName: "Doe", Role: "User"}

	org := "Acme"
	role := ""
	admin := true
	patch := UserPatch{Organization: &org, Role: &role, Admin: &admin}
	assert.False(t, patch.Empty())

	patch.Apply(&u)
	assert.Equal(t, "Jane", u.FirstName)
	assert.Equal(t, "Acme", u.Organization)
	assert.Equal(t, "", u.Role)
	assert.True(t, u.Admin)

	assert.True(t, UserPatch{}.Empty())
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Jane Doe", User{FirstName: "Jane", LastName: "Doe"}.FullName())
	assert.Equal(t, "Doe", User{LastName: "Doe"}.FullName())
	assert.Equal(t, "Jane", User{FirstName: "Jane"}.FullName())
}

func TestPostgresURL(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: "5432", User: "docseal", Password: "p@ss", Database: "docseal"}
	assert.Equal(t, "postgres://docseal:p%40ss@db:5432/docseal?TimeZone=UTC&sslmode=disable", c.URL())
}
