// Package signatures records signing events and looks them up for
// verification.
package signatures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docseal/api/pkg/database"
	dserrors "github.com/docseal/api/pkg/errors"
)

var ErrMissingOwner = errors.New("signing event has no owner")

// OpError reports a failed repository operation. ID is the owner id or
// identifier the operation was called with.
type OpError struct {
	Op  string
	ID  string
	Err error
}

func (e *OpError) Error() string {
	if e.ID == "" {
		return "signatures." + e.Op + ": " + e.Err.Error()
	}
	return fmt.Sprintf("signatures.%s %q: %v", e.Op, e.ID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

type Repository struct {
	store database.Store
	now   func() time.Time
}

func NewRepository(store database.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// Save records a signing event and returns the store id of the new record.
// Events are always stored as verified.
func (r *Repository) Save(ctx context.Context, sig *database.Signature) (string, error) {
	if sig.OwnerID == "" {
		return "", &OpError{Op: "Save", ID: sig.Identifier, Err: ErrMissingOwner}
	}

	sig.Verified = true
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = r.now()
	}

	if err := r.store.CreateSignature(ctx, sig); err != nil {
		return "", &OpError{Op: "Save", ID: sig.Identifier, Err: err}
	}

	return sig.ID, nil
}

// FindByOwner returns the owner's events, newest first. Unknown owners have
// none.
func (r *Repository) FindByOwner(ctx context.Context, ownerID string) ([]database.Signature, error) {
	if ownerID == "" {
		return []database.Signature{}, nil
	}

	sigs, err := r.store.FindSignatures(ctx, database.SignatureFilter{OwnerID: ownerID})
	if err != nil {
		return nil, &OpError{Op: "FindByOwner", ID: ownerID, Err: err}
	}
	return sigs, nil
}

// CountByOwner returns how many events the owner has recorded.
func (r *Repository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, nil
	}

	count, err := r.store.CountSignatures(ctx, database.SignatureFilter{OwnerID: ownerID})
	if err != nil {
		return 0, &OpError{Op: "CountByOwner", ID: ownerID, Err: err}
	}
	return count, nil
}

// FindByIdentifier returns the event minted with identifier, or nil when
// there is none. Should several records share the identifier, the most
// recent one is returned.
func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) (*database.Signature, error) {
	return r.findByIdentifier(ctx, identifier, false)
}

// Document is FindByIdentifier with the stored document loaded.
func (r *Repository) Document(ctx context.Context, identifier string) (*database.Signature, error) {
	return r.findByIdentifier(ctx, identifier, true)
}

func (r *Repository) findByIdentifier(ctx context.Context, identifier string, withDocument bool) (*database.Signature, error) {
	if identifier == "" {
		return nil, nil
	}

	sigs, err := r.store.FindSignatures(ctx, database.SignatureFilter{
		Identifier:   identifier,
		WithDocument: withDocument,
	})
	if err != nil {
		return nil, &OpError{Op: "FindByIdentifier", ID: identifier, Err: err}
	}
	if len(sigs) == 0 {
		return nil, nil
	}

	newest := sigs[0]
	for _, s := range sigs[1:] {
		if s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	return &newest, nil
}

// DeleteOwnerCascade removes every event of the owner and then the owner
// account, in one transaction. It returns the identifiers that were removed.
func (r *Repository) DeleteOwnerCascade(ctx context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, &OpError{Op: "DeleteOwnerCascade", Err: ErrMissingOwner}
	}

	var removed []string
	err := r.store.Transaction(ctx, func(tx database.Store) error {
		sigs, err := tx.FindSignatures(ctx, database.SignatureFilter{OwnerID: ownerID})
		if err != nil {
			return err
		}

		if len(sigs) > 0 {
			if _, err := tx.DeleteSignatures(ctx, database.SignatureFilter{OwnerID: ownerID}); err != nil {
				return err
			}
		}

		if err := tx.DeleteUser(ctx, ownerID); err != nil {
			return err
		}

		removed = make([]string, 0, len(sigs))
		for _, s := range sigs {
			removed = append(removed, s.Identifier)
		}
		return nil
	})
	if err != nil {
		return nil, &OpError{Op: "DeleteOwnerCascade", ID: ownerID, Err: err}
	}

	return removed, nil
}

// All returns every event without document data, newest first.
func (r *Repository) All(ctx context.Context) ([]database.Signature, error) {
	sigs, err := r.store.FindSignatures(ctx, database.SignatureFilter{})
	if err != nil {
		return nil, &OpError{Op: "All", Err: err}
	}
	return sigs, nil
}

type Stats struct {
	Signatures int64 `json:"signatures"`
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	count, err := r.store.CountSignatures(ctx, database.SignatureFilter{})
	if err != nil {
		return nil, &OpError{Op: "Stats", Err: err}
	}
	return &Stats{Signatures: count}, nil
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, dserrors.RecordNotFound)
}
