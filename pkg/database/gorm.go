package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	dserrors "github.com/docseal/api/pkg/errors"
)

const pgUniqueViolation = "23505"

// GormStore keeps records in postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateUser(ctx context.Context, u *User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (s *GormStore) SaveUser(ctx context.Context, u *User) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"organization":  u.Organization,
		"role":          u.Role,
		"admin":         u.Admin,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return dserrors.RecordNotFound
	}
	return nil
}

func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return dserrors.RecordNotFound
	}
	return nil
}

func (s *GormStore) CreateSignature(ctx context.Context, sig *Signature) error {
	return translate(s.db.WithContext(ctx).Create(sig).Error)
}

func (s *GormStore) FindSignatures(ctx context.Context, f SignatureFilter) ([]Signature, error) {
	q := s.filter(ctx, f).Order("created_at desc")
	if !f.WithDocument {
		q = q.Omit("document_data")
	}

	sigs := []Signature{}
	if err := q.Find(&sigs).Error; err != nil {
		return nil, translate(err)
	}
	return sigs, nil
}

func (s *GormStore) DeleteSignatures(ctx context.Context, f SignatureFilter) (int64, error) {
	if f.empty() {
		return 0, errUnfilteredDelete
	}

	res := s.filter(ctx, f).Delete(&Signature{})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) CountSignatures(ctx context.Context, f SignatureFilter) (int64, error) {
	var count int64
	if err := s.filter(ctx, f).Count(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) filter(ctx context.Context, f SignatureFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Signature{})
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Identifier != "" {
		q = q.Where("identifier = ?", f.Identifier)
	}
	return q
}

func translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dserrors.RecordNotFound
	}

	var e *pgconn.PgError
	if errors.As(err, &e) && e.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", dserrors.DuplicateRecord, e.ConstraintName)
	}

	return err
}
