package database

import (
	"context"
	"errors"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errUnfilteredDelete = errors.New("refusing to delete signatures without a filter")

// Store is the record store boundary. Lookups that find nothing return
// dserrors.RecordNotFound; unique constraint violations return
// dserrors.DuplicateRecord.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SaveUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id string) error

	CreateSignature(ctx context.Context, s *Signature) error
	// FindSignatures returns matching signatures, newest first.
	FindSignatures(ctx context.Context, f SignatureFilter) ([]Signature, error)
	DeleteSignatures(ctx context.Context, f SignatureFilter) (int64, error)
	CountSignatures(ctx context.Context, f SignatureFilter) (int64, error)

	// Transaction runs fn against a store whose changes are committed only
	// when fn returns nil.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	TimeZone string
}

func (c PostgresConfig) URL() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	timeZone := c.TimeZone
	if timeZone == "" {
		timeZone = "UTC"
	}

	u := url.URL{
		User:   url.UserPassword(c.User, c.Password),
		Scheme: "postgres",
		Host:   c.Host + ":" + c.Port,
		Path:   c.Database,
		RawQuery: url.Values{
			"sslmode":  {sslMode},
			"TimeZone": {timeZone},
		}.Encode(),
	}

	return u.String()
}

// Connect opens a postgres connection and migrates the schema.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&User{}, &Signature{}); err != nil {
		return nil, err
	}

	return db, nil
}
