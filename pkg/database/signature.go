package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Signature records one signing event. Records are never updated; they are
// only removed together with their owner.
type Signature struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	Identifier    string    `json:"identifier" gorm:"uniqueIndex;not null"`
	OwnerID       string    `json:"owner_id" gorm:"index;not null;size:36"`
	DocumentTitle string    `json:"document_title"`
	SignerName    string    `json:"signer_name" gorm:"not null"`
	Organization  string    `json:"organization"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	Verified      bool      `json:"verified" gorm:"not null"`

	// DocumentData is the base64 encoded stamped document. Nil when no copy
	// was kept.
	DocumentData *string `json:"-" gorm:"type:text"`
}

func (s *Signature) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SignatureFilter selects signatures. Empty fields do not restrict the
// result.
type SignatureFilter struct {
	OwnerID    string
	Identifier string

	// WithDocument loads DocumentData, which is left nil otherwise.
	WithDocument bool
}

func (f SignatureFilter) empty() bool {
	return f.OwnerID == "" && f.Identifier == ""
}

func (f SignatureFilter) match(s *Signature) bool {
	return (f.OwnerID == "" || s.OwnerID == f.OwnerID) &&
		(f.Identifier == "" || s.Identifier == f.Identifier)
}
