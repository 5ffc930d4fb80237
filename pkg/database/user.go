package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultRole = "User"

type User struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	FirstName    string `json:"first_name" gorm:"not null"`
	LastName     string `json:"last_name" gorm:"not null"`
	Organization string `json:"organization"`
	Role         string `json:"role" gorm:"not null"`
	Admin        bool   `json:"admin" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Signatures []Signature `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

// FullName is the name printed on stamps signed by u.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u *User) BeforeCreate(*gorm.DB) error {
	u.prepare()
	return nil
}

func (u *User) prepare() {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = DefaultRole
	}
}

// UserPatch holds the profile fields a request may change. Nil fields are
// left as they are.
type UserPatch struct {
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Role         *string `json:"role,omitempty"`

	// Admin may only be set by administrators.
	Admin *bool `json:"admin,omitempty"`
}

func (p UserPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Organization == nil &&
		p.Role == nil && p.Admin == nil
}

func (p UserPatch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Organization != nil {
		u.Organization = *p.Organization
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Admin != nil {
		u.Admin = *p.Admin
	}
}
