package models

import (
	"time"

	"github.com/docseal/api/pkg/database"
)

// VerificationPayload is what anyone holding a verification link sees.
type VerificationPayload struct {
	Identifier    string    `json:"identifier"`
	DocumentTitle string    `json:"document_title,omitempty"`
	SignerName    string    `json:"signer_name"`
	Organization  string    `json:"organization,omitempty"`
	Role          string    `json:"role,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Verified      bool      `json:"verified"`
}

func NewVerificationPayload(s *database.Signature) VerificationPayload {
	return VerificationPayload{
		Identifier:    s.Identifier,
		DocumentTitle: s.DocumentTitle,
		SignerName:    s.SignerName,
		Organization:  s.Organization,
		Role:          s.Role,
		CreatedAt:     s.CreatedAt,
		Verified:      s.Verified,
	}
}

// SignResponse is returned instead of the raw download when a client asks
// for JSON. Document is base64 encoded.
type SignResponse struct {
	Identifier string    `json:"identifier"`
	VerifyURL  string    `json:"verify_url"`
	Label      string    `json:"label"`
	SignedAt   time.Time `json:"signed_at"`
	FileName   string    `json:"file_name"`
	Document   string    `json:"document"`
}

type SignatureList struct {
	Signatures []database.Signature `json:"signatures"`
}

type UserList struct {
	Users []database.User `json:"users"`
}
