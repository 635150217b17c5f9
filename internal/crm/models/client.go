// Package models defines the core domain models for the CRM:
// the Client and Contract entities and their partial-update counterparts.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientType represents the kind of client a record describes.
type ClientType string

const (
	// Person is an individual client; carries a birthday.
	Person ClientType = "PERSON"
	// Company is a corporate client; carries a company identifier.
	Company ClientType = "COMPANY"
)

// Client defines the domain model for a client entity.
type Client struct {
	// ID is the unique identifier for the client.
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	// Type discriminates between person and company clients.
	Type ClientType `gorm:"size:16" json:"type"`
	// Name is the client's unique display name.
	Name string `gorm:"size:255;uniqueIndex" json:"name"`
	// Phone is the client's phone number, 7-15 digits with an optional leading '+'.
	Phone string `gorm:"size:16" json:"phone"`
	// Email is the client's email address.
	Email string `gorm:"size:255" json:"email"`
	// Birthday is set for PERSON clients only and must lie in the past.
	Birthday *time.Time `json:"birthday,omitempty"`
	// CompanyIdentifier is set for COMPANY clients only.
	CompanyIdentifier string `gorm:"size:64" json:"companyIdentifier,omitempty"`
	// Version is the optimistic-concurrency token, incremented on every write.
	Version int `json:"-"`
	// CreatedAt records when the client was created.
	CreatedAt time.Time `json:"-"`
	// UpdatedAt records when the client was last modified.
	UpdatedAt time.Time `json:"-"`
}

// ClientUpdate represents the fields that can be patched on a Client.
// Pointer types are used to allow partial updates: nil fields are left
// untouched by the merge.
type ClientUpdate struct {
	// ID is the unique identifier for the client to update.
	ID uuid.UUID
	// Type is the new client type.
	Type *ClientType
	// Name is the new name.
	Name *string
	// Phone is the new phone number.
	Phone *string
	// Email is the new email address.
	Email *string
	// Birthday is the new birthday.
	Birthday *time.Time
	// CompanyIdentifier is the new company identifier.
	CompanyIdentifier *string
}

// Merge applies the non-nil patch fields onto the client and returns the
// merged image. The receiver is not modified.
func (u *ClientUpdate) Merge(client Client) Client {
	if u.Type != nil {
		client.Type = *u.Type
	}
	if u.Name != nil {
		client.Name = *u.Name
	}
	if u.Phone != nil {
		client.Phone = *u.Phone
	}
	if u.Email != nil {
		client.Email = *u.Email
	}
	if u.Birthday != nil {
		client.Birthday = u.Birthday
	}
	if u.CompanyIdentifier != nil {
		client.CompanyIdentifier = *u.CompanyIdentifier
	}
	return client
}
