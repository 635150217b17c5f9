package models

import (
	"time"

	"github.com/google/uuid"
)

// Contract defines the domain model for a contract entity. A contract
// references its owning client through a soft link: ClientID is nulled,
// not cascaded, when the client is deleted.
type Contract struct {
	// ID is the unique identifier for the contract.
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	// StartDate is the first day the contract is in force.
	// Defaults to today when omitted at creation.
	StartDate time.Time `json:"startDate"`
	// EndDate is the last day the contract is in force. Nil means the
	// closing date has not been decided yet; such a contract does not
	// count as active.
	EndDate *time.Time `gorm:"index" json:"endDate,omitempty"`
	// Cost is the contract's monetary value. Never negative.
	Cost float64 `gorm:"type:decimal(12,2);check:cost >= 0" json:"cost"`
	// UpdatedAt is stamped by the system on every create and update,
	// never supplied by the caller.
	UpdatedAt time.Time `gorm:"index" json:"-"`
	// ClientID references the owning client. Nil only after the owning
	// client has been deleted.
	ClientID *uuid.UUID `gorm:"type:uuid;index" json:"clientId,omitempty"`
	// Version is the optimistic-concurrency token.
	Version int `json:"-"`
}

// ContractUpdate represents the fields that can be patched on a Contract.
// Nil fields are left untouched by the merge; UpdatedAt is always
// re-stamped by the coordinator regardless of the patch contents.
type ContractUpdate struct {
	// ID is the unique identifier for the contract to update.
	ID uuid.UUID
	// StartDate is the new start date.
	StartDate *time.Time
	// EndDate is the new end date.
	EndDate *time.Time
	// Cost is the new cost.
	Cost *float64
}

// Merge applies the non-nil patch fields onto the contract and returns
// the merged image. The receiver is not modified.
func (u *ContractUpdate) Merge(contract Contract) Contract {
	if u.StartDate != nil {
		contract.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		contract.EndDate = u.EndDate
	}
	if u.Cost != nil {
		contract.Cost = *u.Cost
	}
	return contract
}

// EnrichedContract is a contract joined with its owning client's public
// projection, as returned by the active-contract query.
type EnrichedContract struct {
	Contract *Contract
	Client   *Client
}
