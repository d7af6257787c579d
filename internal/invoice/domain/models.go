// Package domain contains persistence models for group-funded invoices
// and their escrow bookkeeping.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents lifecycle states for an invoice. Values are
// lowercase so ledger-reported statuses map onto them directly.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusFunding   InvoiceStatus = "funding"
	InvoiceStatusCompleted InvoiceStatus = "completed"
	InvoiceStatusReleased  InvoiceStatus = "released"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// IsTerminal reports whether no further transition is legal.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusReleased || s == InvoiceStatusCancelled
}

type ParticipantStatus string

const (
	ParticipantStatusActive    ParticipantStatus = "active"
	ParticipantStatusWithdrawn ParticipantStatus = "withdrawn"
)

// TransactionType classifies ledger-facing operations in the audit log.
type TransactionType string

const (
	TransactionTypeCreate           TransactionType = "create"
	TransactionTypeContribute       TransactionType = "contribute"
	TransactionTypeWithdraw         TransactionType = "withdraw"
	TransactionTypeConfirmRelease   TransactionType = "confirm_release"
	TransactionTypeUpdateRecipients TransactionType = "update_recipients"
	TransactionTypeRelease          TransactionType = "release"
	TransactionTypeCancel           TransactionType = "cancel"
	TransactionTypeClaimDeadline    TransactionType = "claim_deadline"
)

// Invoice is the off-chain record of a shared-expense funding round.
// TotalCollected, ParticipantCount and Status are caches of the escrow
// contract once ContractInvoiceID is set; the ledger stays authoritative.
type Invoice struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrganizerID       snowflake.ID  `gorm:"not null;index" json:"organizer_id"`
	Title             string        `gorm:"type:text;not null" json:"title"`
	Description       *string       `gorm:"type:text" json:"description,omitempty"`
	Status            InvoiceStatus `gorm:"type:text;not null" json:"status"`
	TotalAmount       float64       `gorm:"not null" json:"total_amount"`
	TotalCollected    float64       `gorm:"not null;default:0" json:"total_collected"`
	ParticipantCount  int           `gorm:"not null;default:0" json:"participant_count"`
	ConfirmationCount int           `gorm:"not null;default:0" json:"confirmation_count"`
	Version           int           `gorm:"not null;default:0" json:"version"`
	ContractInvoiceID *uint64       `gorm:"uniqueIndex" json:"contract_invoice_id,omitempty"`
	MinParticipants   int           `gorm:"not null;default:1" json:"min_participants"`
	PenaltyPercent    int           `gorm:"not null;default:0" json:"penalty_percent"`
	Deadline          *time.Time    `gorm:"" json:"deadline,omitempty"`
	AutoRelease       bool          `gorm:"not null;default:false" json:"auto_release"`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Linked reports whether the invoice is bound to an escrow contract.
func (i Invoice) Linked() bool { return i.ContractInvoiceID != nil }

// InvoiceItem is one line of an invoice. The item set is replaced
// wholesale on modification, never merged.
type InvoiceItem struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID        snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Description      string       `gorm:"type:text;not null" json:"description"`
	Amount           float64      `gorm:"not null" json:"amount"`
	RecipientAddress *string      `gorm:"type:text" json:"recipient_address,omitempty"`
	SortOrder        int          `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceParticipant tracks one user's membership and contribution in
// one invoice. Rows are never deleted, only transitioned to withdrawn.
type InvoiceParticipant struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceID            snowflake.ID      `gorm:"not null;uniqueIndex:idx_participant_invoice_user" json:"invoice_id"`
	UserID               snowflake.ID      `gorm:"not null;uniqueIndex:idx_participant_invoice_user" json:"user_id"`
	Status               ParticipantStatus `gorm:"type:text;not null" json:"status"`
	ContributedAmount    float64           `gorm:"not null;default:0" json:"contributed_amount"`
	ContributedAtVersion int               `gorm:"not null;default:0" json:"contributed_at_version"`
	ConfirmedRelease     bool              `gorm:"not null;default:false" json:"confirmed_release"`
	PenaltyPaid          *float64          `gorm:"" json:"penalty_paid,omitempty"`
	JoinedAt             time.Time         `gorm:"not null" json:"joined_at"`
	WithdrawnAt          *time.Time        `gorm:"" json:"withdrawn_at,omitempty"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (InvoiceParticipant) TableName() string { return "invoice_participants" }

// Transaction is an append-only audit record of a ledger-facing
// operation. Rows are never updated or deleted.
type Transaction struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceID      snowflake.ID      `gorm:"not null;index" json:"invoice_id"`
	UserID         snowflake.ID      `gorm:"not null;index" json:"user_id"`
	Type           TransactionType   `gorm:"type:text;not null" json:"type"`
	TxHash         string            `gorm:"type:text;not null" json:"tx_hash"`
	Amount         float64           `gorm:"not null;default:0" json:"amount"`
	LedgerSequence int64             `gorm:"not null;default:0" json:"ledger_sequence"`
	Event          datatypes.JSONMap `gorm:"type:jsonb" json:"event,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// InvoiceModification snapshots the item set that was in force before a
// version bump. Append-only, one row per bump.
type InvoiceModification struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	InvoiceID     snowflake.ID   `gorm:"not null;index" json:"invoice_id"`
	Version       int            `gorm:"not null" json:"version"`
	ChangeSummary string         `gorm:"type:text;not null" json:"change_summary"`
	PreviousItems datatypes.JSON `gorm:"type:jsonb" json:"previous_items"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceModification) TableName() string { return "invoice_modifications" }
