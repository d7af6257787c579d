package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertItems(ctx context.Context, db *gorm.DB, items []InvoiceItem) error
	ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []InvoiceItem) error
	FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindInvoiceByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListInvoicesByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, status InvoiceStatus) ([]Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)

	// LinkContract binds the escrow id once. It reports whether the
	// conditional update actually claimed the row.
	LinkContract(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, contractInvoiceID uint64, now time.Time) (bool, error)
	UpdateInvoiceStatus(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, status InvoiceStatus, now time.Time) error
	ApplyLedgerState(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, totalCollected float64, participantCount int, status InvoiceStatus, now time.Time) error
	SetParticipantCount(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, count int, now time.Time) error

	// BumpVersion replaces the funding target, increments the version
	// and resets confirmation progress in one statement.
	BumpVersion(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, newTotal float64, now time.Time) error
	IncrementConfirmations(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, now time.Time) error

	FindParticipant(ctx context.Context, db *gorm.DB, invoiceID, userID snowflake.ID) (*InvoiceParticipant, error)
	InsertParticipant(ctx context.Context, db *gorm.DB, participant *InvoiceParticipant) error
	ListParticipants(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceParticipant, error)
	CountActiveParticipants(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int, error)

	// AddContribution applies a relative increment so concurrent
	// contributions cannot lose updates.
	AddContribution(ctx context.Context, db *gorm.DB, participantID snowflake.ID, amount float64, atVersion int, now time.Time) error
	MarkWithdrawn(ctx context.Context, db *gorm.DB, participantID snowflake.ID, now time.Time) error
	Reactivate(ctx context.Context, db *gorm.DB, participantID snowflake.ID, now time.Time) error

	// ConfirmParticipant flips confirmed_release only when it is still
	// unset. It reports whether this call won the flip.
	ConfirmParticipant(ctx context.Context, db *gorm.DB, participantID snowflake.ID, now time.Time) (bool, error)
	ResetConfirmations(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, now time.Time) error
	SetPenaltyPaid(ctx context.Context, db *gorm.DB, participantID snowflake.ID, penalty float64, now time.Time) error

	InsertTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	ListTransactions(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Transaction, error)

	InsertModification(ctx context.Context, db *gorm.DB, record *InvoiceModification) error
	ListModifications(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceModification, error)
}
