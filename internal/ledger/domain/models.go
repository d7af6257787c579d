package domain

import (
	"context"
	"errors"
)

// StroopsPerUnit is the number of ledger base units in one display unit.
const StroopsPerUnit = 10_000_000

// StroopsToDecimal converts an integer base-unit amount to the decimal
// representation stored on invoice cache columns.
func StroopsToDecimal(stroops int64) float64 {
	return float64(stroops) / float64(StroopsPerUnit)
}

// Escrow statuses as reported by the contract, lowercased.
const (
	EscrowStatusCreated   = "created"
	EscrowStatusFunding   = "funding"
	EscrowStatusCompleted = "completed"
	EscrowStatusCancelled = "cancelled"
	EscrowStatusReleased  = "released"
)

var (
	ErrLedgerRejected    = errors.New("ledger transaction rejected")
	ErrSubmitTimeout     = errors.New("ledger confirmation timed out")
	ErrStateNotFound     = errors.New("escrow state not found")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// SubmitResult describes a transaction that was accepted and confirmed
// by the ledger.
type SubmitResult struct {
	Hash           string
	LedgerSequence uint32

	// ReturnValue is the base64 encoded return value of the host
	// function, when the contract returned one.
	ReturnValue string

	// ReturnU64 is set when the return value decodes to an unsigned
	// integer, such as the escrow identifier returned by create.
	ReturnU64 *uint64
}

// EscrowState is the authoritative contract-side view of an escrow.
type EscrowState struct {
	Status           string
	TotalCollected   int64
	ParticipantCount uint32
}

// Gateway submits signed transactions to the ledger and reads contract
// state. Implementations must not mutate local storage.
type Gateway interface {
	SubmitTransaction(ctx context.Context, signedXDR string) (*SubmitResult, error)
	GetEscrowState(ctx context.Context, escrowID uint64) (*EscrowState, error)
	GetPenalty(ctx context.Context, escrowID uint64, wallet string) (int64, error)
}
