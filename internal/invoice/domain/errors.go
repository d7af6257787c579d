package domain

import "errors"

var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrParticipantNotFound = errors.New("participant not found")

	ErrInvalidInvoiceID   = errors.New("invalid invoice id")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrInvalidTitle       = errors.New("invoice title is required")
	ErrInvalidItems       = errors.New("invoice requires at least one valid item")
	ErrInvalidAmount      = errors.New("amount must be a positive finite number")
	ErrInvalidDeadline    = errors.New("deadline must be in the future")
	ErrInvalidPenalty     = errors.New("penalty percent must be between 0 and 100")
	ErrSignedTxRequired   = errors.New("a signed ledger transaction is required")
	ErrChangeSummaryEmpty = errors.New("change summary is required")

	ErrNotOrganizer       = errors.New("caller is not the invoice organizer")
	ErrInvoiceClosed      = errors.New("invoice is in a terminal state")
	ErrInvalidTransition  = errors.New("operation not allowed in current invoice status")
	ErrAlreadyLinked      = errors.New("invoice is already linked to an escrow contract")
	ErrNotLinked          = errors.New("invoice is not linked to an escrow contract")
	ErrAlreadyJoined      = errors.New("participant already joined")
	ErrAlreadyWithdrawn   = errors.New("participant already withdrew")
	ErrAlreadyConfirmed   = errors.New("participant already confirmed release")
	ErrConfirmUnavailable = errors.New("release confirmation is not open")
	ErrDeadlineNotPassed  = errors.New("invoice deadline has not passed")
)
