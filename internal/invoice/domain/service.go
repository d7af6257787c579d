package domain

import (
	"context"
	"time"
)

type CreateInvoiceItemRequest struct {
	Description      string  `json:"description"`
	Amount           float64 `json:"amount"`
	RecipientAddress *string `json:"recipient_address,omitempty"`
}

type CreateInvoiceRequest struct {
	OrganizerID     string                     `json:"-"`
	Title           string                     `json:"title"`
	Description     *string                    `json:"description,omitempty"`
	Items           []CreateInvoiceItemRequest `json:"items"`
	MinParticipants int                        `json:"min_participants"`
	PenaltyPercent  int                        `json:"penalty_percent"`
	Deadline        *time.Time                 `json:"deadline,omitempty"`
	AutoRelease     bool                       `json:"auto_release"`
}

type ListInvoicesRequest struct {
	UserID string
	Status string
}

type ListInvoicesResponse struct {
	Invoices []Invoice `json:"invoices"`
}

// InvoiceDetail is the full aggregate returned by reads.
type InvoiceDetail struct {
	Invoice      Invoice              `json:"invoice"`
	Items        []InvoiceItem        `json:"items"`
	Participants []InvoiceParticipant `json:"participants"`
}

type LinkContractRequest struct {
	InvoiceID string `json:"-"`
	CallerID  string `json:"-"`
	SignedXDR string `json:"signed_xdr"`
}

type UpdateItemsRequest struct {
	InvoiceID     string                     `json:"-"`
	CallerID      string                     `json:"-"`
	Items         []CreateInvoiceItemRequest `json:"items"`
	ChangeSummary string                     `json:"change_summary"`
	SignedXDR     string                     `json:"signed_xdr,omitempty"`
}

type ReleaseRequest struct {
	InvoiceID string `json:"-"`
	CallerID  string `json:"-"`
	SignedXDR string `json:"signed_xdr"`
}

type CancelRequest struct {
	InvoiceID string `json:"-"`
	CallerID  string `json:"-"`
	SignedXDR string `json:"signed_xdr,omitempty"`
}

type ClaimDeadlineRequest struct {
	InvoiceID string `json:"-"`
	CallerID  string `json:"-"`
	SignedXDR string `json:"signed_xdr"`
}

type JoinRequest struct {
	InvoiceID string `json:"-"`
	UserID    string `json:"-"`
}

type ContributeRequest struct {
	InvoiceID string  `json:"-"`
	UserID    string  `json:"-"`
	Amount    float64 `json:"amount"`
	SignedXDR string  `json:"signed_xdr"`
}

type ContributeResponse struct {
	Participant InvoiceParticipant `json:"participant"`
	Invoice     Invoice            `json:"invoice"`
	TxHash      string             `json:"tx_hash"`
	AutoJoined  bool               `json:"auto_joined"`
}

type WithdrawRequest struct {
	InvoiceID     string `json:"-"`
	UserID        string `json:"-"`
	WalletAddress string `json:"-"`
	SignedXDR     string `json:"signed_xdr"`
}

type WithdrawResponse struct {
	Participant     InvoiceParticipant `json:"participant"`
	Invoice         Invoice            `json:"invoice"`
	TxHash          string             `json:"tx_hash"`
	WithdrawnAmount float64            `json:"withdrawn_amount"`
	PenaltyExempt   bool               `json:"penalty_exempt"`
	PenaltyPaid     *float64           `json:"penalty_paid,omitempty"`
}

type ConfirmReleaseRequest struct {
	InvoiceID string `json:"-"`
	UserID    string `json:"-"`
	SignedXDR string `json:"signed_xdr,omitempty"`
}

type ConfirmReleaseResponse struct {
	Participant       InvoiceParticipant `json:"participant"`
	Invoice           Invoice            `json:"invoice"`
	ConfirmationCount int                `json:"confirmation_count"`
	Released          bool               `json:"released"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id string) (InvoiceDetail, error)
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)

	LinkContract(ctx context.Context, req LinkContractRequest) (Invoice, error)
	UpdateItems(ctx context.Context, req UpdateItemsRequest) (Invoice, error)
	Release(ctx context.Context, req ReleaseRequest) (Invoice, error)
	Cancel(ctx context.Context, req CancelRequest) (Invoice, error)
	ClaimDeadline(ctx context.Context, req ClaimDeadlineRequest) (Invoice, error)

	Join(ctx context.Context, req JoinRequest) (InvoiceParticipant, error)
	Contribute(ctx context.Context, req ContributeRequest) (ContributeResponse, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResponse, error)
	ConfirmRelease(ctx context.Context, req ConfirmReleaseRequest) (ConfirmReleaseResponse, error)

	ListParticipants(ctx context.Context, invoiceID string) ([]InvoiceParticipant, error)
	ListTransactions(ctx context.Context, invoiceID string) ([]Transaction, error)
	ListModifications(ctx context.Context, invoiceID string) ([]InvoiceModification, error)
}
