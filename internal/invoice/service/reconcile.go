package service

import (
	"context"

	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	ledgerdomain "github.com/cotravel/cotravel/internal/ledger/domain"
	"go.uber.org/zap"
)

// mapLedgerStatus folds contract statuses onto the local enum. The
// contract's initial "created" state corresponds to a linked invoice
// that is collecting funds.
func mapLedgerStatus(status string) invoicedomain.InvoiceStatus {
	switch status {
	case ledgerdomain.EscrowStatusCreated, ledgerdomain.EscrowStatusFunding:
		return invoicedomain.InvoiceStatusFunding
	case ledgerdomain.EscrowStatusCompleted:
		return invoicedomain.InvoiceStatusCompleted
	case ledgerdomain.EscrowStatusReleased:
		return invoicedomain.InvoiceStatusReleased
	case ledgerdomain.EscrowStatusCancelled:
		return invoicedomain.InvoiceStatusCancelled
	default:
		return ""
	}
}

// reconcile refreshes the cached escrow view from the ledger. It is
// strictly best effort: the mutation that triggered it has already
// succeeded, so a failed read only leaves the cache stale. It reports
// whether the refresh was applied.
func (s *Service) reconcile(ctx context.Context, invoice *invoicedomain.Invoice) bool {
	if !invoice.Linked() {
		return false
	}

	state, err := s.ledger.GetEscrowState(ctx, *invoice.ContractInvoiceID)
	if err != nil {
		s.log.Warn("escrow reconciliation failed, cache left stale",
			zap.Int64("invoice_id", int64(invoice.ID)),
			zap.Uint64("contract_invoice_id", *invoice.ContractInvoiceID),
			zap.Error(err))
		s.countReconciliation("failure")
		return false
	}

	// The caller's copy can predate a mutation in the same request, so
	// the funding target and minimum come from a fresh read.
	current, err := s.repo.FindInvoiceByID(ctx, s.db, invoice.ID)
	if err != nil || current == nil {
		s.log.Warn("reloading invoice for reconciliation failed",
			zap.Int64("invoice_id", int64(invoice.ID)),
			zap.Error(err))
		s.countReconciliation("failure")
		return false
	}

	status := mapLedgerStatus(state.Status)
	if status == "" {
		s.log.Warn("escrow reported unknown status",
			zap.Int64("invoice_id", int64(invoice.ID)),
			zap.String("status", state.Status))
		s.countReconciliation("failure")
		return false
	}

	totalCollected := ledgerdomain.StroopsToDecimal(state.TotalCollected)
	participantCount := int(state.ParticipantCount)

	// The completed state is derived, never requested: the ledger can
	// still call itself funding while the target and minimum
	// participants are already met.
	if status == invoicedomain.InvoiceStatusFunding &&
		totalCollected >= current.TotalAmount &&
		participantCount >= current.MinParticipants {
		status = invoicedomain.InvoiceStatusCompleted
	}

	if err := s.repo.ApplyLedgerState(ctx, s.db, invoice.ID, totalCollected, participantCount, status, s.clock.Now()); err != nil {
		s.log.Warn("applying reconciled state failed",
			zap.Int64("invoice_id", int64(invoice.ID)),
			zap.Error(err))
		s.countReconciliation("failure")
		return false
	}

	if status != current.Status {
		s.log.Info("reconciliation moved invoice status",
			zap.Int64("invoice_id", int64(invoice.ID)),
			zap.String("from", string(current.Status)),
			zap.String("to", string(status)))
		s.countTransition(status)
	}
	s.countReconciliation("success")
	return true
}

func (s *Service) countReconciliation(outcome string) {
	if s.metrics != nil {
		s.metrics.Reconciliations.WithLabelValues(outcome).Inc()
	}
}
