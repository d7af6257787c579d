package service

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cotravel/cotravel/internal/clock"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	ledgerdomain "github.com/cotravel/cotravel/internal/ledger/domain"
	"github.com/cotravel/cotravel/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    invoicedomain.Repository
	ledger  ledgerdomain.Gateway
	metrics *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   invoicedomain.Repository
	Ledger ledgerdomain.Gateway

	Metrics *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		ledger:  p.Ledger,
		metrics: p.Metrics,
	}
}

// isTransitionAllowed encodes the legal status edges. Derived and
// client-requested transitions both go through it.
func isTransitionAllowed(current, target invoicedomain.InvoiceStatus) bool {
	allowed := map[invoicedomain.InvoiceStatus][]invoicedomain.InvoiceStatus{
		invoicedomain.InvoiceStatusDraft: {
			invoicedomain.InvoiceStatusFunding,
			invoicedomain.InvoiceStatusCancelled,
		},
		invoicedomain.InvoiceStatusFunding: {
			invoicedomain.InvoiceStatusCompleted,
			invoicedomain.InvoiceStatusReleased,
			invoicedomain.InvoiceStatusCancelled,
		},
		invoicedomain.InvoiceStatusCompleted: {
			invoicedomain.InvoiceStatusReleased,
			invoicedomain.InvoiceStatusCancelled,
		},
	}
	for _, status := range allowed[current] {
		if status == target {
			return true
		}
	}
	return false
}

func (s *Service) parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0)
}

func (s *Service) validateItems(reqs []invoicedomain.CreateInvoiceItemRequest) (float64, error) {
	if len(reqs) == 0 {
		return 0, invoicedomain.ErrInvalidItems
	}
	total := 0.0
	for _, item := range reqs {
		if strings.TrimSpace(item.Description) == "" {
			return 0, invoicedomain.ErrInvalidItems
		}
		if !validAmount(item.Amount) {
			return 0, invoicedomain.ErrInvalidAmount
		}
		total += item.Amount
	}
	return total, nil
}

func (s *Service) buildItems(invoiceID snowflake.ID, reqs []invoicedomain.CreateInvoiceItemRequest) []invoicedomain.InvoiceItem {
	now := s.clock.Now()
	items := make([]invoicedomain.InvoiceItem, 0, len(reqs))
	for i, req := range reqs {
		items = append(items, invoicedomain.InvoiceItem{
			ID:               s.genID.Generate(),
			InvoiceID:        invoiceID,
			Description:      strings.TrimSpace(req.Description),
			Amount:           req.Amount,
			RecipientAddress: req.RecipientAddress,
			SortOrder:        i,
			CreatedAt:        now,
		})
	}
	return items
}

// loadInvoice fetches an invoice or fails with not-found.
func (s *Service) loadInvoice(ctx context.Context, rawID string) (*invoicedomain.Invoice, error) {
	id, err := s.parseID(rawID, invoicedomain.ErrInvalidInvoiceID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.FindInvoiceByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

// lockInvoice re-reads the invoice inside a transaction, taking a row
// lock on postgres, so a concurrent transition cannot slip in between
// the precondition checks and the status write.
func (s *Service) lockInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	locked, err := s.repo.FindInvoiceByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	if locked.Status.IsTerminal() {
		return nil, invoicedomain.ErrInvoiceClosed
	}
	return locked, nil
}

func (s *Service) reload(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, s.db, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

// submitSigned forwards a pre-signed envelope to the ledger. Every
// operation calls it before touching local state, so a rejection leaves
// nothing to unwind.
func (s *Service) submitSigned(ctx context.Context, signedXDR string) (*ledgerdomain.SubmitResult, error) {
	if strings.TrimSpace(signedXDR) == "" {
		return nil, invoicedomain.ErrSignedTxRequired
	}
	return s.ledger.SubmitTransaction(ctx, signedXDR)
}

func ledgerEvent(result *ledgerdomain.SubmitResult, extra map[string]any) datatypes.JSONMap {
	event := datatypes.JSONMap{
		"tx_hash":         result.Hash,
		"ledger_sequence": result.LedgerSequence,
	}
	for k, v := range extra {
		event[k] = v
	}
	return event
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	organizerID, err := s.parseID(req.OrganizerID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidTitle
	}
	total, err := s.validateItems(req.Items)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if req.PenaltyPercent < 0 || req.PenaltyPercent > 100 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidPenalty
	}

	now := s.clock.Now()
	if req.Deadline != nil && !req.Deadline.After(now) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidDeadline
	}

	minParticipants := req.MinParticipants
	if minParticipants < 1 {
		minParticipants = 1
	}

	invoice := invoicedomain.Invoice{
		ID:              s.genID.Generate(),
		OrganizerID:     organizerID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Status:          invoicedomain.InvoiceStatusDraft,
		TotalAmount:     total,
		MinParticipants: minParticipants,
		PenaltyPercent:  req.PenaltyPercent,
		Deadline:        req.Deadline,
		AutoRelease:     req.AutoRelease,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	items := s.buildItems(invoice.ID, req.Items)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertInvoice(ctx, tx, &invoice); err != nil {
			return err
		}
		return s.repo.InsertItems(ctx, tx, items)
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice created",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Float64("total_amount", invoice.TotalAmount),
		zap.Int("items", len(items)))

	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceDetail, error) {
	invoice, err := s.loadInvoice(ctx, id)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	// Linked invoices refresh from the ledger on read so callers see
	// contract-side progress without waiting for the next mutation.
	if invoice.Linked() {
		if s.reconcile(ctx, invoice) {
			refreshed, err := s.reload(ctx, invoice.ID)
			if err != nil {
				return invoicedomain.InvoiceDetail{}, err
			}
			invoice = &refreshed
		}
	}

	items, err := s.repo.ListItems(ctx, s.db, invoice.ID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	participants, err := s.repo.ListParticipants(ctx, s.db, invoice.ID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	return invoicedomain.InvoiceDetail{
		Invoice:      *invoice,
		Items:        items,
		Participants: participants,
	}, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	userID, err := s.parseID(req.UserID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}

	invoices, err := s.repo.ListInvoicesByUser(ctx, s.db, userID, invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}
	return invoicedomain.ListInvoicesResponse{Invoices: invoices}, nil
}

func (s *Service) LinkContract(ctx context.Context, req invoicedomain.LinkContractRequest) (invoicedomain.Invoice, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	callerID, err := s.parseID(req.CallerID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.OrganizerID != callerID {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotOrganizer
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceClosed
	}
	if invoice.Linked() {
		return invoicedomain.Invoice{}, invoicedomain.ErrAlreadyLinked
	}
	if !isTransitionAllowed(invoice.Status, invoicedomain.InvoiceStatusFunding) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidTransition
	}

	result, err := s.submitSigned(ctx, req.SignedXDR)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if result.ReturnU64 == nil {
		return invoicedomain.Invoice{}, ledgerdomain.ErrLedgerRejected
	}
	contractInvoiceID := *result.ReturnU64

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		linked, err := s.repo.LinkContract(ctx, tx, invoice.ID, contractInvoiceID, now)
		if err != nil {
			return err
		}
		if !linked {
			return invoicedomain.ErrAlreadyLinked
		}
		return s.repo.InsertTransaction(ctx, tx, &invoicedomain.Transaction{
			ID:             s.genID.Generate(),
			InvoiceID:      invoice.ID,
			UserID:         callerID,
			Type:           invoicedomain.TransactionTypeCreate,
			TxHash:         result.Hash,
			Amount:         invoice.TotalAmount,
			LedgerSequence: int64(result.LedgerSequence),
			Event:          ledgerEvent(result, map[string]any{"contract_invoice_id": contractInvoiceID}),
			CreatedAt:      now,
		})
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice linked to escrow contract",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Uint64("contract_invoice_id", contractInvoiceID),
		zap.String("tx_hash", result.Hash))
	s.countTransition(invoicedomain.InvoiceStatusFunding)

	invoice.ContractInvoiceID = &contractInvoiceID
	s.reconcile(ctx, invoice)
	return s.reload(ctx, invoice.ID)
}

func (s *Service) UpdateItems(ctx context.Context, req invoicedomain.UpdateItemsRequest) (invoicedomain.Invoice, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	callerID, err := s.parseID(req.CallerID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.OrganizerID != callerID {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotOrganizer
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceClosed
	}
	newTotal, err := s.validateItems(req.Items)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if strings.TrimSpace(req.ChangeSummary) == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrChangeSummaryEmpty
	}

	// A linked invoice carries its recipient set on-chain, so the
	// modification must clear the contract before local bookkeeping.
	var result *ledgerdomain.SubmitResult
	if invoice.Linked() {
		result, err = s.submitSigned(ctx, req.SignedXDR)
		if err != nil {
			return invoicedomain.Invoice{}, err
		}
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oldItems, err := s.repo.ListItems(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		snapshot, err := json.Marshal(oldItems)
		if err != nil {
			return err
		}
		if err := s.repo.InsertModification(ctx, tx, &invoicedomain.InvoiceModification{
			ID:            s.genID.Generate(),
			InvoiceID:     invoice.ID,
			Version:       invoice.Version + 1,
			ChangeSummary: strings.TrimSpace(req.ChangeSummary),
			PreviousItems: datatypes.JSON(snapshot),
			CreatedAt:     now,
		}); err != nil {
			return err
		}
		if err := s.repo.ReplaceItems(ctx, tx, invoice.ID, s.buildItems(invoice.ID, req.Items)); err != nil {
			return err
		}
		if err := s.repo.BumpVersion(ctx, tx, invoice.ID, newTotal, now); err != nil {
			return err
		}
		if err := s.repo.ResetConfirmations(ctx, tx, invoice.ID, now); err != nil {
			return err
		}
		if result != nil {
			return s.repo.InsertTransaction(ctx, tx, &invoicedomain.Transaction{
				ID:             s.genID.Generate(),
				InvoiceID:      invoice.ID,
				UserID:         callerID,
				Type:           invoicedomain.TransactionTypeUpdateRecipients,
				TxHash:         result.Hash,
				Amount:         newTotal,
				LedgerSequence: int64(result.LedgerSequence),
				Event:          ledgerEvent(result, map[string]any{"version": invoice.Version + 1}),
				CreatedAt:      now,
			})
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice items replaced",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Int("version", invoice.Version+1),
		zap.Float64("total_amount", newTotal))

	if invoice.Linked() {
		s.reconcile(ctx, invoice)
	}
	return s.reload(ctx, invoice.ID)
}

func (s *Service) Release(ctx context.Context, req invoicedomain.ReleaseRequest) (invoicedomain.Invoice, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	callerID, err := s.parseID(req.CallerID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.OrganizerID != callerID {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotOrganizer
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceClosed
	}
	if !invoice.Linked() {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotLinked
	}
	if !isTransitionAllowed(invoice.Status, invoicedomain.InvoiceStatusReleased) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidTransition
	}

	result, err := s.submitSigned(ctx, req.SignedXDR)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockInvoice(ctx, tx, invoice.ID); err != nil {
			return err
		}
		if err := s.repo.UpdateInvoiceStatus(ctx, tx, invoice.ID, invoicedomain.InvoiceStatusReleased, now); err != nil {
			return err
		}
		return s.repo.InsertTransaction(ctx, tx, &invoicedomain.Transaction{
			ID:             s.genID.Generate(),
			InvoiceID:      invoice.ID,
			UserID:         callerID,
			Type:           invoicedomain.TransactionTypeRelease,
			TxHash:         result.Hash,
			Amount:         invoice.TotalCollected,
			LedgerSequence: int64(result.LedgerSequence),
			Event:          ledgerEvent(result, nil),
			CreatedAt:      now,
		})
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice released",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.String("tx_hash", result.Hash))
	s.countTransition(invoicedomain.InvoiceStatusReleased)

	s.reconcile(ctx, invoice)
	return s.reload(ctx, invoice.ID)
}

func (s *Service) Cancel(ctx context.Context, req invoicedomain.CancelRequest) (invoicedomain.Invoice, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	callerID, err := s.parseID(req.CallerID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.OrganizerID != callerID {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotOrganizer
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceClosed
	}

	// An unlinked draft cancels purely off-chain. Once linked, the
	// contract refunds contributors in the same ledger transaction.
	var result *ledgerdomain.SubmitResult
	if invoice.Linked() {
		result, err = s.submitSigned(ctx, req.SignedXDR)
		if err != nil {
			return invoicedomain.Invoice{}, err
		}
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockInvoice(ctx, tx, invoice.ID); err != nil {
			return err
		}
		if err := s.repo.UpdateInvoiceStatus(ctx, tx, invoice.ID, invoicedomain.InvoiceStatusCancelled, now); err != nil {
			return err
		}
		if result != nil {
			return s.repo.InsertTransaction(ctx, tx, &invoicedomain.Transaction{
				ID:             s.genID.Generate(),
				InvoiceID:      invoice.ID,
				UserID:         callerID,
				Type:           invoicedomain.TransactionTypeCancel,
				TxHash:         result.Hash,
				Amount:         invoice.TotalCollected,
				LedgerSequence: int64(result.LedgerSequence),
				Event:          ledgerEvent(result, nil),
				CreatedAt:      now,
			})
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice cancelled", zap.Int64("invoice_id", int64(invoice.ID)))
	s.countTransition(invoicedomain.InvoiceStatusCancelled)

	if invoice.Linked() {
		s.reconcile(ctx, invoice)
	}
	return s.reload(ctx, invoice.ID)
}

func (s *Service) ClaimDeadline(ctx context.Context, req invoicedomain.ClaimDeadlineRequest) (invoicedomain.Invoice, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	callerID, err := s.parseID(req.CallerID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceClosed
	}
	if !invoice.Linked() {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotLinked
	}
	if invoice.Deadline == nil || s.clock.Now().Before(*invoice.Deadline) {
		return invoicedomain.Invoice{}, invoicedomain.ErrDeadlineNotPassed
	}

	result, err := s.submitSigned(ctx, req.SignedXDR)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockInvoice(ctx, tx, invoice.ID); err != nil {
			return err
		}
		if err := s.repo.UpdateInvoiceStatus(ctx, tx, invoice.ID, invoicedomain.InvoiceStatusCancelled, now); err != nil {
			return err
		}
		return s.repo.InsertTransaction(ctx, tx, &invoicedomain.Transaction{
			ID:             s.genID.Generate(),
			InvoiceID:      invoice.ID,
			UserID:         callerID,
			Type:           invoicedomain.TransactionTypeClaimDeadline,
			TxHash:         result.Hash,
			Amount:         invoice.TotalCollected,
			LedgerSequence: int64(result.LedgerSequence),
			Event:          ledgerEvent(result, nil),
			CreatedAt:      now,
		})
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice deadline claimed",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Int64("caller_id", int64(callerID)))
	s.countTransition(invoicedomain.InvoiceStatusCancelled)

	s.reconcile(ctx, invoice)
	return s.reload(ctx, invoice.ID)
}

func (s *Service) countTransition(to invoicedomain.InvoiceStatus) {
	if s.metrics != nil {
		s.metrics.InvoiceTransitions.WithLabelValues(string(to)).Inc()
	}
}
