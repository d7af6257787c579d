package service

import (
	"context"

	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	ledgerdomain "github.com/cotravel/cotravel/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Join(ctx context.Context, req invoicedomain.JoinRequest) (invoicedomain.InvoiceParticipant, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.InvoiceParticipant{}, err
	}
	userID, err := s.parseID(req.UserID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.InvoiceParticipant{}, err
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.InvoiceParticipant{}, invoicedomain.ErrInvoiceClosed
	}

	now := s.clock.Now()
	var joined invoicedomain.InvoiceParticipant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindParticipant(ctx, tx, invoice.ID, userID)
		if err != nil {
			return err
		}
		switch {
		case existing == nil:
			joined = invoicedomain.InvoiceParticipant{
				ID:                   s.genID.Generate(),
				InvoiceID:            invoice.ID,
				UserID:               userID,
				Status:               invoicedomain.ParticipantStatusActive,
				ContributedAtVersion: invoice.Version,
				JoinedAt:             now,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			if err := s.repo.InsertParticipant(ctx, tx, &joined); err != nil {
				return err
			}
			s.log.Info("participant joined",
				zap.Int64("invoice_id", int64(invoice.ID)),
				zap.Int64("user_id", int64(userID)))
		case existing.Status == invoicedomain.ParticipantStatusWithdrawn:
			// Rejoining resets membership, not the withdrawn amount.
			if err := s.repo.Reactivate(ctx, tx, existing.ID, now); err != nil {
				return err
			}
			existing.Status = invoicedomain.ParticipantStatusActive
			existing.ConfirmedRelease = false
			existing.WithdrawnAt = nil
			joined = *existing
			s.log.Info("participant rejoined",
				zap.Int64("invoice_id", int64(invoice.ID)),
				zap.Int64("user_id", int64(userID)))
		default:
			return invoicedomain.ErrAlreadyJoined
		}

		count, err := s.repo.CountActiveParticipants(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		return s.repo.SetParticipantCount(ctx, tx, invoice.ID, count, now)
	})
	if err != nil {
		return invoicedomain.InvoiceParticipant{}, err
	}
	return joined, nil
}

func (s *Service) Contribute(ctx context.Context, req invoicedomain.ContributeRequest) (invoicedomain.ContributeResponse, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.ContributeResponse{}, err
	}
	userID, err := s.parseID(req.UserID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.ContributeResponse{}, err
	}
	if !validAmount(req.Amount) {
		return invoicedomain.ContributeResponse{}, invoicedomain.ErrInvalidAmount
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.ContributeResponse{}, invoicedomain.ErrInvoiceClosed
	}
	// Contributions stay open through completed until the escrow is
	// actually released.
	if invoice.Status != invoicedomain.InvoiceStatusFunding && invoice.Status != invoicedomain.InvoiceStatusCompleted {
		return invoicedomain.ContributeResponse{}, invoicedomain.ErrInvalidTransition
	}
	if !invoice.Linked() {
		return invoicedomain.ContributeResponse{}, invoicedomain.ErrNotLinked
	}

	// The ledger enforces funding rules, including overfunding. A
	// rejection here aborts with no local mutation at all.
	result, err := s.submitSigned(ctx, req.SignedXDR)
	if err != nil {
		return invoicedomain.ContributeResponse{}, err
	}

	now := s.clock.Now()
	autoJoined := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participant, err := s.repo.FindParticipant(ctx, tx, invoice.ID, userID)
		if err != nil {
			return err
		}
		switch {
		case participant == nil:
			created := invoicedomain.InvoiceParticipant{
				ID:                   s.genID.Generate(),
				InvoiceID:            invoice.ID,
				UserID:               userID,
				Status:               invoicedomain.ParticipantStatusActive,
				ContributedAtVersion: invoice.Version,
				JoinedAt:             now,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			if err := s.repo.InsertParticipant(ctx, tx, &created); err != nil {
				return err
			}
			participant = &created
			autoJoined = true
			s.log.Info("participant auto-joined on first contribution",
				zap.Int64("invoice_id", int64(invoice.ID)),
				zap.Int64("user_id", int64(userID)))
		case participant.Status == invoicedomain.ParticipantStatusWithdrawn:
			if err := s.repo.Reactivate(ctx, tx, participant.ID, now); err != nil {
				return err
			}
			s.log.Info("withdrawn participant reactivated by contribution",
				zap.Int64("invoice_id", int64(invoice.ID)),
				zap.Int64("user_id", int64(userID)))
		}

		// The audit row goes in regardless of how the cache update
		// races with concurrent contributions.
		if err := s.repo.InsertTransaction(ctx, tx, &invoicedomain.Transaction{
			ID:             s.genID.Generate(),
			InvoiceID:      invoice.ID,
			UserID:         userID,
			Type:           invoicedomain.TransactionTypeContribute,
			TxHash:         result.Hash,
			Amount:         req.Amount,
			LedgerSequence: int64(result.LedgerSequence),
			Event:          ledgerEvent(result, map[string]any{"auto_joined": autoJoined}),
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		if err := s.repo.AddContribution(ctx, tx, participant.ID, req.Amount, invoice.Version, now); err != nil {
			return err
		}

		count, err := s.repo.CountActiveParticipants(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		return s.repo.SetParticipantCount(ctx, tx, invoice.ID, count, now)
	})
	if err != nil {
		return invoicedomain.ContributeResponse{}, err
	}

	s.reconcile(ctx, invoice)

	refreshed, err := s.reload(ctx, invoice.ID)
	if err != nil {
		return invoicedomain.ContributeResponse{}, err
	}
	participant, err := s.repo.FindParticipant(ctx, s.db, invoice.ID, userID)
	if err != nil {
		return invoicedomain.ContributeResponse{}, err
	}
	if participant == nil {
		return invoicedomain.ContributeResponse{}, invoicedomain.ErrParticipantNotFound
	}

	return invoicedomain.ContributeResponse{
		Participant: *participant,
		Invoice:     refreshed,
		TxHash:      result.Hash,
		AutoJoined:  autoJoined,
	}, nil
}

func (s *Service) Withdraw(ctx context.Context, req invoicedomain.WithdrawRequest) (invoicedomain.WithdrawResponse, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.WithdrawResponse{}, err
	}
	userID, err := s.parseID(req.UserID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.WithdrawResponse{}, err
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.WithdrawResponse{}, invoicedomain.ErrInvoiceClosed
	}
	if !invoice.Linked() {
		return invoicedomain.WithdrawResponse{}, invoicedomain.ErrNotLinked
	}

	participant, err := s.repo.FindParticipant(ctx, s.db, invoice.ID, userID)
	if err != nil {
		return invoicedomain.WithdrawResponse{}, err
	}
	if participant == nil {
		return invoicedomain.WithdrawResponse{}, invoicedomain.ErrParticipantNotFound
	}
	if participant.Status == invoicedomain.ParticipantStatusWithdrawn {
		return invoicedomain.WithdrawResponse{}, invoicedomain.ErrAlreadyWithdrawn
	}

	// The ledger computes and applies any penalty itself. A participant
	// whose last contribution predates the current item-set version is
	// exempt, anchored by contributed_at_version.
	penaltyExempt := participant.ContributedAtVersion < invoice.Version
	withdrawnAmount := participant.ContributedAmount

	result, err := s.submitSigned(ctx, req.SignedXDR)
	if err != nil {
		return invoicedomain.WithdrawResponse{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertTransaction(ctx, tx, &invoicedomain.Transaction{
			ID:             s.genID.Generate(),
			InvoiceID:      invoice.ID,
			UserID:         userID,
			Type:           invoicedomain.TransactionTypeWithdraw,
			TxHash:         result.Hash,
			Amount:         withdrawnAmount,
			LedgerSequence: int64(result.LedgerSequence),
			Event:          ledgerEvent(result, map[string]any{"penalty_exempt": penaltyExempt}),
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		if err := s.repo.MarkWithdrawn(ctx, tx, participant.ID, now); err != nil {
			return err
		}
		count, err := s.repo.CountActiveParticipants(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		return s.repo.SetParticipantCount(ctx, tx, invoice.ID, count, now)
	})
	if err != nil {
		return invoicedomain.WithdrawResponse{}, err
	}

	s.log.Info("participant withdrew",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Int64("user_id", int64(userID)),
		zap.Float64("amount", withdrawnAmount),
		zap.Bool("penalty_exempt", penaltyExempt))

	var penaltyPaid *float64
	if s.reconcile(ctx, invoice) && req.WalletAddress != "" {
		if penalty, err := s.ledger.GetPenalty(ctx, *invoice.ContractInvoiceID, req.WalletAddress); err != nil {
			s.log.Warn("penalty lookup failed",
				zap.Int64("invoice_id", int64(invoice.ID)),
				zap.Error(err))
		} else {
			decimal := ledgerdomain.StroopsToDecimal(penalty)
			penaltyPaid = &decimal
			if err := s.repo.SetPenaltyPaid(ctx, s.db, participant.ID, decimal, s.clock.Now()); err != nil {
				s.log.Warn("persisting penalty failed", zap.Error(err))
			}
		}
	}

	refreshed, err := s.reload(ctx, invoice.ID)
	if err != nil {
		return invoicedomain.WithdrawResponse{}, err
	}
	updated, err := s.repo.FindParticipant(ctx, s.db, invoice.ID, userID)
	if err != nil {
		return invoicedomain.WithdrawResponse{}, err
	}
	if updated == nil {
		return invoicedomain.WithdrawResponse{}, invoicedomain.ErrParticipantNotFound
	}

	return invoicedomain.WithdrawResponse{
		Participant:     *updated,
		Invoice:         refreshed,
		TxHash:          result.Hash,
		WithdrawnAmount: withdrawnAmount,
		PenaltyExempt:   penaltyExempt,
		PenaltyPaid:     penaltyPaid,
	}, nil
}

func (s *Service) ConfirmRelease(ctx context.Context, req invoicedomain.ConfirmReleaseRequest) (invoicedomain.ConfirmReleaseResponse, error) {
	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.ConfirmReleaseResponse{}, err
	}
	userID, err := s.parseID(req.UserID, invoicedomain.ErrInvalidUserID)
	if err != nil {
		return invoicedomain.ConfirmReleaseResponse{}, err
	}
	if invoice.Status.IsTerminal() {
		return invoicedomain.ConfirmReleaseResponse{}, invoicedomain.ErrInvoiceClosed
	}
	// Manual confirmation only exists for completed invoices that did
	// not opt into auto-release.
	if invoice.Status != invoicedomain.InvoiceStatusCompleted || invoice.AutoRelease {
		return invoicedomain.ConfirmReleaseResponse{}, invoicedomain.ErrConfirmUnavailable
	}

	participant, err := s.repo.FindParticipant(ctx, s.db, invoice.ID, userID)
	if err != nil {
		return invoicedomain.ConfirmReleaseResponse{}, err
	}
	if participant == nil || participant.Status != invoicedomain.ParticipantStatusActive {
		return invoicedomain.ConfirmReleaseResponse{}, invoicedomain.ErrParticipantNotFound
	}
	if participant.ConfirmedRelease {
		return invoicedomain.ConfirmReleaseResponse{}, invoicedomain.ErrAlreadyConfirmed
	}

	var result *ledgerdomain.SubmitResult
	if req.SignedXDR != "" {
		result, err = s.submitSigned(ctx, req.SignedXDR)
		if err != nil {
			return invoicedomain.ConfirmReleaseResponse{}, err
		}
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := s.repo.ConfirmParticipant(ctx, tx, participant.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return invoicedomain.ErrAlreadyConfirmed
		}
		if err := s.repo.IncrementConfirmations(ctx, tx, invoice.ID, now); err != nil {
			return err
		}
		if result != nil {
			return s.repo.InsertTransaction(ctx, tx, &invoicedomain.Transaction{
				ID:             s.genID.Generate(),
				InvoiceID:      invoice.ID,
				UserID:         userID,
				Type:           invoicedomain.TransactionTypeConfirmRelease,
				TxHash:         result.Hash,
				LedgerSequence: int64(result.LedgerSequence),
				Event:          ledgerEvent(result, nil),
				CreatedAt:      now,
			})
		}
		return nil
	})
	if err != nil {
		return invoicedomain.ConfirmReleaseResponse{}, err
	}

	s.log.Info("participant confirmed release",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Int64("user_id", int64(userID)))

	// Release only happens when the contract reports it. Unanimity is
	// tallied on-chain, never from the local count.
	s.reconcile(ctx, invoice)

	refreshed, err := s.reload(ctx, invoice.ID)
	if err != nil {
		return invoicedomain.ConfirmReleaseResponse{}, err
	}
	updated, err := s.repo.FindParticipant(ctx, s.db, invoice.ID, userID)
	if err != nil {
		return invoicedomain.ConfirmReleaseResponse{}, err
	}
	if updated == nil {
		return invoicedomain.ConfirmReleaseResponse{}, invoicedomain.ErrParticipantNotFound
	}

	return invoicedomain.ConfirmReleaseResponse{
		Participant:       *updated,
		Invoice:           refreshed,
		ConfirmationCount: refreshed.ConfirmationCount,
		Released:          refreshed.Status == invoicedomain.InvoiceStatusReleased,
	}, nil
}

func (s *Service) ListParticipants(ctx context.Context, invoiceID string) ([]invoicedomain.InvoiceParticipant, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListParticipants(ctx, s.db, invoice.ID)
}

func (s *Service) ListTransactions(ctx context.Context, invoiceID string) ([]invoicedomain.Transaction, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, s.db, invoice.ID)
}

func (s *Service) ListModifications(ctx context.Context, invoiceID string) ([]invoicedomain.InvoiceModification, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListModifications(ctx, s.db, invoice.ID)
}
