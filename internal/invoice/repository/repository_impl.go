package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, organizer_id, title, description, status, total_amount, total_collected,
			participant_count, confirmation_count, version, contract_invoice_id,
			min_participants, penalty_percent, deadline, auto_release, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.OrganizerID,
		invoice.Title,
		invoice.Description,
		invoice.Status,
		invoice.TotalAmount,
		invoice.TotalCollected,
		invoice.ParticipantCount,
		invoice.ConfirmationCount,
		invoice.Version,
		invoice.ContractInvoiceID,
		invoice.MinParticipants,
		invoice.PenaltyPercent,
		invoice.Deadline,
		invoice.AutoRelease,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []invoicedomain.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (
				id, invoice_id, description, amount, recipient_address, sort_order, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.InvoiceID,
			item.Description,
			item.Amount,
			item.RecipientAddress,
			item.SortOrder,
			item.CreatedAt,
		).Error; err != nil {
			return err
		}
	}

	return nil
}

func (r *repo) ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []invoicedomain.InvoiceItem) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM invoice_items WHERE invoice_id = ?`,
		invoiceID,
	).Error; err != nil {
		return err
	}
	return r.InsertItems(ctx, db, items)
}

const invoiceColumns = `id, organizer_id, title, description, status, total_amount, total_collected,
	 participant_count, confirmation_count, version, contract_invoice_id,
	 min_participants, penalty_percent, deadline, auto_release, created_at, updated_at`

func (r *repo) FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindInvoiceByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`
	if db.Dialector.Name() == "postgres" {
		query += ` FOR UPDATE`
	}

	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(query, id).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ListInvoicesByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, status invoicedomain.InvoiceStatus) ([]invoicedomain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
	 WHERE (organizer_id = ? OR id IN (SELECT invoice_id FROM invoice_participants WHERE user_id = ?))`
	args := []any{userID, userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	var invoices []invoicedomain.Invoice
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceItem, error) {
	var items []invoicedomain.InvoiceItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, description, amount, recipient_address, sort_order, created_at
		 FROM invoice_items WHERE invoice_id = ? ORDER BY sort_order ASC, id ASC`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) LinkContract(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, contractInvoiceID uint64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices SET contract_invoice_id = ?, status = ?, updated_at = ?
		 WHERE id = ? AND contract_invoice_id IS NULL`,
		contractInvoiceID,
		invoicedomain.InvoiceStatusFunding,
		now,
		invoiceID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateInvoiceStatus(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, status invoicedomain.InvoiceStatus, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		now,
		invoiceID,
	).Error
}

func (r *repo) ApplyLedgerState(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, totalCollected float64, participantCount int, status invoicedomain.InvoiceStatus, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET total_collected = ?, participant_count = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		totalCollected,
		participantCount,
		status,
		now,
		invoiceID,
	).Error
}

func (r *repo) SetParticipantCount(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, count int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET participant_count = ?, updated_at = ? WHERE id = ?`,
		count,
		now,
		invoiceID,
	).Error
}

func (r *repo) BumpVersion(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, newTotal float64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET total_amount = ?, version = version + 1, confirmation_count = 0, updated_at = ?
		 WHERE id = ?`,
		newTotal,
		now,
		invoiceID,
	).Error
}

func (r *repo) IncrementConfirmations(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET confirmation_count = confirmation_count + 1, updated_at = ? WHERE id = ?`,
		now,
		invoiceID,
	).Error
}

const participantColumns = `id, invoice_id, user_id, status, contributed_amount, contributed_at_version,
	 confirmed_release, penalty_paid, joined_at, withdrawn_at, created_at, updated_at`

func (r *repo) FindParticipant(ctx context.Context, db *gorm.DB, invoiceID, userID snowflake.ID) (*invoicedomain.InvoiceParticipant, error) {
	var participant invoicedomain.InvoiceParticipant
	err := db.WithContext(ctx).Raw(
		`SELECT `+participantColumns+` FROM invoice_participants WHERE invoice_id = ? AND user_id = ?`,
		invoiceID,
		userID,
	).Scan(&participant).Error
	if err != nil {
		return nil, err
	}
	if participant.ID == 0 {
		return nil, nil
	}
	return &participant, nil
}

func (r *repo) InsertParticipant(ctx context.Context, db *gorm.DB, participant *invoicedomain.InvoiceParticipant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_participants (
			id, invoice_id, user_id, status, contributed_amount, contributed_at_version,
			confirmed_release, penalty_paid, joined_at, withdrawn_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		participant.ID,
		participant.InvoiceID,
		participant.UserID,
		participant.Status,
		participant.ContributedAmount,
		participant.ContributedAtVersion,
		participant.ConfirmedRelease,
		participant.PenaltyPaid,
		participant.JoinedAt,
		participant.WithdrawnAt,
		participant.CreatedAt,
		participant.UpdatedAt,
	).Error
}

func (r *repo) ListParticipants(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceParticipant, error) {
	var participants []invoicedomain.InvoiceParticipant
	err := db.WithContext(ctx).Raw(
		`SELECT `+participantColumns+` FROM invoice_participants WHERE invoice_id = ? ORDER BY joined_at ASC`,
		invoiceID,
	).Scan(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *repo) CountActiveParticipants(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int, error) {
	var count int
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoice_participants WHERE invoice_id = ? AND status = ?`,
		invoiceID,
		invoicedomain.ParticipantStatusActive,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) AddContribution(ctx context.Context, db *gorm.DB, participantID snowflake.ID, amount float64, atVersion int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_participants
		 SET contributed_amount = contributed_amount + ?, contributed_at_version = ?, updated_at = ?
		 WHERE id = ?`,
		amount,
		atVersion,
		now,
		participantID,
	).Error
}

func (r *repo) MarkWithdrawn(ctx context.Context, db *gorm.DB, participantID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_participants
		 SET status = ?, contributed_amount = 0, withdrawn_at = ?, updated_at = ?
		 WHERE id = ?`,
		invoicedomain.ParticipantStatusWithdrawn,
		now,
		now,
		participantID,
	).Error
}

func (r *repo) Reactivate(ctx context.Context, db *gorm.DB, participantID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_participants
		 SET status = ?, confirmed_release = FALSE, withdrawn_at = NULL, updated_at = ?
		 WHERE id = ?`,
		invoicedomain.ParticipantStatusActive,
		now,
		participantID,
	).Error
}

func (r *repo) ConfirmParticipant(ctx context.Context, db *gorm.DB, participantID snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoice_participants SET confirmed_release = TRUE, updated_at = ?
		 WHERE id = ? AND confirmed_release = FALSE`,
		now,
		participantID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ResetConfirmations(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_participants SET confirmed_release = FALSE, updated_at = ?
		 WHERE invoice_id = ? AND confirmed_release = TRUE`,
		now,
		invoiceID,
	).Error
}

func (r *repo) SetPenaltyPaid(ctx context.Context, db *gorm.DB, participantID snowflake.ID, penalty float64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_participants SET penalty_paid = ?, updated_at = ? WHERE id = ?`,
		penalty,
		now,
		participantID,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *invoicedomain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, invoice_id, user_id, type, tx_hash, amount, ledger_sequence, event, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.InvoiceID,
		tx.UserID,
		tx.Type,
		tx.TxHash,
		tx.Amount,
		tx.LedgerSequence,
		tx.Event,
		tx.CreatedAt,
	).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.Transaction, error) {
	var transactions []invoicedomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, user_id, type, tx_hash, amount, ledger_sequence, event, created_at
		 FROM transactions WHERE invoice_id = ? ORDER BY created_at ASC, id ASC`,
		invoiceID,
	).Scan(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repo) InsertModification(ctx context.Context, db *gorm.DB, record *invoicedomain.InvoiceModification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_modifications (
			id, invoice_id, version, change_summary, previous_items, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.InvoiceID,
		record.Version,
		record.ChangeSummary,
		record.PreviousItems,
		record.CreatedAt,
	).Error
}

func (r *repo) ListModifications(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceModification, error) {
	var records []invoicedomain.InvoiceModification
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, version, change_summary, previous_items, created_at
		 FROM invoice_modifications WHERE invoice_id = ? ORDER BY version DESC`,
		invoiceID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
