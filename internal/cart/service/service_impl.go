package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/cotravel/cotravel/internal/cart/domain"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	"github.com/cotravel/cotravel/internal/clock"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	invoices invoicedomain.Service
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Invoices invoicedomain.Service
}

func NewService(p ServiceParam) cartdomain.Cart {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("cart.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		invoices: p.Invoices,
	}
}

func (s *Service) parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, cartdomain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) Add(ctx context.Context, req cartdomain.AddItemRequest) (cartdomain.CartItem, error) {
	userID, err := s.parseID(req.UserID)
	if err != nil {
		return cartdomain.CartItem{}, err
	}
	serviceID, err := s.parseID(req.ServiceID)
	if err != nil {
		return cartdomain.CartItem{}, err
	}
	if req.Quantity < 1 {
		return cartdomain.CartItem{}, cartdomain.ErrInvalidQuantity
	}

	var svc catalogdomain.Service
	if err := s.db.WithContext(ctx).First(&svc, "id = ? AND active = ?", serviceID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cartdomain.CartItem{}, catalogdomain.ErrServiceNotFound
		}
		return cartdomain.CartItem{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Exec(`
		INSERT INTO cart_items (id, user_id, service_id, quantity, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, service_id)
		DO UPDATE SET quantity = cart_items.quantity + excluded.quantity, updated_at = excluded.updated_at
	`, s.genID.Generate(), userID, serviceID, req.Quantity, now, now).Error
	if err != nil {
		return cartdomain.CartItem{}, err
	}

	var item cartdomain.CartItem
	if err := s.db.WithContext(ctx).
		First(&item, "user_id = ? AND service_id = ?", userID, serviceID).Error; err != nil {
		return cartdomain.CartItem{}, err
	}

	s.log.Info("cart item added",
		zap.Int64("user_id", int64(userID)),
		zap.Int64("service_id", int64(serviceID)),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, req cartdomain.UpdateQuantityRequest) (cartdomain.CartItem, error) {
	userID, err := s.parseID(req.UserID)
	if err != nil {
		return cartdomain.CartItem{}, err
	}
	serviceID, err := s.parseID(req.ServiceID)
	if err != nil {
		return cartdomain.CartItem{}, err
	}
	if req.Quantity < 1 {
		return cartdomain.CartItem{}, cartdomain.ErrInvalidQuantity
	}

	res := s.db.WithContext(ctx).Exec(`
		UPDATE cart_items SET quantity = ?, updated_at = ?
		WHERE user_id = ? AND service_id = ?
	`, req.Quantity, s.clock.Now(), userID, serviceID)
	if res.Error != nil {
		return cartdomain.CartItem{}, res.Error
	}
	if res.RowsAffected == 0 {
		return cartdomain.CartItem{}, cartdomain.ErrItemNotFound
	}

	var item cartdomain.CartItem
	if err := s.db.WithContext(ctx).
		First(&item, "user_id = ? AND service_id = ?", userID, serviceID).Error; err != nil {
		return cartdomain.CartItem{}, err
	}
	return item, nil
}

func (s *Service) Remove(ctx context.Context, rawUserID, rawServiceID string) error {
	userID, err := s.parseID(rawUserID)
	if err != nil {
		return err
	}
	serviceID, err := s.parseID(rawServiceID)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Exec(`DELETE FROM cart_items WHERE user_id = ? AND service_id = ?`, userID, serviceID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cartdomain.ErrItemNotFound
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, rawUserID string) error {
	userID, err := s.parseID(rawUserID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Exec(`DELETE FROM cart_items WHERE user_id = ?`, userID).Error
}

func (s *Service) List(ctx context.Context, rawUserID string) ([]cartdomain.CartLine, error) {
	userID, err := s.parseID(rawUserID)
	if err != nil {
		return nil, err
	}
	return s.listLines(ctx, s.db, userID)
}

// listLines joins cart rows with their catalog service and the owning
// business so callers see the price and payout wallet per line.
func (s *Service) listLines(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]cartdomain.CartLine, error) {
	var rows []struct {
		cartdomain.CartItem
		ServiceName    string
		Price          float64
		BusinessWallet *string
	}
	err := db.WithContext(ctx).Raw(`
		SELECT ci.id, ci.user_id, ci.service_id, ci.quantity, ci.added_at, ci.updated_at,
		       s.name AS service_name, s.price AS price, b.wallet_address AS business_wallet
		FROM cart_items ci
		JOIN services s ON s.id = ci.service_id
		JOIN businesses b ON b.id = s.business_id
		WHERE ci.user_id = ?
		ORDER BY ci.added_at ASC, ci.id ASC
	`, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	lines := make([]cartdomain.CartLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, cartdomain.CartLine{
			Item:           r.CartItem,
			ServiceName:    r.ServiceName,
			Price:          r.Price,
			BusinessWallet: r.BusinessWallet,
		})
	}
	return lines, nil
}

func (s *Service) Checkout(ctx context.Context, req cartdomain.CheckoutRequest) (invoicedomain.Invoice, error) {
	userID, err := s.parseID(req.UserID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidTitle
	}
	if req.Deadline == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidDeadline
	}

	lines, err := s.listLines(ctx, s.db, userID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if len(lines) == 0 {
		return invoicedomain.Invoice{}, cartdomain.ErrCartEmpty
	}

	items := make([]invoicedomain.CreateInvoiceItemRequest, 0, len(lines))
	for _, line := range lines {
		description := line.ServiceName
		if line.Item.Quantity > 1 {
			description = fmt.Sprintf("%s x%d", line.ServiceName, line.Item.Quantity)
		}
		items = append(items, invoicedomain.CreateInvoiceItemRequest{
			Description:      description,
			Amount:           line.Price * float64(line.Item.Quantity),
			RecipientAddress: line.BusinessWallet,
		})
	}

	minParticipants := req.MinParticipants
	if minParticipants < 1 {
		minParticipants = 1
	}
	// An explicit zero disables the penalty; only absence falls back to
	// the default.
	penalty := 10
	if req.PenaltyPercent != nil {
		penalty = *req.PenaltyPercent
	}

	invoice, err := s.invoices.Create(ctx, invoicedomain.CreateInvoiceRequest{
		OrganizerID:     req.UserID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Items:           items,
		MinParticipants: minParticipants,
		PenaltyPercent:  penalty,
		Deadline:        req.Deadline,
		AutoRelease:     req.AutoRelease,
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	if err := s.Clear(ctx, req.UserID); err != nil {
		s.log.Warn("failed to clear cart after checkout",
			zap.Int64("user_id", int64(userID)),
			zap.Int64("invoice_id", int64(invoice.ID)),
			zap.Error(err))
	}

	s.log.Info("cart checked out",
		zap.Int64("user_id", int64(userID)),
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Int("items", len(items)))
	return invoice, nil
}
