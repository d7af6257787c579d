// Package domain contains persistence models for per-user shopping
// carts that checkout turns into invoice drafts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
)

var (
	ErrCartEmpty       = errors.New("cart is empty")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidID       = errors.New("invalid identifier")
)

// CartItem is one (user, service) line. Adding the same service again
// bumps the quantity instead of inserting a second row.
type CartItem struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:idx_cart_user_service" json:"user_id"`
	ServiceID snowflake.ID `gorm:"not null;uniqueIndex:idx_cart_user_service" json:"service_id"`
	Quantity  int          `gorm:"not null;default:1" json:"quantity"`
	AddedAt   time.Time    `gorm:"not null" json:"added_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CartItem) TableName() string { return "cart_items" }

// CartLine is a cart item joined with its catalog data for display and
// checkout.
type CartLine struct {
	Item           CartItem `json:"item"`
	ServiceName    string   `json:"service_name"`
	Price          float64  `json:"price"`
	BusinessWallet *string  `json:"business_wallet,omitempty"`
}

type AddItemRequest struct {
	UserID    string `json:"-"`
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequest struct {
	UserID    string `json:"-"`
	ServiceID string `json:"-"`
	Quantity  int    `json:"quantity"`
}

type CheckoutRequest struct {
	UserID          string     `json:"-"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	MinParticipants int        `json:"min_participants"`
	PenaltyPercent  *int       `json:"penalty_percent,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	AutoRelease     bool       `json:"auto_release"`
}

type Cart interface {
	Add(ctx context.Context, req AddItemRequest) (CartItem, error)
	UpdateQuantity(ctx context.Context, req UpdateQuantityRequest) (CartItem, error)
	Remove(ctx context.Context, userID, serviceID string) error
	Clear(ctx context.Context, userID string) error
	List(ctx context.Context, userID string) ([]CartLine, error)

	// Checkout turns the cart into a draft invoice and empties it.
	Checkout(ctx context.Context, req CheckoutRequest) (invoicedomain.Invoice, error)
}
