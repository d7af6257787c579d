package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/cotravel/cotravel/internal/cart/domain"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	"github.com/cotravel/cotravel/internal/clock"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	invoicerepo "github.com/cotravel/cotravel/internal/invoice/repository"
	invoicesvc "github.com/cotravel/cotravel/internal/invoice/service"
	ledgerdomain "github.com/cotravel/cotravel/internal/ledger/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stubGateway satisfies the ledger interface for flows that never
// touch the chain. Checkout only creates draft invoices.
type stubGateway struct{}

func (stubGateway) SubmitTransaction(context.Context, string) (*ledgerdomain.SubmitResult, error) {
	return nil, ledgerdomain.ErrLedgerUnavailable
}

func (stubGateway) GetEscrowState(context.Context, uint64) (*ledgerdomain.EscrowState, error) {
	return nil, ledgerdomain.ErrStateNotFound
}

func (stubGateway) GetPenalty(context.Context, uint64, string) (int64, error) {
	return 0, ledgerdomain.ErrStateNotFound
}

type testEnv struct {
	db    *gorm.DB
	cart  cartdomain.Cart
	node  *snowflake.Node
	clock *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&cartdomain.CartItem{},
		&catalogdomain.Business{},
		&catalogdomain.Service{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceParticipant{},
		&invoicedomain.Transaction{},
		&invoicedomain.InvoiceModification{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	invoices := invoicesvc.NewService(invoicesvc.ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Repo:   invoicerepo.Provide(),
		Ledger: stubGateway{},
	})

	cart := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Invoices: invoices,
	})

	return &testEnv{db: db, cart: cart, node: node, clock: fake}
}

func (e *testEnv) seedService(t *testing.T, name string, price float64, wallet string) catalogdomain.Service {
	t.Helper()
	var walletPtr *string
	if wallet != "" {
		walletPtr = &wallet
	}
	business := catalogdomain.Business{
		ID:            e.node.Generate(),
		OwnerID:       e.node.Generate(),
		Name:          name + " provider",
		WalletAddress: walletPtr,
		Active:        true,
		CreatedAt:     e.clock.Now(),
		UpdatedAt:     e.clock.Now(),
	}
	require.NoError(t, e.db.Create(&business).Error)

	svc := catalogdomain.Service{
		ID:         e.node.Generate(),
		BusinessID: business.ID,
		Name:       name,
		Price:      price,
		Active:     true,
		CreatedAt:  e.clock.Now(),
		UpdatedAt:  e.clock.Now(),
	}
	require.NoError(t, e.db.Create(&svc).Error)
	return svc
}

func TestAddAccumulatesQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.node.Generate()
	svc := env.seedService(t, "city tour", 25, "GWALLET")

	item, err := env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	item, err = env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	var count int64
	require.NoError(t, env.db.Model(&cartdomain.CartItem{}).Where("user_id = ?", user).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddRejectsUnknownOrInactiveService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.node.Generate()

	_, err := env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: env.node.Generate().String(), Quantity: 1,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrServiceNotFound)

	svc := env.seedService(t, "museum pass", 10, "")
	require.NoError(t, env.db.Exec(`UPDATE services SET active = ? WHERE id = ?`, false, svc.ID).Error)

	_, err = env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 1,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrServiceNotFound)
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.node.Generate()
	svc := env.seedService(t, "boat trip", 40, "GWALLET")

	_, err := env.cart.UpdateQuantity(ctx, cartdomain.UpdateQuantityRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 2,
	})
	assert.ErrorIs(t, err, cartdomain.ErrItemNotFound)

	_, err = env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 1,
	})
	require.NoError(t, err)

	item, err := env.cart.UpdateQuantity(ctx, cartdomain.UpdateQuantityRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)

	_, err = env.cart.UpdateQuantity(ctx, cartdomain.UpdateQuantityRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 0,
	})
	assert.ErrorIs(t, err, cartdomain.ErrInvalidQuantity)

	require.NoError(t, env.cart.Remove(ctx, user.String(), svc.ID.String()))
	assert.ErrorIs(t, env.cart.Remove(ctx, user.String(), svc.ID.String()), cartdomain.ErrItemNotFound)
}

func TestListJoinsCatalogData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.node.Generate()
	tour := env.seedService(t, "city tour", 25, "GTOURWALLET")
	dinner := env.seedService(t, "group dinner", 18.5, "")

	for _, svc := range []catalogdomain.Service{tour, dinner} {
		_, err := env.cart.Add(ctx, cartdomain.AddItemRequest{
			UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 2,
		})
		require.NoError(t, err)
	}

	lines, err := env.cart.List(ctx, user.String())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "city tour", lines[0].ServiceName)
	assert.Equal(t, 25.0, lines[0].Price)
	require.NotNil(t, lines[0].BusinessWallet)
	assert.Equal(t, "GTOURWALLET", *lines[0].BusinessWallet)
	assert.Equal(t, "group dinner", lines[1].ServiceName)
	assert.Nil(t, lines[1].BusinessWallet)
}

func TestCheckoutBuildsInvoiceAndClearsCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.node.Generate()
	tour := env.seedService(t, "city tour", 25, "GTOURWALLET")
	dinner := env.seedService(t, "group dinner", 18.5, "")

	_, err := env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: tour.ID.String(), Quantity: 2,
	})
	require.NoError(t, err)
	_, err = env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: dinner.ID.String(), Quantity: 1,
	})
	require.NoError(t, err)

	deadline := env.clock.Now().Add(72 * time.Hour)
	invoice, err := env.cart.Checkout(ctx, cartdomain.CheckoutRequest{
		UserID:   user.String(),
		Title:    "Lisbon weekend",
		Deadline: &deadline,
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, 68.5, invoice.TotalAmount)
	assert.Equal(t, 1, invoice.MinParticipants)
	assert.Equal(t, 10, invoice.PenaltyPercent)

	var items []invoicedomain.InvoiceItem
	require.NoError(t, env.db.Where("invoice_id = ?", invoice.ID).Order("sort_order ASC").Find(&items).Error)
	require.Len(t, items, 2)
	assert.Equal(t, "city tour x2", items[0].Description)
	assert.Equal(t, 50.0, items[0].Amount)
	require.NotNil(t, items[0].RecipientAddress)
	assert.Equal(t, "GTOURWALLET", *items[0].RecipientAddress)
	assert.Equal(t, "group dinner", items[1].Description)
	assert.Equal(t, 18.5, items[1].Amount)

	lines, err := env.cart.List(ctx, user.String())
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCheckoutValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.node.Generate()
	deadline := env.clock.Now().Add(24 * time.Hour)

	_, err := env.cart.Checkout(ctx, cartdomain.CheckoutRequest{
		UserID: user.String(), Deadline: &deadline,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTitle)

	_, err = env.cart.Checkout(ctx, cartdomain.CheckoutRequest{
		UserID: user.String(), Title: "no deadline",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidDeadline)

	_, err = env.cart.Checkout(ctx, cartdomain.CheckoutRequest{
		UserID: user.String(), Title: "empty cart", Deadline: &deadline,
	})
	assert.ErrorIs(t, err, cartdomain.ErrCartEmpty)

	svc := env.seedService(t, "city tour", 25, "")
	_, err = env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 1,
	})
	require.NoError(t, err)

	penalty := 25
	invoice, err := env.cart.Checkout(ctx, cartdomain.CheckoutRequest{
		UserID:          user.String(),
		Title:           "custom terms",
		MinParticipants: 3,
		PenaltyPercent:  &penalty,
		Deadline:        &deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, invoice.MinParticipants)
	assert.Equal(t, 25, invoice.PenaltyPercent)
}

func TestCheckoutHonorsExplicitZeroPenalty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.node.Generate()
	deadline := env.clock.Now().Add(24 * time.Hour)

	svc := env.seedService(t, "city tour", 25, "")
	_, err := env.cart.Add(ctx, cartdomain.AddItemRequest{
		UserID: user.String(), ServiceID: svc.ID.String(), Quantity: 1,
	})
	require.NoError(t, err)

	zero := 0
	invoice, err := env.cart.Checkout(ctx, cartdomain.CheckoutRequest{
		UserID:         user.String(),
		Title:          "penalty free",
		PenaltyPercent: &zero,
		Deadline:       &deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, invoice.PenaltyPercent)
}
