package migration

import (
	authdomain "github.com/cotravel/cotravel/internal/auth/domain"
	cartdomain "github.com/cotravel/cotravel/internal/cart/domain"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	"gorm.io/gorm"
)

// RunMigrations creates or updates the schema for every domain model.
// AutoMigrate keeps local sqlite and hosted postgres deployments in
// sync without a separate migration toolchain.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&authdomain.User{},
		&catalogdomain.Business{},
		&catalogdomain.Service{},
		&cartdomain.CartItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceParticipant{},
		&invoicedomain.Transaction{},
		&invoicedomain.InvoiceModification{},
	)
}
