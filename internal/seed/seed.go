// Package seed bootstraps demo catalog data for local development.
package seed

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	"gorm.io/gorm"
)

type demoService struct {
	name        string
	description string
	price       float64
}

type demoBusiness struct {
	name     string
	category string
	wallet   string
	services []demoService
}

var demoCatalog = []demoBusiness{
	{
		name:     "Alfama Walks",
		category: "tours",
		wallet:   "GBZXN7PIRZGNMHGA7MUUUF4GWMY5G47V6USTPTZVVMXUS4GJT5OHUWVC",
		services: []demoService{
			{"Old town walking tour", "Three hours through Alfama and Graça", 25},
			{"Night fado tour", "Dinner and live fado in a local tasca", 60},
		},
	},
	{
		name:     "Tejo Boats",
		category: "activities",
		wallet:   "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ",
		services: []demoService{
			{"Sunset sailing", "Two hour sail on the Tagus", 45},
			{"Private charter", "Half day boat with skipper", 300},
		},
	},
}

// DemoDataRequested reports whether the environment asks for seeding.
func DemoDataRequested() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SEED_DEMO_DATA")))
	return v == "1" || v == "true"
}

// EnsureDemoCatalog inserts the demo businesses and services when they
// are not present. Matching is by business name, so reruns are no-ops.
func EnsureDemoCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, demo := range demoCatalog {
			if err := ensureBusinessTx(ctx, tx, node, demo); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureBusinessTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, demo demoBusiness) error {
	var existing catalogdomain.Business
	err := tx.WithContext(ctx).First(&existing, "name = ?", demo.name).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	category := demo.category
	wallet := demo.wallet
	business := catalogdomain.Business{
		ID:            node.Generate(),
		OwnerID:       node.Generate(),
		Name:          demo.name,
		Category:      &category,
		WalletAddress: &wallet,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(&business).Error; err != nil {
		return err
	}

	for _, svc := range demo.services {
		description := svc.description
		service := catalogdomain.Service{
			ID:          node.Generate(),
			BusinessID:  business.ID,
			Name:        svc.name,
			Description: &description,
			Price:       svc.price,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(&service).Error; err != nil {
			return err
		}
	}
	return nil
}
