// Package domain contains persistence models for the business and
// service catalog that cart checkout draws from.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrNotOwner         = errors.New("caller does not own this business")
	ErrInvalidName      = errors.New("name is required")
	ErrInvalidPrice     = errors.New("price must be a positive finite number")
	ErrInvalidID        = errors.New("invalid identifier")
)

// Business is a provider listed in the catalog. WalletAddress receives
// escrowed funds when an invoice referencing its services is released.
type Business struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID       snowflake.ID `gorm:"not null;index" json:"owner_id"`
	Name          string       `gorm:"type:text;not null" json:"name"`
	Category      *string      `gorm:"type:text" json:"category,omitempty"`
	Description   *string      `gorm:"type:text" json:"description,omitempty"`
	LogoURL       *string      `gorm:"type:text" json:"logo_url,omitempty"`
	WalletAddress *string      `gorm:"type:text" json:"wallet_address,omitempty"`
	ContactEmail  *string      `gorm:"type:text" json:"contact_email,omitempty"`
	Active        bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Business) TableName() string { return "businesses" }

// Service is a purchasable offering of a business.
type Service struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	BusinessID  snowflake.ID `gorm:"not null;index" json:"business_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Description *string      `gorm:"type:text" json:"description,omitempty"`
	Price       float64      `gorm:"not null" json:"price"`
	ImageURL    *string      `gorm:"type:text" json:"image_url,omitempty"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Service) TableName() string { return "services" }

type CreateBusinessRequest struct {
	OwnerID       string  `json:"-"`
	Name          string  `json:"name"`
	Category      *string `json:"category,omitempty"`
	Description   *string `json:"description,omitempty"`
	LogoURL       *string `json:"logo_url,omitempty"`
	WalletAddress *string `json:"wallet_address,omitempty"`
	ContactEmail  *string `json:"contact_email,omitempty"`
}

type CreateServiceRequest struct {
	BusinessID  string  `json:"-"`
	CallerID    string  `json:"-"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Price       float64 `json:"price"`
	ImageURL    *string `json:"image_url,omitempty"`
}

type Catalog interface {
	CreateBusiness(ctx context.Context, req CreateBusinessRequest) (Business, error)
	GetBusiness(ctx context.Context, id string) (Business, error)
	ListBusinesses(ctx context.Context) ([]Business, error)
	ListBusinessesByOwner(ctx context.Context, ownerID string) ([]Business, error)

	CreateService(ctx context.Context, req CreateServiceRequest) (Service, error)
	GetService(ctx context.Context, id string) (Service, error)
	ListServices(ctx context.Context, businessID string) ([]Service, error)
	SearchServices(ctx context.Context, query string) ([]Service, error)
}
