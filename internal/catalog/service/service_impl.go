package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	"github.com/cotravel/cotravel/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) catalogdomain.Catalog {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, catalogdomain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) CreateBusiness(ctx context.Context, req catalogdomain.CreateBusinessRequest) (catalogdomain.Business, error) {
	ownerID, err := s.parseID(req.OwnerID)
	if err != nil {
		return catalogdomain.Business{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return catalogdomain.Business{}, catalogdomain.ErrInvalidName
	}

	now := s.clock.Now()
	business := catalogdomain.Business{
		ID:            s.genID.Generate(),
		OwnerID:       ownerID,
		Name:          strings.TrimSpace(req.Name),
		Category:      req.Category,
		Description:   req.Description,
		LogoURL:       req.LogoURL,
		WalletAddress: req.WalletAddress,
		ContactEmail:  req.ContactEmail,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&business).Error; err != nil {
		return catalogdomain.Business{}, err
	}

	s.log.Info("business created",
		zap.Int64("business_id", int64(business.ID)),
		zap.Int64("owner_id", int64(ownerID)))
	return business, nil
}

func (s *Service) GetBusiness(ctx context.Context, id string) (catalogdomain.Business, error) {
	businessID, err := s.parseID(id)
	if err != nil {
		return catalogdomain.Business{}, err
	}

	var business catalogdomain.Business
	err = s.db.WithContext(ctx).First(&business, "id = ?", businessID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return catalogdomain.Business{}, catalogdomain.ErrBusinessNotFound
	}
	if err != nil {
		return catalogdomain.Business{}, err
	}
	return business, nil
}

func (s *Service) ListBusinesses(ctx context.Context) ([]catalogdomain.Business, error) {
	var businesses []catalogdomain.Business
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at DESC").
		Find(&businesses).Error
	return businesses, err
}

func (s *Service) ListBusinessesByOwner(ctx context.Context, ownerID string) ([]catalogdomain.Business, error) {
	id, err := s.parseID(ownerID)
	if err != nil {
		return nil, err
	}

	var businesses []catalogdomain.Business
	err = s.db.WithContext(ctx).
		Where("owner_id = ?", id).
		Order("created_at DESC").
		Find(&businesses).Error
	return businesses, err
}

func (s *Service) CreateService(ctx context.Context, req catalogdomain.CreateServiceRequest) (catalogdomain.Service, error) {
	business, err := s.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return catalogdomain.Service{}, err
	}
	callerID, err := s.parseID(req.CallerID)
	if err != nil {
		return catalogdomain.Service{}, err
	}
	if business.OwnerID != callerID {
		return catalogdomain.Service{}, catalogdomain.ErrNotOwner
	}
	if strings.TrimSpace(req.Name) == "" {
		return catalogdomain.Service{}, catalogdomain.ErrInvalidName
	}
	if req.Price <= 0 || math.IsNaN(req.Price) || math.IsInf(req.Price, 0) {
		return catalogdomain.Service{}, catalogdomain.ErrInvalidPrice
	}

	now := s.clock.Now()
	service := catalogdomain.Service{
		ID:          s.genID.Generate(),
		BusinessID:  business.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&service).Error; err != nil {
		return catalogdomain.Service{}, err
	}
	return service, nil
}

func (s *Service) GetService(ctx context.Context, id string) (catalogdomain.Service, error) {
	serviceID, err := s.parseID(id)
	if err != nil {
		return catalogdomain.Service{}, err
	}

	var service catalogdomain.Service
	err = s.db.WithContext(ctx).First(&service, "id = ?", serviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return catalogdomain.Service{}, catalogdomain.ErrServiceNotFound
	}
	if err != nil {
		return catalogdomain.Service{}, err
	}
	return service, nil
}

func (s *Service) ListServices(ctx context.Context, businessID string) ([]catalogdomain.Service, error) {
	id, err := s.parseID(businessID)
	if err != nil {
		return nil, err
	}

	var services []catalogdomain.Service
	err = s.db.WithContext(ctx).
		Where("business_id = ? AND active = ?", id, true).
		Order("name ASC").
		Find(&services).Error
	return services, err
}

func (s *Service) SearchServices(ctx context.Context, query string) ([]catalogdomain.Service, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"

	var services []catalogdomain.Service
	err := s.db.WithContext(ctx).
		Where("active = ? AND (name LIKE ? OR description LIKE ?)", true, pattern, pattern).
		Order("name ASC").
		Find(&services).Error
	return services, err
}
