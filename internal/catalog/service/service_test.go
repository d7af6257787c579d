package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	"github.com/cotravel/cotravel/internal/clock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc  catalogdomain.Catalog
	node *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&catalogdomain.Business{}, &catalogdomain.Service{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
	return &testEnv{svc: svc, node: node}
}

func (e *testEnv) createBusiness(t *testing.T, owner snowflake.ID, name string) catalogdomain.Business {
	t.Helper()
	business, err := e.svc.CreateBusiness(context.Background(), catalogdomain.CreateBusinessRequest{
		OwnerID: owner.String(),
		Name:    name,
	})
	require.NoError(t, err)
	return business
}

func TestCreateBusinessValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.node.Generate()

	_, err := env.svc.CreateBusiness(ctx, catalogdomain.CreateBusinessRequest{OwnerID: "nope", Name: "x"})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidID)

	_, err = env.svc.CreateBusiness(ctx, catalogdomain.CreateBusinessRequest{OwnerID: owner.String(), Name: "  "})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidName)

	business := env.createBusiness(t, owner, "Alfama Walks")
	assert.True(t, business.Active)

	got, err := env.svc.GetBusiness(ctx, business.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Alfama Walks", got.Name)

	_, err = env.svc.GetBusiness(ctx, env.node.Generate().String())
	assert.ErrorIs(t, err, catalogdomain.ErrBusinessNotFound)
}

func TestCreateServiceRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.node.Generate()
	stranger := env.node.Generate()
	business := env.createBusiness(t, owner, "Tejo Boats")

	_, err := env.svc.CreateService(ctx, catalogdomain.CreateServiceRequest{
		BusinessID: business.ID.String(),
		CallerID:   stranger.String(),
		Name:       "Sunset sailing",
		Price:      45,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrNotOwner)

	_, err = env.svc.CreateService(ctx, catalogdomain.CreateServiceRequest{
		BusinessID: business.ID.String(),
		CallerID:   owner.String(),
		Name:       "Sunset sailing",
		Price:      -1,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidPrice)

	created, err := env.svc.CreateService(ctx, catalogdomain.CreateServiceRequest{
		BusinessID: business.ID.String(),
		CallerID:   owner.String(),
		Name:       "Sunset sailing",
		Price:      45,
	})
	require.NoError(t, err)
	assert.Equal(t, business.ID, created.BusinessID)
}

func TestListAndSearchServices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.node.Generate()
	business := env.createBusiness(t, owner, "Alfama Walks")

	for _, name := range []string{"Old town walking tour", "Night fado tour", "Cooking class"} {
		_, err := env.svc.CreateService(ctx, catalogdomain.CreateServiceRequest{
			BusinessID: business.ID.String(),
			CallerID:   owner.String(),
			Name:       name,
			Price:      30,
		})
		require.NoError(t, err)
	}

	services, err := env.svc.ListServices(ctx, business.ID.String())
	require.NoError(t, err)
	assert.Len(t, services, 3)

	matches, err := env.svc.SearchServices(ctx, "tour")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	byOwner, err := env.svc.ListBusinessesByOwner(ctx, owner.String())
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, business.ID, byOwner[0].ID)
}
