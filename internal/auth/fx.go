package auth

import (
	"context"

	"github.com/cotravel/cotravel/internal/auth/challenge"
	"github.com/cotravel/cotravel/internal/auth/service"
	"github.com/cotravel/cotravel/internal/clock"
	"github.com/cotravel/cotravel/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(provideChallengeStore),
	fx.Provide(service.NewService),
)

func provideChallengeStore(lc fx.Lifecycle, cfg config.Config, clk clock.Clock) *challenge.Store {
	store := challenge.NewStore(cfg.Auth.ChallengeTTL, clk)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			store.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			store.Stop()
			return nil
		},
	})
	return store
}
