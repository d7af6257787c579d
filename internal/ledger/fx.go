package ledger

import (
	"context"

	"github.com/cotravel/cotravel/internal/ledger/domain"
	"github.com/cotravel/cotravel/internal/ledger/soroban"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ledger",
	fx.Provide(
		soroban.NewClient,
		func(c *soroban.Client) domain.Gateway { return c },
	),
	fx.Invoke(verifyNetwork),
)

// verifyNetwork checks the node's passphrase on startup. A mismatch is
// logged rather than fatal so the API stays up while the node recovers
// or the configuration is corrected.
func verifyNetwork(lc fx.Lifecycle, client *soroban.Client, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.VerifyNetwork(ctx); err != nil {
				log.Warn("soroban network verification failed", zap.Error(err))
			}
			return nil
		},
	})
}
