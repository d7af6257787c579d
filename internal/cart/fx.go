package cart

import (
	"github.com/cotravel/cotravel/internal/cart/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cart",
	fx.Provide(service.NewService),
)
