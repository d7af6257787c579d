package catalog

import (
	"github.com/cotravel/cotravel/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(service.NewService),
)
