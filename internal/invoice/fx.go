package invoice

import (
	"github.com/cotravel/cotravel/internal/invoice/repository"
	"github.com/cotravel/cotravel/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
