package service

import (
	"github.com/sakya-app/sakya/internal/config"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/store"
	"github.com/sakya-app/sakya/internal/token"
)

type Services struct {
	IdentityService IdentityService
}

func NewServices(repos *store.Repositories, jwt *token.JWTService, cfg *config.StructuredConfig, logger *logger.Logger) *Services {
	return &Services{
		IdentityService: NewIdentityService(repos, jwt, cfg.Identity, logger),
	}
}
