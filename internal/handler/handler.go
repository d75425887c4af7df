package handler

import (
	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/database"
	"github.com/mailflow/mailflow/internal/logger"
	"github.com/mailflow/mailflow/internal/repository"
	"github.com/mailflow/mailflow/internal/sendjob"
	"github.com/mailflow/mailflow/internal/service"
)

// Handler holds all HTTP handlers
type Handler struct {
	db          *database.Postgres
	rdb         *database.Redis
	log         *logger.Logger
	cfg         *config.Config
	authSvc     *service.AuthService
	runner      *sendjob.Runner
	deliveryLog *repository.DeliveryLogRepository
}

// New creates a new Handler instance
func New(db *database.Postgres, rdb *database.Redis, log *logger.Logger, cfg *config.Config, authSvc *service.AuthService, runner *sendjob.Runner, deliveryLog *repository.DeliveryLogRepository) *Handler {
	return &Handler{
		db:          db,
		rdb:         rdb,
		log:         log,
		cfg:         cfg,
		authSvc:     authSvc,
		runner:      runner,
		deliveryLog: deliveryLog,
	}
}
