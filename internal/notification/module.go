package notification

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "fastlead_backend/internal/http"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

// Module wires the notification store, event subscribers, and API.
type Module struct {
	service *Service
	handler *Handler
}

func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) *Module {
	service := NewService(NewRepository(pool), log)
	service.RegisterSubscribers(bus)
	return &Module{
		service: service,
		handler: NewHandler(service),
	}
}

func (m *Module) Name() string { return "notification" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

var _ apphttp.Module = (*Module)(nil)
