package booking

import (
	apphttp "fastlead_backend/internal/http"
	"fastlead_backend/internal/leads/repository"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

// Module wires the booking client, service, and handlers.
type Module struct {
	service *Service
	handler *Handler
}

func NewModule(store repository.LeadStore, cfg config.BookingConfig, bus events.Bus, log *logger.Logger) *Module {
	client := NewClient(cfg, log)
	service := NewService(store, client, bus, log)
	return &Module{
		service: service,
		handler: NewHandler(service),
	}
}

func (m *Module) Name() string { return "booking" }

func (m *Module) Service() *Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}
