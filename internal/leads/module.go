// Package leads provides the lead lifecycle bounded context module.
package leads

import (
	apphttp "fastlead_backend/internal/http"
	"fastlead_backend/internal/leads/handler"
	"fastlead_backend/internal/leads/service"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
	"fastlead_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	service       *service.Service
	handler       *handler.Handler
	publicHandler *handler.PublicHandler
}

// NewModule wires the intake service and its handlers. The dispatcher is
// injected so the worker-side orchestrator and the API share one code path.
func NewModule(store service.Store, dispatcher service.Dispatcher, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(store, dispatcher, bus, log)
	return &Module{
		service:       svc,
		handler:       handler.New(svc, val),
		publicHandler: handler.NewPublicHandler(svc, val),
	}
}

func (m *Module) Name() string { return "leads" }

// Service returns the lead service for external use.
func (m *Module) Service() *service.Service { return m.service }

// RegisterRoutes mounts the widget intake on the public group and the
// operator endpoints behind authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.publicHandler.RegisterRoutes(ctx.V1)
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

var _ apphttp.Module = (*Module)(nil)
