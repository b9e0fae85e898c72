package webhook

import (
	apphttp "fastlead_backend/internal/http"
	"fastlead_backend/internal/leads/repository"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

// Module wires the reconciler and the webhook endpoint.
type Module struct {
	handler *Handler
}

func NewModule(store repository.LeadStore, cfg config.WebhookConfig, bus events.Bus, log *logger.Logger) *Module {
	reconciler := NewReconciler(store, bus, log)
	return &Module{handler: NewHandler(reconciler, cfg, log)}
}

func (m *Module) Name() string { return "webhook" }

// RegisterRoutes mounts the webhook endpoint on the public group; requests
// authenticate by signature, not by operator token.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1)
}
