// Package handler exposes the leads API over gin.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fastlead_backend/internal/leads/service"
	"fastlead_backend/internal/leads/transport"
	"fastlead_backend/platform/httpkit"
	"fastlead_backend/platform/validator"
)

const (
	msgInvalidRequest   = "Invalid request"
	msgValidationFailed = "Validation failed"
)

// Handler exposes the operator-facing lead endpoints.
type Handler struct {
	service *service.Service
	val     *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{service: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.POST("/:id/qualify", h.qualify)
	rg.POST("/:id/lost", h.markLost)
	rg.PUT("/:id/notes", h.setNotes)
}

func (h *Handler) list(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	leads, err := h.service.List(c.Request.Context(), identity.TenantID(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"leads": transport.FromDomainList(leads)})
}

func (h *Handler) get(c *gin.Context) {
	identity, leadID, ok := leadRequest(c)
	if !ok {
		return
	}

	lead, err := h.service.Get(c.Request.Context(), leadID, identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(lead))
}

func (h *Handler) qualify(c *gin.Context) {
	identity, leadID, ok := leadRequest(c)
	if !ok {
		return
	}

	lead, err := h.service.Qualify(c.Request.Context(), leadID, identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(lead))
}

func (h *Handler) markLost(c *gin.Context) {
	identity, leadID, ok := leadRequest(c)
	if !ok {
		return
	}

	lead, err := h.service.MarkLost(c.Request.Context(), leadID, identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(lead))
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=10000"`
}

func (h *Handler) setNotes(c *gin.Context) {
	identity, leadID, ok := leadRequest(c)
	if !ok {
		return
	}

	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.service.SetNotes(c.Request.Context(), leadID, identity.TenantID(), req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(lead))
}

func leadRequest(c *gin.Context) (httpkit.Identity, uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return nil, uuid.Nil, false
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return nil, uuid.Nil, false
	}
	return identity, leadID, true
}
