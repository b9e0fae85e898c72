package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/internal/leads/service"
	"fastlead_backend/internal/leads/transport"
	"fastlead_backend/platform/httpkit"
	"fastlead_backend/platform/validator"
)

// tenantHeader carries the tenant identity from the embedded widget. The
// widget is public by nature, so the tenant id doubles as the routing key;
// operator endpoints use JWT auth instead.
const tenantHeader = "X-Tenant-Id"

// PublicHandler terminates the widget intake endpoint.
type PublicHandler struct {
	service *service.Service
	val     *validator.Validator
}

func NewPublicHandler(svc *service.Service, val *validator.Validator) *PublicHandler {
	return &PublicHandler{service: svc, val: val}
}

func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", h.create)
}

type createLeadRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Email   string `json:"email" validate:"omitempty,email,max=320"`
	ChatID  string `json:"chatId" validate:"omitempty,max=128"`
	Channel string `json:"channel" validate:"required,max=32"`
	Source  string `json:"source" validate:"omitempty,max=2048"`

	UTM struct {
		Source   string `json:"source" validate:"omitempty,max=255"`
		Medium   string `json:"medium" validate:"omitempty,max=255"`
		Campaign string `json:"campaign" validate:"omitempty,max=255"`
		Content  string `json:"content" validate:"omitempty,max=255"`
		Term     string `json:"term" validate:"omitempty,max=255"`
	} `json:"utm"`

	Consent struct {
		GDPR      bool `json:"gdpr"`
		Marketing bool `json:"marketing"`
	} `json:"consent"`

	Payload map[string]any `json:"payload"`
}

type createLeadResponse struct {
	Lead       transport.LeadResponse `json:"lead"`
	NextAction string                 `json:"nextAction"`
}

func (h *PublicHandler) create(c *gin.Context) {
	tenantID, err := uuid.Parse(c.GetHeader(tenantHeader))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "missing or invalid tenant id", nil)
		return
	}

	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, nextAction, err := h.service.CreateLead(c.Request.Context(), service.CreateLeadInput{
		TenantID: tenantID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		ChatID:   req.ChatID,
		Channel:  domain.Channel(req.Channel),
		Source:   req.Source,
		UTM: domain.UTM{
			Source:   req.UTM.Source,
			Medium:   req.UTM.Medium,
			Campaign: req.UTM.Campaign,
			Content:  req.UTM.Content,
			Term:     req.UTM.Term,
		},
		Consent: domain.Consent{
			GDPR:      req.Consent.GDPR,
			Marketing: req.Consent.Marketing,
		},
		Payload: req.Payload,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, createLeadResponse{
		Lead:       transport.FromDomain(lead),
		NextAction: nextAction,
	})
}
