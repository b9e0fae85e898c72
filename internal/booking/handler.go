package booking

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fastlead_backend/internal/leads/transport"
	"fastlead_backend/platform/httpkit"
)

// Handler exposes the booking operations to the operator API.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/availability", h.availability)
	rg.POST("/leads/:id/booking", h.book)
	rg.DELETE("/leads/:id/booking", h.cancel)
	rg.PATCH("/leads/:id/booking", h.reschedule)
}

type bookRequest struct {
	Start    time.Time `json:"start" binding:"required"`
	TimeZone string    `json:"timeZone"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	Start  time.Time `json:"start" binding:"required"`
	Reason string    `json:"reason"`
}

func (h *Handler) book(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.service.BookLead(c.Request.Context(), leadID, identity.TenantID(), req.Start, req.TimeZone)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.FromDomain(lead))
}

func (h *Handler) cancel(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	lead, err := h.service.CancelBooking(c.Request.Context(), leadID, identity.TenantID(), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(lead))
}

func (h *Handler) reschedule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.service.RescheduleBooking(c.Request.Context(), leadID, identity.TenantID(), req.Start, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(lead))
}

type availabilityResponse struct {
	Slots []slotResponse `json:"slots"`
}

type slotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitempty"`
}

func (h *Handler) availability(c *gin.Context) {
	if identity := httpkit.MustGetIdentity(c); identity == nil {
		return
	}

	from, err := parseTimeParam(c.Query("from"), time.Now().UTC())
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid from parameter", nil)
		return
	}
	to, err := parseTimeParam(c.Query("to"), from.Add(7*24*time.Hour))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid to parameter", nil)
		return
	}

	slots, err := h.service.Availability(c.Request.Context(), from, to)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := availabilityResponse{Slots: make([]slotResponse, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotResponse{Start: s.Start, End: s.End})
	}
	httpkit.OK(c, resp)
}

func parseTimeParam(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, value)
}
