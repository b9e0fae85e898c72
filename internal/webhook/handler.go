package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
)

const signatureHeader = "X-Cal-Signature"

// Handler terminates the provider webhook endpoint. Once an event parses
// and is handed to the reconciler, the handler acknowledges 200 regardless
// of the reconcile result; surfacing internal errors as 5xx would only make
// the provider redeliver an event that will fail identically.
type Handler struct {
	reconciler *Reconciler
	secret     string
	log        *logger.Logger
}

func NewHandler(reconciler *Reconciler, cfg config.WebhookConfig, log *logger.Logger) *Handler {
	h := &Handler{
		reconciler: reconciler,
		secret:     cfg.GetCalcomWebhookSecret(),
		log:        log,
	}
	if h.secret == "" {
		log.SecurityEvent("webhook_insecure_mode", "no webhook secret configured, signature verification disabled")
	}
	return h
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/calcom", h.receive)
}

type webhookEnvelope struct {
	TriggerEvent string `json:"triggerEvent"`
	Payload      struct {
		UID       string `json:"uid"`
		BookingID int64  `json:"bookingId"`
		StartTime string `json:"startTime"`
		Metadata  struct {
			LeadID string `json:"lead_id"`
		} `json:"metadata"`
	} `json:"payload"`
}

func (h *Handler) receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if h.secret != "" {
		if err := VerifySignature(h.secret, body, c.GetHeader(signatureHeader)); err != nil {
			h.log.SecurityEvent("webhook_signature_rejected", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	event := Event{
		Trigger:    envelope.TriggerEvent,
		BookingUID: envelope.Payload.UID,
		BookingID:  envelope.Payload.BookingID,
	}
	if start, err := time.Parse(time.RFC3339, envelope.Payload.StartTime); err == nil {
		event.Start = &start
	}
	if leadID, err := uuid.Parse(envelope.Payload.Metadata.LeadID); err == nil {
		event.LeadID = leadID
	}

	outcome, err := h.reconciler.Reconcile(c.Request.Context(), event)
	if err != nil {
		h.log.Error("webhook reconcile failed",
			"trigger", event.Trigger, "booking_uid", event.BookingUID, "error", err.Error())
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome.String()})
}
