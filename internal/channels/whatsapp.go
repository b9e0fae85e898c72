package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
	"fastlead_backend/platform/phone"
)

// WhatsAppAdapter delivers through the WhatsApp Cloud API.
type WhatsAppAdapter struct {
	baseURL       string
	token         string
	phoneNumberID string
	http          *http.Client
	log           *logger.Logger
}

type whatsAppSendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func NewWhatsAppAdapter(cfg config.MessengerConfig, log *logger.Logger) *WhatsAppAdapter {
	return &WhatsAppAdapter{
		baseURL:       strings.TrimRight(cfg.GetWhatsAppAPIURL(), "/"),
		token:         cfg.GetWhatsAppToken(),
		phoneNumberID: cfg.GetWhatsAppPhoneNumberID(),
		http:          &http.Client{Timeout: 10 * time.Second},
		log:           log,
	}
}

func (a *WhatsAppAdapter) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (a *WhatsAppAdapter) Validate(lead domain.Lead) error {
	if !phone.IsValid(lead.Phone) {
		return apperr.Validation("whatsapp channel requires a valid phone number")
	}
	return nil
}

func (a *WhatsAppAdapter) Send(ctx context.Context, req Request) (Result, error) {
	if err := a.Validate(req.Lead); err != nil {
		return Result{}, err
	}

	to := strings.TrimPrefix(phone.NormalizeE164(req.Lead.Phone), "+")
	payload, err := json.Marshal(whatsAppSendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             whatsAppText{Body: req.Message},
	})
	if err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/%s/messages", a.baseURL, a.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return Result{}, apperr.TransientProvider("whatsapp request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return Result{}, classifyHTTPStatus("whatsapp", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var body whatsAppResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, apperr.TransientProvider("whatsapp response decode failed", err)
	}

	messageID := ""
	if len(body.Messages) > 0 {
		messageID = body.Messages[0].ID
	}

	a.log.Info("whatsapp message sent", "to", to)
	return Result{Provider: "whatsapp", ProviderMessageID: messageID}, nil
}
