package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
)

const telegramBaseURL = "https://api.telegram.org"

// TelegramAdapter delivers through the Telegram Bot API.
type TelegramAdapter struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

type telegramSendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func NewTelegramAdapter(cfg config.MessengerConfig, log *logger.Logger) *TelegramAdapter {
	return &TelegramAdapter{
		baseURL: telegramBaseURL,
		token:   cfg.GetTelegramBotToken(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (a *TelegramAdapter) Channel() domain.Channel { return domain.ChannelTelegram }

func (a *TelegramAdapter) Validate(lead domain.Lead) error {
	if lead.ChatID == "" {
		return apperr.Validation("telegram channel requires a chat identifier")
	}
	return nil
}

func (a *TelegramAdapter) Send(ctx context.Context, req Request) (Result, error) {
	if err := a.Validate(req.Lead); err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(telegramSendRequest{
		ChatID: req.Lead.ChatID,
		Text:   req.Message,
	})
	if err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.baseURL, a.token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return Result{}, apperr.TransientProvider("telegram request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, apperr.TransientProvider("telegram response decode failed", err)
	}
	if !body.OK {
		detail := fmt.Sprintf("telegram error %d: %s", body.ErrorCode, body.Description)
		if body.ErrorCode == http.StatusTooManyRequests || body.ErrorCode >= http.StatusInternalServerError {
			return Result{}, apperr.TransientProvider(detail, nil)
		}
		return Result{}, apperr.PermanentProvider(detail, nil)
	}

	a.log.Info("telegram message sent", "chat_id", req.Lead.ChatID)
	return Result{
		Provider:          "telegram",
		ProviderMessageID: strconv.FormatInt(body.Result.MessageID, 10),
	}, nil
}
