package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
)

const vkBaseURL = "https://api.vk.com"

// VKAdapter delivers through the VK messages API.
type VKAdapter struct {
	baseURL    string
	token      string
	apiVersion string
	http       *http.Client
	log        *logger.Logger
}

type vkResponse struct {
	Response int64 `json:"response"`
	Error    *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_msg"`
	} `json:"error"`
}

func NewVKAdapter(cfg config.MessengerConfig, log *logger.Logger) *VKAdapter {
	return &VKAdapter{
		baseURL:    vkBaseURL,
		token:      cfg.GetVKAccessToken(),
		apiVersion: cfg.GetVKAPIVersion(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (a *VKAdapter) Channel() domain.Channel { return domain.ChannelVK }

func (a *VKAdapter) Validate(lead domain.Lead) error {
	if lead.ChatID == "" {
		return apperr.Validation("vk channel requires a user identifier")
	}
	if _, err := strconv.ParseInt(lead.ChatID, 10, 64); err != nil {
		return apperr.Validation("vk user identifier must be numeric")
	}
	return nil
}

func (a *VKAdapter) Send(ctx context.Context, req Request) (Result, error) {
	if err := a.Validate(req.Lead); err != nil {
		return Result{}, err
	}

	form := url.Values{}
	form.Set("user_id", req.Lead.ChatID)
	form.Set("message", req.Message)
	// random_id deduplicates on the VK side if the same request is replayed.
	form.Set("random_id", strconv.FormatInt(rand.Int63(), 10))
	form.Set("access_token", a.token)
	form.Set("v", a.apiVersion)

	endpoint := a.baseURL + "/method/messages.send"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return Result{}, apperr.TransientProvider("vk request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body vkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, apperr.TransientProvider("vk response decode failed", err)
	}
	if body.Error != nil {
		return Result{}, classifyVKError(body.Error.Code, body.Error.Message)
	}

	a.log.Info("vk message sent", "user_id", req.Lead.ChatID)
	return Result{Provider: "vk", ProviderMessageID: strconv.FormatInt(body.Response, 10)}, nil
}

// classifyVKError maps VK API error codes to the retry taxonomy. Codes 1
// and 10 are VK-internal failures, 6 and 9 are request throttles; the rest
// (bad token, user unreachable, messages forbidden) are final.
func classifyVKError(code int, message string) error {
	msg := fmt.Sprintf("vk error %d: %s", code, message)
	switch code {
	case 1, 6, 9, 10:
		return apperr.TransientProvider(msg, nil)
	default:
		return apperr.PermanentProvider(msg, nil)
	}
}
