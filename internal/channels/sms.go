package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
	"fastlead_backend/platform/phone"
)

// SMSAdapter delivers over the SMSC gateway.
type SMSAdapter struct {
	apiURL   string
	login    string
	password string
	sender   string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Logger
}

type smscResponse struct {
	ID        int    `json:"id"`
	Count     int    `json:"cnt"`
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

func NewSMSAdapter(cfg config.SMSConfig, log *logger.Logger) *SMSAdapter {
	return &SMSAdapter{
		apiURL:   cfg.GetSMSCAPIURL(),
		login:    cfg.GetSMSCLogin(),
		password: cfg.GetSMSCPassword(),
		sender:   cfg.GetSMSCSender(),
		http:     &http.Client{Timeout: 10 * time.Second},
		// The gateway rejects bursts of concurrent requests outright, so
		// throttle locally instead of burning retry attempts on it.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		log:     log,
	}
}

func (a *SMSAdapter) Channel() domain.Channel { return domain.ChannelSMS }

func (a *SMSAdapter) Validate(lead domain.Lead) error {
	if !phone.IsValid(lead.Phone) {
		return apperr.Validation("sms channel requires a valid phone number")
	}
	return nil
}

func (a *SMSAdapter) Send(ctx context.Context, req Request) (Result, error) {
	if err := a.Validate(req.Lead); err != nil {
		return Result{}, err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return Result{}, apperr.TransientProvider("sms rate limiter wait cancelled", err)
	}

	form := url.Values{}
	form.Set("login", a.login)
	form.Set("psw", a.password)
	form.Set("phones", phone.NormalizeE164(req.Lead.Phone))
	form.Set("mes", req.Message)
	form.Set("charset", "utf-8")
	form.Set("fmt", "3")
	if a.sender != "" {
		form.Set("sender", a.sender)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return Result{}, apperr.TransientProvider("smsc request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return Result{}, classifyHTTPStatus("smsc", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var body smscResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, apperr.TransientProvider("smsc response decode failed", err)
	}
	if body.Error != "" {
		return Result{}, classifySMSCError(body.ErrorCode, body.Error)
	}

	a.log.Info("sms sent", "message_id", body.ID, "parts", body.Count)
	return Result{Provider: "smsc", ProviderMessageID: strconv.Itoa(body.ID)}, nil
}

// classifySMSCError maps gateway error codes to the retry taxonomy.
// Code 4 is a temporary IP block and code 9 is the duplicate/concurrency
// throttle; both clear on their own. Everything else (bad credentials, bad
// number, forbidden message) will fail identically on retry.
func classifySMSCError(code int, message string) error {
	msg := fmt.Sprintf("smsc error %d: %s", code, message)
	switch code {
	case 4, 9:
		return apperr.TransientProvider(msg, nil)
	default:
		return apperr.PermanentProvider(msg, nil)
	}
}
