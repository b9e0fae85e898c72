// Package booking integrates the calendar provider: a thin API client with
// normalized types plus a service that keeps bookings and lead state in sync.
package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
)

// Booking is the provider-independent view of a calendar booking. UID is the
// stable reference stored on the lead; ID is the provider's numeric handle
// needed for cancel and reschedule calls.
type Booking struct {
	ID     int64
	UID    string
	URL    string
	Start  time.Time
	End    time.Time
	Status string
}

// Slot is one bookable interval returned by availability lookups.
type Slot struct {
	Start time.Time
	End   time.Time
}

// CreateParams describes the booking to create for a lead. LeadID and
// TenantID travel in the provider-side metadata so inbound webhooks can be
// correlated back to the lead.
type CreateParams struct {
	Name     string
	Email    string
	Phone    string
	Start    time.Time
	TimeZone string
	LeadID   uuid.UUID
	TenantID uuid.UUID
}

// Client talks to the calendar provider API.
type Client struct {
	baseURL     string
	apiKey      string
	eventTypeID int
	http        *http.Client
	log         *logger.Logger
}

func NewClient(cfg config.BookingConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.GetCalcomAPIURL(), "/"),
		apiKey:      cfg.GetCalcomAPIKey(),
		eventTypeID: cfg.GetCalcomEventTypeID(),
		http:        &http.Client{Timeout: 15 * time.Second},
		log:         log,
	}
}

type createBookingRequest struct {
	EventTypeID int               `json:"eventTypeId"`
	Start       string            `json:"start"`
	TimeZone    string            `json:"timeZone"`
	Language    string            `json:"language"`
	Responses   bookingResponses  `json:"responses"`
	Metadata    map[string]string `json:"metadata"`
}

type bookingResponses struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type bookingPayload struct {
	ID        int64  `json:"id"`
	UID       string `json:"uid"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Status    string `json:"status"`
	Metadata  struct {
		VideoCallURL string `json:"videoCallUrl"`
	} `json:"metadata"`
}

func (c *Client) CreateBooking(ctx context.Context, p CreateParams) (Booking, error) {
	timeZone := p.TimeZone
	if timeZone == "" {
		timeZone = "Europe/Moscow"
	}

	body := createBookingRequest{
		EventTypeID: c.eventTypeID,
		Start:       p.Start.UTC().Format(time.RFC3339),
		TimeZone:    timeZone,
		Language:    "ru",
		Responses: bookingResponses{
			Name:  p.Name,
			Email: p.Email,
			Phone: p.Phone,
		},
		Metadata: map[string]string{
			"lead_id":   p.LeadID.String(),
			"tenant_id": p.TenantID.String(),
		},
	}

	var payload bookingPayload
	if err := c.do(ctx, http.MethodPost, "/bookings", nil, body, &payload); err != nil {
		return Booking{}, err
	}
	return c.normalize(payload), nil
}

func (c *Client) CancelBooking(ctx context.Context, id int64, reason string) error {
	query := url.Values{}
	if reason != "" {
		query.Set("cancellationReason", reason)
	}
	path := fmt.Sprintf("/bookings/%d/cancel", id)
	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}

func (c *Client) RescheduleBooking(ctx context.Context, id int64, newStart time.Time, reason string) (Booking, error) {
	body := map[string]string{
		"startTime": newStart.UTC().Format(time.RFC3339),
	}
	if reason != "" {
		body["reschedulingReason"] = reason
	}

	var payload bookingPayload
	path := fmt.Sprintf("/bookings/%d", id)
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &payload); err != nil {
		return Booking{}, err
	}
	return c.normalize(payload), nil
}

type availabilityPayload struct {
	Slots map[string][]struct {
		Time string `json:"time"`
	} `json:"slots"`
}

// GetAvailability lists open slots between from and to.
func (c *Client) GetAvailability(ctx context.Context, from, to time.Time) ([]Slot, error) {
	query := url.Values{}
	query.Set("eventTypeId", fmt.Sprintf("%d", c.eventTypeID))
	query.Set("startTime", from.UTC().Format(time.RFC3339))
	query.Set("endTime", to.UTC().Format(time.RFC3339))

	var payload availabilityPayload
	if err := c.do(ctx, http.MethodGet, "/slots", query, nil, &payload); err != nil {
		return nil, err
	}

	slots := make([]Slot, 0)
	for _, day := range payload.Slots {
		for _, s := range day {
			start, err := time.Parse(time.RFC3339, s.Time)
			if err != nil {
				continue
			}
			slots = append(slots, Slot{Start: start})
		}
	}
	return slots, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.apiKey)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.TransientProvider("calendar provider unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return classifyProviderStatus(resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.TransientProvider("calendar provider response decode failed", err)
	}
	return nil
}

func (c *Client) normalize(payload bookingPayload) Booking {
	start, _ := time.Parse(time.RFC3339, payload.StartTime)
	end, _ := time.Parse(time.RFC3339, payload.EndTime)
	return Booking{
		ID:     payload.ID,
		UID:    payload.UID,
		URL:    payload.Metadata.VideoCallURL,
		Start:  start,
		End:    end,
		Status: payload.Status,
	}
}

// classifyProviderStatus maps calendar API failures: 429 and 5xx retry,
// other 4xx (slot taken, bad event type, bad key) are final.
func classifyProviderStatus(status int, body string) error {
	msg := fmt.Sprintf("calendar provider returned %d: %s", status, body)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return apperr.TransientProvider(msg, nil)
	}
	return apperr.PermanentProvider(msg, nil)
}
