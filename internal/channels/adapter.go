// Package channels contains the outbound delivery adapters, one per contact
// channel. Adapters validate recipients locally before any network call and
// classify every provider failure as transient or permanent so the task
// queue can decide whether to retry.
package channels

import (
	"context"
	"fmt"
	"net/http"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
)

// Request is a single outbound message for a lead.
type Request struct {
	Lead    domain.Lead
	Message string
}

// Result reports a successful provider hand-off.
type Result struct {
	Provider          string
	ProviderMessageID string
}

// Adapter delivers a message over one channel.
//
// Send must return an apperr with KindTransientProvider for failures worth
// retrying (timeouts, 5xx, rate limits) and KindPermanentProvider for
// failures that will never succeed (bad recipient, rejected payload, auth).
type Adapter interface {
	Channel() domain.Channel
	// Validate checks the lead's contact data locally. A validation error
	// means the send would fail permanently; callers must not enqueue it.
	Validate(lead domain.Lead) error
	Send(ctx context.Context, req Request) (Result, error)
}

// classifyHTTPStatus maps a provider HTTP status to the retry taxonomy.
// 429 and 5xx are worth retrying; other 4xx are not.
func classifyHTTPStatus(provider string, status int, body string) error {
	msg := fmt.Sprintf("%s returned %d: %s", provider, status, body)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return apperr.TransientProvider(msg, nil)
	}
	return apperr.PermanentProvider(msg, nil)
}
