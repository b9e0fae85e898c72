// Package transport holds the wire DTOs for the leads API, shared by every
// handler that returns a lead.
package transport

import (
	"time"

	"github.com/google/uuid"

	"fastlead_backend/internal/leads/domain"
)

// LeadResponse is the API representation of a lead.
type LeadResponse struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`

	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	ChatID string `json:"chatId,omitempty"`

	Channel string `json:"channel"`
	Status  string `json:"status"`

	BookingRef *string    `json:"bookingRef,omitempty"`
	BookingURL *string    `json:"bookingUrl,omitempty"`
	BookedAt   *time.Time `json:"bookedAt,omitempty"`

	Source string      `json:"source,omitempty"`
	UTM    UTMResponse `json:"utm"`

	ConsentGDPR      bool `json:"consentGdpr"`
	ConsentMarketing bool `json:"consentMarketing"`

	Metadata map[string]any `json:"metadata,omitempty"`
	Notes    string         `json:"notes,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ContactedAt *time.Time `json:"contactedAt,omitempty"`
}

// UTMResponse mirrors the campaign attribution fields.
type UTMResponse struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Content  string `json:"content,omitempty"`
	Term     string `json:"term,omitempty"`
}

// FromDomain converts a lead into its API representation.
func FromDomain(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:       lead.ID,
		TenantID: lead.TenantID,
		Name:     lead.Name,
		Phone:    lead.Phone,
		Email:    lead.Email,
		ChatID:   lead.ChatID,
		Channel:  string(lead.Channel),
		Status:   string(lead.Status),

		BookingRef: lead.BookingRef,
		BookingURL: lead.BookingURL,
		BookedAt:   lead.BookedAt,

		Source: lead.Source,
		UTM: UTMResponse{
			Source:   lead.UTM.Source,
			Medium:   lead.UTM.Medium,
			Campaign: lead.UTM.Campaign,
			Content:  lead.UTM.Content,
			Term:     lead.UTM.Term,
		},

		ConsentGDPR:      lead.Consent.GDPR,
		ConsentMarketing: lead.Consent.Marketing,

		Metadata: lead.Metadata,
		Notes:    lead.Notes,

		CreatedAt:   lead.CreatedAt,
		UpdatedAt:   lead.UpdatedAt,
		ContactedAt: lead.ContactedAt,
	}
}

// FromDomainList converts a slice of leads.
func FromDomainList(leads []domain.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, FromDomain(lead))
	}
	return out
}
