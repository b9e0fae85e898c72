package domain

import (
	"time"

	"fastlead_backend/platform/apperr"
)

// Trigger identifies a state machine transition cause.
type Trigger string

const (
	// TriggerOutboundContactSucceeded fires when a channel adapter confirms
	// the first outbound message reached the provider.
	TriggerOutboundContactSucceeded Trigger = "outbound_contact_succeeded"
	// TriggerManualQualification fires when an operator qualifies the lead.
	TriggerManualQualification Trigger = "manual_qualification"
	// TriggerBookingCreated fires when a calendar booking is attached,
	// either by the booking service or by a provider webhook.
	TriggerBookingCreated Trigger = "booking_created"
	// TriggerBookingCancelled fires when the attached booking is cancelled.
	TriggerBookingCancelled Trigger = "booking_cancelled"
	// TriggerBookingCompleted fires when the attached booking took place.
	TriggerBookingCompleted Trigger = "booking_completed"
	// TriggerBookingRescheduled updates the booked time without changing status.
	TriggerBookingRescheduled Trigger = "booking_rescheduled"
	// TriggerManualLost fires on an explicit operator decision to drop the
	// lead. Lost is never entered automatically.
	TriggerManualLost Trigger = "manual_lost"
)

// Transition carries a trigger and its booking payload where applicable.
type Transition struct {
	Trigger    Trigger
	BookingRef string
	BookingURL string
	BookedAt   *time.Time
}

// Outcome reports what applying a transition did.
type Outcome int

const (
	// OutcomeApplied means the lead changed and must be persisted.
	OutcomeApplied Outcome = iota
	// OutcomeNoOp means the transition was a duplicate or out-of-order
	// replay; the lead is unchanged and no error is raised.
	OutcomeNoOp
)

func (o Outcome) String() string {
	if o == OutcomeApplied {
		return "applied"
	}
	return "no_op"
}

// Next computes the lead state after applying the transition. It is pure:
// the input lead is never mutated, and the returned lead is a copy.
//
// Duplicate and out-of-order replays resolve to OutcomeNoOp rather than an
// error; only genuinely contradictory requests (a second, different booking
// while one is unresolved, or an unknown trigger) return an error.
func Next(lead Lead, tr Transition) (Lead, Outcome, error) {
	switch tr.Trigger {
	case TriggerOutboundContactSucceeded:
		if lead.Status != StatusNew {
			return lead, OutcomeNoOp, nil
		}
		now := time.Now().UTC()
		lead.Status = StatusContacted
		lead.ContactedAt = &now
		return lead, OutcomeApplied, nil

	case TriggerManualQualification:
		if lead.Status != StatusContacted {
			return lead, OutcomeNoOp, nil
		}
		lead.Status = StatusQualified
		return lead, OutcomeApplied, nil

	case TriggerBookingCreated:
		if tr.BookingRef == "" {
			return lead, OutcomeNoOp, apperr.Validation("booking reference is required")
		}
		if lead.BookingRef != nil && *lead.BookingRef == tr.BookingRef {
			// Duplicate delivery of the same booking.
			return lead, OutcomeNoOp, nil
		}
		if lead.HasUnresolvedBooking() {
			return lead, OutcomeNoOp, apperr.Conflict("lead already has an unresolved booking")
		}
		switch lead.Status {
		case StatusNew, StatusContacted, StatusQualified:
			ref := tr.BookingRef
			lead.Status = StatusBooked
			lead.BookingRef = &ref
			if tr.BookingURL != "" {
				url := tr.BookingURL
				lead.BookingURL = &url
			}
			lead.BookedAt = tr.BookedAt
			return lead, OutcomeApplied, nil
		default:
			// Completed/Lost leads ignore late booking events.
			return lead, OutcomeNoOp, nil
		}

	case TriggerBookingCancelled:
		if !bookingRefMatches(lead, tr.BookingRef) || lead.Status != StatusBooked {
			return lead, OutcomeNoOp, nil
		}
		// Booking fields are retained for history.
		lead.Status = StatusQualified
		return lead, OutcomeApplied, nil

	case TriggerBookingCompleted:
		if !bookingRefMatches(lead, tr.BookingRef) || lead.Status != StatusBooked {
			return lead, OutcomeNoOp, nil
		}
		lead.Status = StatusCompleted
		return lead, OutcomeApplied, nil

	case TriggerBookingRescheduled:
		if !bookingRefMatches(lead, tr.BookingRef) || tr.BookedAt == nil || lead.Status.IsTerminal() {
			return lead, OutcomeNoOp, nil
		}
		// Time-only update; status is deliberately untouched so a reschedule
		// racing a cancellation cannot resurrect the booking.
		lead.BookedAt = tr.BookedAt
		return lead, OutcomeApplied, nil

	case TriggerManualLost:
		if lead.Status.IsTerminal() {
			return lead, OutcomeNoOp, nil
		}
		lead.Status = StatusLost
		return lead, OutcomeApplied, nil
	}

	return lead, OutcomeNoOp, apperr.Validation("unknown transition trigger: " + string(tr.Trigger))
}

func bookingRefMatches(lead Lead, ref string) bool {
	return lead.BookingRef != nil && ref != "" && *lead.BookingRef == ref
}
