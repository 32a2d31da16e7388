package events

import (
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketViewed       EventType = "ticket_viewed"
	EventTicketViewDenied   EventType = "ticket_view_denied"
	EventTicketResolved     EventType = "ticket_resolved"
	EventTicketForwarded    EventType = "ticket_forwarded"
	EventTicketActionFailed EventType = "ticket_action_failed"
)

// Actor encapsulates the session user behind an event.
type Actor struct {
	EmpID string      `json:"emp_id"`
	Role  domain.Role `json:"role"`
}

// Event represents something that happened in a ticket view.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketViewedPayload payload.
type TicketViewedPayload struct {
	Category domain.TicketCategory `json:"category"`
	Status   domain.TicketStatus   `json:"status"`
}

// TicketViewDeniedPayload payload.
type TicketViewDeniedPayload struct {
	OwnerEmpID string `json:"owner_emp_id"`
}

// TicketStatusChangedPayload payload for resolve and forward.
type TicketStatusChangedPayload struct {
	OldStatus     domain.TicketStatus `json:"old_status"`
	NewStatus     domain.TicketStatus `json:"new_status"`
	Remark        string              `json:"remark,omitempty"`
	ImageAttached bool                `json:"image_attached,omitempty"`
}

// TicketActionFailedPayload payload.
type TicketActionFailedPayload struct {
	Action       domain.ActionType    `json:"action"`
	Outcome      domain.ActionOutcome `json:"outcome"`
	TargetStatus domain.TicketStatus  `json:"target_status"`
	Remark       string               `json:"remark,omitempty"`
	Message      string               `json:"message"`
}
