package domain

import "time"

// ActionType names an operation performed through the ticket view.
type ActionType string

const (
	ActionView    ActionType = "view"
	ActionResolve ActionType = "resolve"
	ActionForward ActionType = "forward"
)

// ActionOutcome records how an action ended.
type ActionOutcome string

const (
	OutcomeSucceeded ActionOutcome = "succeeded"
	OutcomeFailed    ActionOutcome = "failed"
	OutcomeDenied    ActionOutcome = "denied"
)

// TicketAction is one entry of the local action journal.
type TicketAction struct {
	ID           string
	TicketID     string
	EmpID        string
	Role         Role
	Action       ActionType
	TargetStatus TicketStatus
	Remark       string
	Outcome      ActionOutcome
	Message      string
	CreatedAt    time.Time
}
