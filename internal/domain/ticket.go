package domain

import "time"

// TicketStatus enumerates the statuses reported by the ticket API.
type TicketStatus string

const (
	TicketStatusOpen        TicketStatus = "Open"
	TicketStatusResolved    TicketStatus = "Resolved"
	TicketStatusForwardedL2 TicketStatus = "Forward to L2"
)

// TicketCategory enumerates the support areas a ticket is filed under.
type TicketCategory string

const (
	CategoryHardware TicketCategory = "Hardware"
	CategorySoftware TicketCategory = "Software"
	CategoryERP365   TicketCategory = "ERP365"
)

// Ticket is the locally held copy of a ticket owned by the remote ticket API.
type Ticket struct {
	ID           string
	EmpID        string
	Category     TicketCategory
	Remark       string
	Status       TicketStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UpdateRemark string
	Image        string
}

// HasImage reports whether the ticket references an attached image.
func (t *Ticket) HasImage() bool {
	return t != nil && t.Image != ""
}
