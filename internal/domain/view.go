package domain

import "time"

// ViewState is the display state of a ticket detail view.
type ViewState string

const (
	ViewStateLoading ViewState = "loading"
	ViewStateError   ViewState = "error"
	ViewStateLoaded  ViewState = "loaded"
)

// ErrorKind classifies failures surfaced to the viewer.
type ErrorKind string

const (
	ErrorKindAuthorization ErrorKind = "authorization"
	ErrorKindFetch         ErrorKind = "fetch"
	ErrorKindAction        ErrorKind = "action"
)

// Notice is a one-shot message shown after an action completes.
type Notice struct {
	Success bool
	Kind    ErrorKind
	Message string
}

// ViewActions lists the mutations the viewer may trigger on the loaded ticket.
type ViewActions struct {
	CanResolve bool
	CanForward bool
}

// TicketView is the transient, per-session state of one ticket detail view.
// The ticket copy is non-authoritative; the remote API is the source of truth.
type TicketView struct {
	SessionID string
	TicketID  string
	State     ViewState
	LoadedFor SessionUser
	LoadedAt  time.Time

	Ticket *Ticket

	ErrorKind    ErrorKind
	ErrorMessage string

	ResolveRemark    string
	ForwardRemark    string
	ForwardImageName string

	Actions ViewActions
	Notice  *Notice
}

// NewTicketView returns a view in the loading state.
func NewTicketView(sessionID, ticketID string, user SessionUser) *TicketView {
	return &TicketView{
		SessionID: sessionID,
		TicketID:  ticketID,
		State:     ViewStateLoading,
		LoadedFor: user,
	}
}

// Fail moves the view into the error state. Any ticket copy is dropped.
func (v *TicketView) Fail(kind ErrorKind, message string) {
	v.State = ViewStateError
	v.Ticket = nil
	v.ErrorKind = kind
	v.ErrorMessage = message
	v.Actions = ViewActions{}
}

// Loaded moves the view into the loaded state with the given ticket copy.
func (v *TicketView) Loaded(ticket *Ticket, at time.Time) {
	v.State = ViewStateLoaded
	v.Ticket = ticket
	v.ErrorKind = ""
	v.ErrorMessage = ""
	v.LoadedAt = at
}

// IsLoaded reports whether a ticket copy is on display.
func (v *TicketView) IsLoaded() bool {
	return v != nil && v.State == ViewStateLoaded && v.Ticket != nil
}

// ActionSucceeded records a success notice.
func (v *TicketView) ActionSucceeded(message string) {
	v.Notice = &Notice{Success: true, Message: message}
}

// ActionFailed records a failure notice without touching the ticket copy.
func (v *TicketView) ActionFailed(message string) {
	v.Notice = &Notice{Kind: ErrorKindAction, Message: message}
}
