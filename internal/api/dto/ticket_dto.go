package dto

import (
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// TicketResponse is the displayed copy of a remote ticket.
type TicketResponse struct {
	ID           string                `json:"id"`
	EmpID        string                `json:"emp_id"`
	Category     domain.TicketCategory `json:"category"`
	Remark       string                `json:"remark"`
	Status       domain.TicketStatus   `json:"status"`
	CreatedAt    *time.Time            `json:"created_at"`
	UpdatedAt    *time.Time            `json:"updated_at"`
	UpdateRemark string                `json:"update_remark"`
	Image        string                `json:"image,omitempty"`
}

// NoticeResponse reports the outcome of the last action.
type NoticeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ViewErrorResponse describes why no ticket is shown.
type ViewErrorResponse struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// ViewActionsResponse lists the actions offered to the viewer.
type ViewActionsResponse struct {
	CanResolve bool `json:"can_resolve"`
	CanForward bool `json:"can_forward"`
}

// TicketViewResponse is the JSON rendition of the ticket detail view.
type TicketViewResponse struct {
	TicketID         string              `json:"ticket_id"`
	State            domain.ViewState    `json:"state"`
	Ticket           *TicketResponse     `json:"ticket,omitempty"`
	Error            *ViewErrorResponse  `json:"error,omitempty"`
	Actions          ViewActionsResponse `json:"actions"`
	Notice           *NoticeResponse     `json:"notice,omitempty"`
	ResolveRemark    string              `json:"resolve_remark"`
	ForwardRemark    string              `json:"forward_remark"`
	ForwardImageName string              `json:"forward_image_name,omitempty"`
}

// ResolveRequest payload.
type ResolveRequest struct {
	Remark string `json:"remark" form:"remark"`
}

// ForwardRequest carries the text part of a forward; the image travels as a
// multipart file named "image".
type ForwardRequest struct {
	Remark string `json:"remark" form:"remark"`
}

// TicketActionResponse is one journal entry.
type TicketActionResponse struct {
	ID           string               `json:"id"`
	EmpID        string               `json:"emp_id"`
	Role         domain.Role          `json:"role"`
	Action       domain.ActionType    `json:"action"`
	TargetStatus domain.TicketStatus  `json:"target_status,omitempty"`
	Remark       string               `json:"remark,omitempty"`
	Outcome      domain.ActionOutcome `json:"outcome"`
	Message      string               `json:"message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// NewTicketViewResponse maps a view to its JSON form.
func NewTicketViewResponse(view *domain.TicketView) TicketViewResponse {
	resp := TicketViewResponse{
		TicketID:         view.TicketID,
		State:            view.State,
		Actions:          ViewActionsResponse{CanResolve: view.Actions.CanResolve, CanForward: view.Actions.CanForward},
		ResolveRemark:    view.ResolveRemark,
		ForwardRemark:    view.ForwardRemark,
		ForwardImageName: view.ForwardImageName,
	}
	if view.IsLoaded() {
		t := view.Ticket
		resp.Ticket = &TicketResponse{
			ID:           t.ID,
			EmpID:        t.EmpID,
			Category:     t.Category,
			Remark:       t.Remark,
			Status:       t.Status,
			CreatedAt:    optionalTime(t.CreatedAt),
			UpdatedAt:    optionalTime(t.UpdatedAt),
			UpdateRemark: t.UpdateRemark,
			Image:        t.Image,
		}
	}
	if view.State == domain.ViewStateError {
		resp.Error = &ViewErrorResponse{Kind: view.ErrorKind, Message: view.ErrorMessage}
	}
	if view.Notice != nil {
		resp.Notice = &NoticeResponse{Success: view.Notice.Success, Message: view.Notice.Message}
	}
	return resp
}

// NewTicketActionResponses maps journal entries.
func NewTicketActionResponses(actions []domain.TicketAction) []TicketActionResponse {
	items := make([]TicketActionResponse, 0, len(actions))
	for _, a := range actions {
		items = append(items, TicketActionResponse{
			ID:           a.ID,
			EmpID:        a.EmpID,
			Role:         a.Role,
			Action:       a.Action,
			TargetStatus: a.TargetStatus,
			Remark:       a.Remark,
			Outcome:      a.Outcome,
			Message:      a.Message,
			CreatedAt:    a.CreatedAt,
		})
	}
	return items
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
