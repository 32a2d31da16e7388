package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/repository"
)

// JournalService records ticket view events in the action journal.
type JournalService struct {
	dispatcher events.Dispatcher
	actions    repository.ActionRepository
	logger     *zap.Logger
}

// NewJournalService creates the service.
func NewJournalService(dispatcher events.Dispatcher, actions repository.ActionRepository, logger *zap.Logger) *JournalService {
	return &JournalService{dispatcher: dispatcher, actions: actions, logger: logger}
}

// RegisterHandlers subscribes to events.
func (j *JournalService) RegisterHandlers() {
	if j.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketViewed,
		events.EventTicketViewDenied,
		events.EventTicketResolved,
		events.EventTicketForwarded,
		events.EventTicketActionFailed,
	} {
		j.dispatcher.Subscribe(eventType, j.record)
	}
}

// ListForTicket returns the newest journal entries of a ticket.
func (j *JournalService) ListForTicket(ctx context.Context, ticketID string, limit int) ([]domain.TicketAction, error) {
	return j.actions.ListByTicket(ctx, ticketID, limit)
}

func (j *JournalService) record(ctx context.Context, event events.Event) error {
	action, err := actionFromEvent(event)
	if err != nil {
		return err
	}
	if err := j.actions.Create(ctx, action); err != nil {
		return fmt.Errorf("journal %s: %w", event.Type, err)
	}
	j.logger.Debug("journaled ticket action",
		zap.String("ticket_id", action.TicketID),
		zap.String("action", string(action.Action)),
		zap.String("outcome", string(action.Outcome)))
	return nil
}

func actionFromEvent(event events.Event) (*domain.TicketAction, error) {
	action := &domain.TicketAction{
		ID:        event.ID,
		TicketID:  event.TicketID,
		EmpID:     event.Actor.EmpID,
		Role:      event.Actor.Role,
		CreatedAt: event.Timestamp,
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}

	switch payload := event.Payload.(type) {
	case events.TicketViewedPayload:
		action.Action = domain.ActionView
		action.Outcome = domain.OutcomeSucceeded
	case events.TicketViewDeniedPayload:
		action.Action = domain.ActionView
		action.Outcome = domain.OutcomeDenied
		action.Message = MsgNotAuthorized
	case events.TicketStatusChangedPayload:
		action.Action = domain.ActionResolve
		if event.Type == events.EventTicketForwarded {
			action.Action = domain.ActionForward
		}
		action.Outcome = domain.OutcomeSucceeded
		action.TargetStatus = payload.NewStatus
		action.Remark = payload.Remark
	case events.TicketActionFailedPayload:
		action.Action = payload.Action
		action.Outcome = payload.Outcome
		action.TargetStatus = payload.TargetStatus
		action.Remark = payload.Remark
		action.Message = payload.Message
	default:
		return nil, fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return action, nil
}
