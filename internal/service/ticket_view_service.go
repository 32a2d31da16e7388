package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/ticketapi"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// Messages shown to the viewer.
const (
	MsgNotAuthorized   = "You are not authorized to view this ticket."
	MsgFetchRejected   = "Error fetching ticket details"
	MsgFetchFailed     = "Failed to fetch ticket details. Please try again."
	MsgResolved        = "Ticket resolved successfully."
	MsgResolveRejected = "Failed to resolve the ticket."
	MsgResolveFailed   = "Failed to resolve the ticket. Please try again."
	MsgResolveDenied   = "You are not permitted to resolve this ticket."
	MsgForwarded       = "Ticket forwarded to L2 successfully."
	MsgForwardRejected = "Failed to forward the ticket."
	MsgForwardFailed   = "Error while forwarding to L2. Try again."
	MsgForwardDenied   = "You are not permitted to forward this ticket."
	MsgActionBusy      = "Another update for this ticket is in progress."
)

// TicketAPI is the part of the remote ticket API the view relies on.
type TicketAPI interface {
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, in ticketapi.UpdateRequest) (*ticketapi.Result, error)
	ForwardTicket(ctx context.Context, in ticketapi.ForwardRequest) (*ticketapi.Result, error)
}

// TicketViewDependencies bundles collaborators for the ticket view service.
type TicketViewDependencies struct {
	API           TicketAPI
	Views         repository.ViewStore
	Policy        *auth.Policy
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	ViewTTL       time.Duration
	LockTTL       time.Duration
	MaxImageBytes int64
	Now           func() time.Time
}

// TicketViewService runs the ticket detail view: load on mount, then the
// resolve and forward actions against the stored view.
type TicketViewService struct {
	api           TicketAPI
	views         repository.ViewStore
	policy        *auth.Policy
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	viewTTL       time.Duration
	lockTTL       time.Duration
	maxImageBytes int64
	now           func() time.Time
}

// NewTicketViewService constructs the service.
func NewTicketViewService(deps TicketViewDependencies) *TicketViewService {
	svc := &TicketViewService{
		api:           deps.API,
		views:         deps.Views,
		policy:        deps.Policy,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		viewTTL:       deps.ViewTTL,
		lockTTL:       deps.LockTTL,
		maxImageBytes: deps.MaxImageBytes,
		now:           deps.Now,
	}
	if svc.policy == nil {
		svc.policy = auth.DefaultPolicy()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.viewTTL <= 0 {
		svc.viewTTL = time.Hour
	}
	if svc.lockTTL <= 0 {
		svc.lockTTL = time.Minute
	}
	if svc.maxImageBytes <= 0 {
		svc.maxImageBytes = 5 << 20
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Policy exposes the authorization gate used by the view.
func (s *TicketViewService) Policy() *auth.Policy {
	return s.policy
}

// Load mounts the view: exactly one read of the ticket, then the view is
// either loaded, an authorization error or a fetch error.
func (s *TicketViewService) Load(ctx context.Context, principal *auth.Principal, ticketID string) (*domain.TicketView, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	view := s.mount(ctx, principal, ticketID)
	s.save(ctx, view)
	return view, nil
}

// Resolve marks the ticket resolved with the given remark.
func (s *TicketViewService) Resolve(ctx context.Context, principal *auth.Principal, ticketID, remark string) (*domain.TicketView, error) {
	keep := func(view *domain.TicketView) {
		view.ResolveRemark = remark
	}
	return s.runAction(ctx, principal, ticketID, keep, func(view *domain.TicketView) {
		s.resolve(ctx, principal, view, remark)
	})
}

// Forward escalates the ticket to L2 with a remark and an optional image.
func (s *TicketViewService) Forward(ctx context.Context, principal *auth.Principal, ticketID, remark string, image *ticketapi.Upload) (*domain.TicketView, error) {
	keep := func(view *domain.TicketView) {
		view.ForwardRemark = remark
		if image != nil {
			view.ForwardImageName = image.FileName
		}
	}
	return s.runAction(ctx, principal, ticketID, keep, func(view *domain.TicketView) {
		s.forward(ctx, principal, view, remark, image)
	})
}

// runAction holds the view lock around action so that a view has at most one
// update in flight. keep copies the submitted inputs into a view the action
// does not get to run on.
func (s *TicketViewService) runAction(ctx context.Context, principal *auth.Principal, ticketID string, keep, action func(*domain.TicketView)) (*domain.TicketView, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}

	token, locked, err := s.views.Lock(ctx, principal.SessionID, ticketID, s.lockTTL)
	if err != nil {
		return nil, apperrors.NewUnavailable("view store", err)
	}
	if !locked {
		view := s.viewFor(ctx, principal, ticketID)
		if view.IsLoaded() {
			keep(view)
		}
		view.ActionFailed(MsgActionBusy)
		return view, nil
	}
	defer func() {
		if err := s.views.Unlock(context.WithoutCancel(ctx), principal.SessionID, ticketID, token); err != nil {
			s.logger.Warn("release view lock", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}()

	view := s.viewFor(ctx, principal, ticketID)
	view.Notice = nil
	if view.IsLoaded() {
		action(view)
	}
	s.save(ctx, view)
	return view, nil
}

func (s *TicketViewService) resolve(ctx context.Context, principal *auth.Principal, view *domain.TicketView, remark string) {
	user := principal.User
	view.ResolveRemark = remark

	if !s.policy.CanResolve(user, view.Ticket) {
		view.ActionFailed(MsgResolveDenied)
		s.publishFailure(ctx, view, user, domain.ActionResolve, domain.OutcomeDenied, domain.TicketStatusResolved, remark)
		return
	}

	_, err := s.api.UpdateTicket(ctx, ticketapi.UpdateRequest{
		ID:           ticketIDOf(view),
		Status:       domain.TicketStatusResolved,
		UpdateRemark: remark,
	})
	if err != nil {
		view.ActionFailed(failureMessage(err, MsgResolveRejected, MsgResolveFailed))
		s.logger.Info("resolve failed", zap.String("ticket_id", view.TicketID), zap.String("emp_id", user.EmpID), zap.Error(err))
		s.publishFailure(ctx, view, user, domain.ActionResolve, domain.OutcomeFailed, domain.TicketStatusResolved, remark)
		return
	}

	oldStatus := view.Ticket.Status
	view.Ticket.Status = domain.TicketStatusResolved
	view.Ticket.UpdatedAt = s.now()
	view.ResolveRemark = ""
	view.Actions = s.policy.Actions(user, view.Ticket)
	view.ActionSucceeded(MsgResolved)
	s.logger.Info("ticket resolved", zap.String("ticket_id", view.TicketID), zap.String("emp_id", user.EmpID))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: view.TicketID,
		Actor:    actorOf(user),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: domain.TicketStatusResolved,
			Remark:    remark,
		},
	})
}

func (s *TicketViewService) forward(ctx context.Context, principal *auth.Principal, view *domain.TicketView, remark string, image *ticketapi.Upload) {
	user := principal.User
	view.ForwardRemark = remark
	if image != nil {
		view.ForwardImageName = image.FileName
	}

	if !s.policy.CanForward(user, view.Ticket) {
		view.ActionFailed(MsgForwardDenied)
		s.publishFailure(ctx, view, user, domain.ActionForward, domain.OutcomeDenied, domain.TicketStatusForwardedL2, remark)
		return
	}
	if image != nil && !s.acceptableImage(image) {
		view.ActionFailed(fmt.Sprintf("Only image files up to %s can be attached.", formatBytes(s.maxImageBytes)))
		s.publishFailure(ctx, view, user, domain.ActionForward, domain.OutcomeFailed, domain.TicketStatusForwardedL2, remark)
		return
	}

	_, err := s.api.ForwardTicket(ctx, ticketapi.ForwardRequest{
		ID:           ticketIDOf(view),
		Status:       domain.TicketStatusForwardedL2,
		UpdateRemark: remark,
		Image:        image,
	})
	if err != nil {
		view.ActionFailed(failureMessage(err, MsgForwardRejected, MsgForwardFailed))
		s.logger.Info("forward failed", zap.String("ticket_id", view.TicketID), zap.String("emp_id", user.EmpID), zap.Error(err))
		s.publishFailure(ctx, view, user, domain.ActionForward, domain.OutcomeFailed, domain.TicketStatusForwardedL2, remark)
		return
	}

	oldStatus := view.Ticket.Status
	view.Ticket.Status = domain.TicketStatusForwardedL2
	view.Ticket.UpdatedAt = s.now()
	view.Ticket.UpdateRemark = remark
	view.ForwardRemark = ""
	view.ForwardImageName = ""
	view.Actions = s.policy.Actions(user, view.Ticket)
	view.ActionSucceeded(MsgForwarded)
	s.logger.Info("ticket forwarded to L2", zap.String("ticket_id", view.TicketID), zap.String("emp_id", user.EmpID))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketForwarded,
		TicketID: view.TicketID,
		Actor:    actorOf(user),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:     oldStatus,
			NewStatus:     domain.TicketStatusForwardedL2,
			Remark:        remark,
			ImageAttached: image != nil,
		},
	})
}

func (s *TicketViewService) mount(ctx context.Context, principal *auth.Principal, ticketID string) *domain.TicketView {
	user := principal.User
	view := domain.NewTicketView(principal.SessionID, ticketID, user)

	ticket, err := s.api.GetTicket(ctx, ticketID)
	switch {
	case err != nil:
		message := MsgFetchFailed
		if apiMessage, rejected := ticketapi.RejectionMessage(err); rejected {
			message = orDefault(apiMessage, MsgFetchRejected)
		}
		view.Fail(domain.ErrorKindFetch, message)
		s.logger.Info("ticket fetch failed", zap.String("ticket_id", ticketID), zap.Error(err))
	case !s.policy.CanView(user, ticket):
		view.Fail(domain.ErrorKindAuthorization, MsgNotAuthorized)
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketViewDenied,
			TicketID: ticketID,
			Actor:    actorOf(user),
			Payload:  events.TicketViewDeniedPayload{OwnerEmpID: ticket.EmpID},
		})
	default:
		view.Loaded(ticket, s.now())
		view.Actions = s.policy.Actions(user, ticket)
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketViewed,
			TicketID: ticketID,
			Actor:    actorOf(user),
			Payload:  events.TicketViewedPayload{Category: ticket.Category, Status: ticket.Status},
		})
	}
	return view
}

// viewFor returns the stored view, mounting a fresh one when none exists or
// the stored one belongs to a different identity or role.
func (s *TicketViewService) viewFor(ctx context.Context, principal *auth.Principal, ticketID string) *domain.TicketView {
	view, err := s.views.Get(ctx, principal.SessionID, ticketID)
	if err == nil && view.LoadedFor.SameIdentity(principal.User) {
		return view
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("read stored view", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	return s.mount(ctx, principal, ticketID)
}

func (s *TicketViewService) save(ctx context.Context, view *domain.TicketView) {
	if err := s.views.Save(ctx, view, s.viewTTL); err != nil {
		s.logger.Warn("store view", zap.String("ticket_id", view.TicketID), zap.Error(err))
	}
}

func (s *TicketViewService) acceptableImage(image *ticketapi.Upload) bool {
	if int64(len(image.Data)) > s.maxImageBytes {
		return false
	}
	contentType := image.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(image.Data)
	}
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

func (s *TicketViewService) publishFailure(ctx context.Context, view *domain.TicketView, user domain.SessionUser, action domain.ActionType, outcome domain.ActionOutcome, target domain.TicketStatus, remark string) {
	message := ""
	if view.Notice != nil {
		message = view.Notice.Message
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketActionFailed,
		TicketID: view.TicketID,
		Actor:    actorOf(user),
		Payload: events.TicketActionFailedPayload{
			Action:       action,
			Outcome:      outcome,
			TargetStatus: target,
			Remark:       remark,
			Message:      message,
		},
	})
}

func (s *TicketViewService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorOf(user domain.SessionUser) events.Actor {
	return events.Actor{EmpID: user.EmpID, Role: user.Role}
}

func ticketIDOf(view *domain.TicketView) string {
	if view.Ticket != nil && view.Ticket.ID != "" {
		return view.Ticket.ID
	}
	return view.TicketID
}

// failureMessage prefers the API's own message for rejected requests.
func failureMessage(err error, rejected, unavailable string) string {
	if apiMessage, ok := ticketapi.RejectionMessage(err); ok {
		return orDefault(apiMessage, rejected)
	}
	return unavailable
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
