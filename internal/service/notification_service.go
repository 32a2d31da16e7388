package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/events"
)

const webhookTimeout = 5 * time.Second

// NotificationService tells the L2 desk about forwarded tickets.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	client     *fasthttp.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &fasthttp.Client{Name: "ticketdesk-notifier"},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketForwarded, n.handleTicketForwarded)
}

func (n *NotificationService) handleTicketForwarded(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketForwarded",
		zap.String("ticket_id", event.TicketID),
		zap.String("emp_id", event.Actor.EmpID),
		zap.Any("payload", event.Payload))
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	return n.postWebhook(ctx, event)
}

func (n *NotificationService) postWebhook(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.cfg.WebhookURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline := time.Now().Add(webhookTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := n.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("webhook responded %d", status)
	}
	n.logger.Debug("webhook delivered",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
	return nil
}
