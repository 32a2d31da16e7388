package worker

import (
	"github.com/spec-kit/ticketdesk/internal/service"
)

// StartNotificationWorker registers the L2 hand-off notifier.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
