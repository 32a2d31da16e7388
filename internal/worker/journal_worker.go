package worker

import (
	"github.com/spec-kit/ticketdesk/internal/service"
)

// StartActionJournal subscribes the journal to ticket view events.
func StartActionJournal(journal *service.JournalService) {
	if journal == nil {
		return
	}
	journal.RegisterHandlers()
}
