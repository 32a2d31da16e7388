package ticketapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// looseString accepts JSON strings, numbers and null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp returns the zero time for empty or unrecognised values.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ticketPayload mirrors the get_ticket.php response.
type ticketPayload struct {
	ID             looseString `json:"id"`
	EmpID          looseString `json:"EmpId"`
	Category       string      `json:"Category"`
	Remark         string      `json:"Remark"`
	Status         string      `json:"Status"`
	DateTime       string      `json:"DateTime"`
	UpdateDateTime string      `json:"UpdateDateTime"`
	UpdateRemark   string      `json:"Update_remark"`
	Image          string      `json:"Image"`
}

func (p ticketPayload) toDomain() *domain.Ticket {
	return &domain.Ticket{
		ID:           string(p.ID),
		EmpID:        string(p.EmpID),
		Category:     domain.TicketCategory(p.Category),
		Remark:       p.Remark,
		Status:       domain.TicketStatus(p.Status),
		CreatedAt:    parseTimestamp(p.DateTime),
		UpdatedAt:    parseTimestamp(p.UpdateDateTime),
		UpdateRemark: p.UpdateRemark,
		Image:        p.Image,
	}
}

type updatePayload struct {
	ID           string `json:"id"`
	Status       string `json:"Status"`
	UpdateRemark string `json:"Update_remark"`
}

type messagePayload struct {
	Message string `json:"message"`
}
