package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tkpay/internal/core"
)

// EventType names what happened to a history day.
type EventType string

const (
	EventSaved   EventType = "history.saved"
	EventDeleted EventType = "history.deleted"
)

var ErrInvalidEvent = errors.New("invalid history event")

// HistoryEvent announces a change to one history day. It carries the
// aggregate only; consumers needing entries read the remote store.
type HistoryEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Count     int             `json:"count"`
	SavedAt   time.Time       `json:"savedAt"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSavedEvent describes a snapshot that was written.
func NewSavedEvent(s core.Snapshot) *HistoryEvent {
	return &HistoryEvent{
		ID:        uuid.NewString(),
		Type:      EventSaved,
		Date:      s.Date,
		Total:     s.Total,
		Count:     len(s.Transactions),
		SavedAt:   s.SavedAt,
		Timestamp: time.Now(),
	}
}

// NewDeletedEvent describes a history day that was removed.
func NewDeletedEvent(dateKey string) *HistoryEvent {
	return &HistoryEvent{
		ID:        uuid.NewString(),
		Type:      EventDeleted,
		Date:      dateKey,
		Total:     decimal.Zero,
		Timestamp: time.Now(),
	}
}

func (e *HistoryEvent) Validate() error {
	switch e.Type {
	case EventSaved, EventDeleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if _, err := core.ParseDateKey(e.Date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidEvent, e.Date)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (e *HistoryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// HistoryEventFromJSON decodes and validates a message body.
func HistoryEventFromJSON(data []byte) (*HistoryEvent, error) {
	var e HistoryEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
