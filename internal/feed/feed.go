// Package feed carries settlement events out of the engine: to redis
// pub/sub for downstream aggregators and to websocket spectators. The
// engine publishes after its atomic step commits; delivery is best-effort
// and never feeds back into settlement.
package feed

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeSessionResolved = "session_resolved"
	TypePoolMatched     = "pool_matched"
	TypeRoundSettled    = "round_settled"
	TypeHandSettled     = "hand_settled"
	TypeDiceRolled      = "dice_rolled"
	TypeRefund          = "refund"
)

type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	RefID   string    `json:"ref_id"`
	Winners []string  `json:"winners,omitempty"`
	Losers  []string  `json:"losers,omitempty"`
	Pot     int64     `json:"pot"`
	Fee     int64     `json:"fee"`
	At      time.Time `json:"at"`
}

// NewEvent stamps identity and time onto an event.
func NewEvent(eventType, refID string) Event {
	return Event{ID: uuid.NewString(), Type: eventType, RefID: refID, At: time.Now().UTC()}
}

type Sink interface {
	Publish(Event)
}

// Nop drops every event; components treat it as the default sink.
type Nop struct{}

func (Nop) Publish(Event) {}

// Capture records events for tests.
type Capture struct {
	Events []Event
}

func (c *Capture) Publish(e Event) { c.Events = append(c.Events, e) }
