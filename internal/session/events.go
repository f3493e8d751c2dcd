package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/merchant-engine/internal/clock"
	"github.com/atmx/merchant-engine/internal/model"
)

// EventType names what happened.
type EventType string

const (
	EventTick  EventType = "tick"
	EventDay   EventType = "day"
	EventTrade EventType = "trade"
)

// Event is published to subscribers after a state change.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	Tick     *clock.Tick               `json:"tick,omitempty"`
	Prices   map[string]decimal.Decimal `json:"prices,omitempty"`
	Snapshot *model.DailySnapshot      `json:"snapshot,omitempty"`
	Trade    *model.Trade              `json:"trade,omitempty"`
	Cycles   []model.TradeCycle        `json:"cycles,omitempty"`
}

// subscriberBuffer is the per-subscriber queue length.
const subscriberBuffer = 64

// Subscribe returns a channel of events and a function that cancels the
// subscription. Slow subscribers miss events rather than stall the game.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	cancel := func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

func (s *Session) publish(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full; drop.
		}
	}
}
