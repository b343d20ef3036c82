package hub

import (
	"fmt"
	"time"
)

// Event types published to subscribers (the UI layer).
const (
	EventBotAvailability = "bot_availability"
	EventMessageResult   = "message_result"
	EventLog             = "log"
	EventSchedule        = "schedule"
)

// Event is one item on the outbound event surface. Which fields are
// meaningful depends on Type.
type Event struct {
	Type        string  `json:"type"`
	BotIndex    int     `json:"bot_index,omitempty"`
	BotName     string  `json:"bot_name,omitempty"`
	Available   bool    `json:"available"`
	OK          bool    `json:"ok"`
	Error       string  `json:"error,omitempty"`
	Entry       *Entry  `json:"entry,omitempty"`
	Armed       bool    `json:"armed"`
	NextFireSec float64 `json:"next_fire_sec,omitempty"`
}

// Entry is one global chat-log record. The log reflects attempted sends: the
// attempt entry is appended before the network call, and a later failure
// appends a second error-tagged entry rather than retracting the first.
type Entry struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	BotIndex  int       `json:"bot_index"`
	BotName   string    `json:"bot_name"`
	Text      string    `json:"text"`
	Random    bool      `json:"random"`
	Failed    bool      `json:"failed"`
}

// formatAttempt renders the log/history line for an attempted send. Machine-
// originated (random-selected) sends carry the die marker so they read
// distinctly from user-direct sends.
func formatAttempt(name, message string, machine bool) string {
	if machine {
		return fmt.Sprintf("[🎲 %s] %s", name, message)
	}
	return fmt.Sprintf("[%s] %s", name, message)
}

// formatFailure renders the error-tagged line appended after a failed send.
func formatFailure(err error) string {
	return "❌ Error: " + err.Error()
}

// Subscribe registers an event listener. Events are delivered best-effort:
// a subscriber whose buffer is full misses events rather than stalling the
// hub. The returned cancel frees the subscription and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	idc := make(chan int, 1)
	if !h.do(func() {
		id := h.nextSub
		h.nextSub++
		h.subs[id] = ch
		idc <- id
	}) {
		close(ch)
		return ch, func() {}
	}
	var id int
	select {
	case id = <-idc:
	case <-h.quit:
		return ch, func() {}
	}
	cancel := func() {
		h.do(func() {
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (h *Hub) publish(ev Event) {
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
