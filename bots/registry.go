package bots

import "strings"

// Bot is one identity plus its derived runtime state.
type Bot struct {
	Identity
	Available bool     // last connectivity probe succeeded
	Enabled   bool     // user opt-in, defaults to true
	History   []string // messages attempted by this bot, append-only
}

// Eligible reports whether the bot may be targeted by a dispatch.
func (b *Bot) Eligible() bool {
	return b.Available && b.Enabled
}

// Indexed pairs a bot with its position in the registry so filtered views
// keep the original index association.
type Indexed struct {
	Index int
	Bot   *Bot
}

// Registry is the in-memory bot collection. It is not safe for concurrent
// use: all mutation happens on the hub goroutine, which is the single writer
// for registry and log state.
type Registry struct {
	bots []*Bot
	seq  NameSeq
}

func NewRegistry() *Registry {
	return &Registry{}
}

// LoadCredentials parses credential text and replaces the whole registry,
// discarding all prior runtime state. The synthesized-name sequence carries
// over so reloads never reuse a name. Returns the number of bots loaded.
func (r *Registry) LoadCredentials(text string) int {
	ids := ParseCredentials(text, &r.seq)
	r.bots = make([]*Bot, 0, len(ids))
	for _, id := range ids {
		r.bots = append(r.bots, &Bot{Identity: id, Enabled: true})
	}
	return len(r.bots)
}

func (r *Registry) Len() int {
	return len(r.bots)
}

// Get returns the bot at index i, or nil if out of range.
func (r *Registry) Get(i int) *Bot {
	if i < 0 || i >= len(r.bots) {
		return nil
	}
	return r.bots[i]
}

// All returns the underlying bot slice. Callers must not retain it across
// a LoadCredentials.
func (r *Registry) All() []*Bot {
	return r.bots
}

// SetAvailable records a connectivity probe result. Reports whether the
// index was valid.
func (r *Registry) SetAvailable(i int, available bool) bool {
	b := r.Get(i)
	if b == nil {
		return false
	}
	b.Available = available
	return true
}

// SetEnabled records the user opt-in toggle.
func (r *Registry) SetEnabled(i int, enabled bool) bool {
	b := r.Get(i)
	if b == nil {
		return false
	}
	b.Enabled = enabled
	return true
}

// AppendHistory appends one entry to the bot's own history.
func (r *Registry) AppendHistory(i int, entry string) {
	if b := r.Get(i); b != nil {
		b.History = append(b.History, entry)
	}
}

func (r *Registry) ClearHistory(i int) {
	if b := r.Get(i); b != nil {
		b.History = nil
	}
}

func (r *Registry) ClearAllHistories() {
	for _, b := range r.bots {
		b.History = nil
	}
}

// Eligible returns the indexes of all bots that are available and enabled,
// in registry order.
func (r *Registry) Eligible() []int {
	var out []int
	for i, b := range r.bots {
		if b.Eligible() {
			out = append(out, i)
		}
	}
	return out
}

// AvailableCount returns how many bots passed their last probe.
func (r *Registry) AvailableCount() int {
	n := 0
	for _, b := range r.bots {
		if b.Available {
			n++
		}
	}
	return n
}

// Filter returns bots whose name contains q case-insensitively, with their
// original indexes. An empty query returns every bot.
func (r *Registry) Filter(q string) []Indexed {
	q = strings.ToLower(q)
	out := make([]Indexed, 0, len(r.bots))
	for i, b := range r.bots {
		if q == "" || strings.Contains(strings.ToLower(b.Name), q) {
			out = append(out, Indexed{Index: i, Bot: b})
		}
	}
	return out
}

// FindByName returns the index of the first bot with the given name. With
// duplicate display names the first match wins; lookups on a duplicated name
// are therefore ambiguous and resolve to the lowest index.
func (r *Registry) FindByName(name string) (int, bool) {
	for i, b := range r.bots {
		if b.Name == name {
			return i, true
		}
	}
	return 0, false
}
