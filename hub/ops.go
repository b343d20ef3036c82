package hub

import (
	"log/slog"
	"strings"
	"time"

	"github.com/ngscoder/chatfleet/bots"
	"github.com/ngscoder/chatfleet/dispatch"
	"github.com/ngscoder/chatfleet/telemetry"
)

// BotView is a copy-safe snapshot of one registry bot. Tokens are never
// included.
type BotView struct {
	Index     int      `json:"index"`
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Enabled   bool     `json:"enabled"`
	History   []string `json:"history"`
}

// ScheduleView reports the scheduler state for the status surface.
type ScheduleView struct {
	Armed          bool     `json:"armed"`
	MinIntervalSec uint     `json:"min_interval_sec"`
	MaxIntervalSec uint     `json:"max_interval_sec"`
	Mode           string   `json:"mode"`
	SubsetCount    int      `json:"subset_count"`
	NextFireSec    *float64 `json:"next_fire_sec,omitempty"`
}

// PolicyView reports the multi-bot delay policy.
type PolicyView struct {
	Simultaneous bool `json:"simultaneous"`
	MinDelaySec  uint `json:"min_delay_sec"`
	MaxDelaySec  uint `json:"max_delay_sec"`
}

// Status is the aggregate snapshot served on /status.
type Status struct {
	Channel   string       `json:"channel"`
	Bots      int          `json:"bots"`
	Available int          `json:"available"`
	PoolSize  int          `json:"pool_size"`
	LogSize   int          `json:"log_size"`
	Schedule  ScheduleView `json:"schedule"`
	Delay     PolicyView   `json:"delay"`
}

// LoadCredentials replaces the whole bot roster from credential-file text and
// returns how many bots were loaded. All prior runtime state is discarded.
func (h *Hub) LoadCredentials(text string) int {
	n, _ := call(h, func() int {
		n := h.reg.LoadCredentials(text)
		telemetry.SetBotCounts(n, 0)
		slog.Info("credentials loaded", slog.Int("bots", n))
		for i, b := range h.reg.All() {
			slog.Debug("bot loaded", slog.Int("index", i), slog.String("name", b.Name), slog.String("token", b.MaskedToken()))
		}
		return n
	})
	return n
}

// LoadMessages replaces the candidate message pool from message-file text and
// returns the pool size.
func (h *Hub) LoadMessages(text string) int {
	n, _ := call(h, func() int {
		h.pool = bots.ParseMessages(text)
		slog.Info("message pool loaded", slog.Int("messages", len(h.pool)))
		return len(h.pool)
	})
	return n
}

// SetChannel sets the target channel (leading '#' is stripped).
func (h *Hub) SetChannel(name string) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	h.do(func() { h.channel = name })
}

// ProbeAll launches a connectivity probe for every bot. Results land on the
// driver loop asynchronously and are reported via bot_availability events.
func (h *Hub) ProbeAll() {
	h.do(func() {
		type target struct {
			i           int
			name, token string
		}
		targets := make([]target, 0, h.reg.Len())
		for i, b := range h.reg.All() {
			targets = append(targets, target{i: i, name: b.Name, token: b.Token})
		}
		ctx := h.runCtx
		for _, tg := range targets {
			go func(tg target) {
				telemetry.ProbesRun.Inc()
				start := time.Now()
				ok := h.prober.Probe(ctx, tg.name, tg.token)
				telemetry.ProbeDuration.Observe(time.Since(start).Seconds())
				if !ok {
					telemetry.ProbesFailed.Inc()
				}
				select {
				case h.probes <- probeResult{index: tg.i, ok: ok}:
				case <-ctx.Done():
				}
			}(tg)
		}
		slog.Info("connectivity probe started", slog.Int("bots", len(targets)))
	})
}

// SetBotEnabled flips the user opt-in toggle. Reports whether the index was
// valid.
func (h *Hub) SetBotEnabled(i int, enabled bool) bool {
	ok, _ := call(h, func() bool { return h.reg.SetEnabled(i, enabled) })
	return ok
}

// Send dispatches a message per the intent. It returns once the deliveries
// are launched; outcomes arrive as message_result events. An empty channel
// falls back to the configured one. Absence of eligible bots is a silent
// no-op.
func (h *Hub) Send(intent dispatch.Intent, message, channel string) {
	machine := intent.Kind == dispatch.RandomBot || intent.Kind == dispatch.SubsetBots
	h.do(func() { h.dispatch(intent, message, channel, machine) })
}

// SetSchedule arms or disarms the recurring random-interval trigger and
// updates its bounds. Arming an already-armed schedule keeps the pending
// fire; only the bounds change.
func (h *Hub) SetSchedule(enabled bool, minSec, maxSec uint) {
	h.do(func() {
		h.sched.SetInterval(minSec, maxSec)
		now := time.Now()
		switch {
		case enabled && !h.sched.Armed():
			h.sched.Arm(now)
		case !enabled:
			h.sched.Disarm()
		}
		telemetry.UpdateScheduleGauge(h.sched.Armed())
		h.publishSchedule(now)
	})
}

// SetScheduleMode selects what a scheduled fire dispatches: one random bot,
// all eligible bots, or a random subset of the given size.
func (h *Hub) SetScheduleMode(mode string, subsetCount int) {
	h.do(func() {
		h.schedMode = mode
		if subsetCount > 0 {
			h.subsetCount = subsetCount
		}
	})
}

// SetDelayPolicy configures simultaneous vs. staggered multi-bot delivery.
func (h *Hub) SetDelayPolicy(simultaneous bool, minSec, maxSec uint) {
	h.do(func() {
		h.policy = dispatch.DelayPolicy{
			Simultaneous: simultaneous,
			Min:          time.Duration(minSec) * time.Second,
			Max:          time.Duration(maxSec) * time.Second,
		}
	})
}

// FireNow performs one schedule cycle immediately: the pending fire is
// cleared, one dispatch runs, and a fresh fire time is rolled if the
// schedule is armed. The armed/disabled state itself is unchanged.
func (h *Hub) FireNow() {
	h.do(func() {
		now := time.Now()
		h.sched.Advance(now)
		telemetry.ScheduleFires.Inc()
		h.fireScheduled()
		if h.sched.Armed() {
			h.publishSchedule(now)
		}
	})
}

// ClearBotHistory empties one bot's history.
func (h *Hub) ClearBotHistory(i int) {
	h.do(func() { h.reg.ClearHistory(i) })
}

// ClearLog empties the global chat log.
func (h *Hub) ClearLog() {
	h.do(func() { h.log = nil })
}

// ClearAll empties the global log and every bot history.
func (h *Hub) ClearAll() {
	h.do(func() {
		h.log = nil
		h.reg.ClearAllHistories()
	})
}

// Bots returns a snapshot of bots whose name matches q (case-insensitive
// substring; empty matches all), preserving registry indexes.
func (h *Hub) Bots(q string) []BotView {
	views, _ := call(h, func() []BotView {
		matched := h.reg.Filter(q)
		out := make([]BotView, 0, len(matched))
		for _, m := range matched {
			out = append(out, BotView{
				Index:     m.Index,
				Name:      m.Bot.Name,
				Available: m.Bot.Available,
				Enabled:   m.Bot.Enabled,
				History:   append([]string(nil), m.Bot.History...),
			})
		}
		return out
	})
	return views
}

// BotByName resolves a logged message's origin bot. With duplicate display
// names the first match wins.
func (h *Hub) BotByName(name string) (BotView, bool) {
	type res struct {
		v  BotView
		ok bool
	}
	r, _ := call(h, func() res {
		i, ok := h.reg.FindByName(name)
		if !ok {
			return res{}
		}
		b := h.reg.Get(i)
		return res{v: BotView{
			Index:     i,
			Name:      b.Name,
			Available: b.Available,
			Enabled:   b.Enabled,
			History:   append([]string(nil), b.History...),
		}, ok: true}
	})
	return r.v, r.ok
}

// Log returns a snapshot of the global chat log.
func (h *Hub) Log() []Entry {
	entries, _ := call(h, func() []Entry {
		return append([]Entry(nil), h.log...)
	})
	return entries
}

// Status returns the aggregate snapshot for the status surface.
func (h *Hub) Status() Status {
	st, _ := call(h, func() Status {
		now := time.Now()
		minSec, maxSec := h.sched.Interval()
		sv := ScheduleView{
			Armed:          h.sched.Armed(),
			MinIntervalSec: minSec,
			MaxIntervalSec: maxSec,
			Mode:           h.schedMode,
			SubsetCount:    h.subsetCount,
		}
		if d, ok := h.sched.NextIn(now); ok {
			secs := d.Seconds()
			sv.NextFireSec = &secs
		}
		return Status{
			Channel:   h.channel,
			Bots:      h.reg.Len(),
			Available: h.reg.AvailableCount(),
			PoolSize:  len(h.pool),
			LogSize:   len(h.log),
			Schedule:  sv,
			Delay: PolicyView{
				Simultaneous: h.policy.Simultaneous,
				MinDelaySec:  uint(h.policy.Min / time.Second),
				MaxDelaySec:  uint(h.policy.Max / time.Second),
			},
		}
	})
	return st
}
