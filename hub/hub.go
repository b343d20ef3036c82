// Package hub is the single-threaded driver that owns all mutable state: the
// bot registry, the message pool, the global chat log, the scheduler, and the
// delay policy.
//
// All mutation happens on the Run goroutine. HTTP handlers and background
// tasks never touch state directly: commands arrive as closures on a channel,
// send outcomes arrive on the dispatch result channel, and probe outcomes on
// the probe channel. That single-writer discipline makes locks unnecessary;
// the only parallelism is the fire-and-forget network I/O per targeted bot.
package hub

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/ngscoder/chatfleet/bots"
	"github.com/ngscoder/chatfleet/config"
	"github.com/ngscoder/chatfleet/dispatch"
	"github.com/ngscoder/chatfleet/schedule"
	"github.com/ngscoder/chatfleet/telemetry"
)

// Prober checks one bot's connectivity; implemented by irc.Session.
type Prober interface {
	Probe(ctx context.Context, name, token string) bool
}

// Hub wires the registry, scheduler, and dispatch engine together behind a
// command channel. Construct with New, then call Run exactly once.
type Hub struct {
	reg    *bots.Registry
	pool   []string
	log    []Entry
	sched  *schedule.Scheduler
	policy dispatch.DelayPolicy
	engine *dispatch.Engine
	prober Prober
	rng    *rand.Rand

	channel     string
	schedMode   string
	subsetCount int

	cmds    chan func()
	results chan dispatch.Result
	probes  chan probeResult
	subs    map[int]chan Event
	nextSub int
	quit    chan struct{}

	// TickEvery drives the scheduler check; 1s in production, shrunk in tests.
	TickEvery time.Duration

	runCtx context.Context
}

type probeResult struct {
	index int
	ok    bool
}

// New builds a hub from configuration. sender delivers messages and prober
// checks connectivity; both are exercised only from goroutines the hub spawns.
func New(cfg *config.Config, sender dispatch.Sender, prober Prober) *Hub {
	telemetry.Init()
	results := make(chan dispatch.Result, 64)
	h := &Hub{
		reg:     bots.NewRegistry(),
		sched:   schedule.New(cfg.MinIntervalSec, cfg.MaxIntervalSec),
		engine:  dispatch.NewEngine(sender, results),
		prober:  prober,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		policy:  dispatch.DelayPolicy{
			Simultaneous: cfg.Simultaneous,
			Min:          time.Duration(cfg.MinDelaySec) * time.Second,
			Max:          time.Duration(cfg.MaxDelaySec) * time.Second,
		},
		channel:     cfg.Channel,
		schedMode:   cfg.ScheduleMode,
		subsetCount: cfg.SubsetCount,
		cmds:        make(chan func(), 64),
		results:     results,
		probes:      make(chan probeResult, 64),
		subs:        make(map[int]chan Event),
		quit:        make(chan struct{}),
		TickEvery:   time.Second,
	}
	return h
}

// Run is the driver loop. It returns when ctx is canceled. In-flight sends
// are not aborted; their results are simply no longer consumed.
func (h *Hub) Run(ctx context.Context) {
	h.runCtx = ctx
	defer close(h.quit)

	ticker := time.NewTicker(h.TickEvery)
	defer ticker.Stop()

	slog.Info("hub started", slog.String("channel", h.channel), slog.Duration("tick", h.TickEvery))
	for {
		select {
		case <-ctx.Done():
			slog.Info("hub stopped")
			return
		case fn := <-h.cmds:
			fn()
		case res := <-h.results:
			h.onResult(res)
		case pr := <-h.probes:
			h.onProbe(pr)
		case now := <-ticker.C:
			h.onTick(now)
		}
	}
}

// do queues fn onto the driver goroutine. Returns false if the hub has
// already stopped.
func (h *Hub) do(fn func()) bool {
	select {
	case h.cmds <- fn:
		return true
	case <-h.quit:
		return false
	}
}

// call runs fn on the driver goroutine and waits for its result.
func call[T any](h *Hub, fn func() T) (T, bool) {
	ch := make(chan T, 1)
	if !h.do(func() { ch <- fn() }) {
		var zero T
		return zero, false
	}
	select {
	case v := <-ch:
		return v, true
	case <-h.quit:
		var zero T
		return zero, false
	}
}

func (h *Hub) onTick(now time.Time) {
	if h.sched.Due(now) {
		h.sched.Advance(now)
		telemetry.ScheduleFires.Inc()
		h.fireScheduled()
	}
	if h.sched.Armed() {
		h.publishSchedule(now)
	}
}

// fireScheduled performs one schedule cycle's dispatch. An empty pool or
// unset channel makes the fire a silent no-op; the cycle has already been
// rescheduled by the caller, so time is not saved up.
func (h *Hub) fireScheduled() {
	if len(h.pool) == 0 || h.channel == "" {
		slog.Debug("scheduled fire skipped",
			slog.Int("pool", len(h.pool)), slog.String("channel", h.channel))
		return
	}
	intent := dispatch.Intent{Kind: dispatch.RandomBot}
	switch h.schedMode {
	case config.ModeAll:
		intent = dispatch.Intent{Kind: dispatch.AllBots}
	case config.ModeSubset:
		intent = dispatch.Intent{Kind: dispatch.SubsetBots, Count: h.subsetCount}
	}
	h.dispatch(intent, "", h.channel, true)
}

// dispatch plans targets, logs every attempt before any network call, and
// launches the deliveries. Runs on the driver goroutine.
func (h *Hub) dispatch(intent dispatch.Intent, message, channel string, machine bool) {
	if channel == "" {
		channel = h.channel
	}
	if channel == "" {
		slog.Debug("dispatch skipped: no channel configured")
		return
	}
	sels := dispatch.Plan(h.rng, intent, h.reg.Eligible(), message, h.pool)
	if len(sels) == 0 {
		return
	}
	sends := make([]dispatch.Send, 0, len(sels))
	for _, sel := range sels {
		b := h.reg.Get(sel.BotIndex)
		text := formatAttempt(b.Name, sel.Message, machine)
		h.appendLog(Entry{
			BotIndex:  sel.BotIndex,
			BotName:   b.Name,
			Text:      text,
			Random:    machine,
		})
		h.reg.AppendHistory(sel.BotIndex, text)
		sends = append(sends, dispatch.Send{
			BotIndex: sel.BotIndex,
			Name:     b.Name,
			Token:    b.Token,
			Message:  sel.Message,
		})
	}
	h.engine.Launch(h.runCtx, channel, sends, h.policy)
}

func (h *Hub) onResult(res dispatch.Result) {
	ev := Event{Type: EventMessageResult, BotIndex: res.BotIndex, BotName: res.BotName, OK: res.Err == nil}
	if res.Err != nil {
		ev.Error = res.Err.Error()
		text := formatFailure(res.Err)
		h.appendLog(Entry{BotIndex: res.BotIndex, BotName: res.BotName, Text: text, Failed: true})
		h.reg.AppendHistory(res.BotIndex, text)
	}
	h.publish(ev)
}

func (h *Hub) onProbe(pr probeResult) {
	if !h.reg.SetAvailable(pr.index, pr.ok) {
		return // registry was replaced while the probe was in flight
	}
	telemetry.SetBotCounts(h.reg.Len(), h.reg.AvailableCount())
	b := h.reg.Get(pr.index)
	h.publish(Event{Type: EventBotAvailability, BotIndex: pr.index, BotName: b.Name, Available: pr.ok})
}

func (h *Hub) appendLog(e Entry) {
	e.ID = uuid.NewString()
	e.At = time.Now().UTC()
	h.log = append(h.log, e)
	h.publish(Event{Type: EventLog, Entry: &e})
}

func (h *Hub) publishSchedule(now time.Time) {
	ev := Event{Type: EventSchedule, Armed: h.sched.Armed()}
	if d, ok := h.sched.NextIn(now); ok {
		ev.NextFireSec = d.Seconds()
	}
	h.publish(ev)
}
