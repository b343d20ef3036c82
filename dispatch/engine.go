package dispatch

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ngscoder/chatfleet/telemetry"
)

// Sender performs one single-use delivery; implemented by irc.Session.
type Sender interface {
	Send(ctx context.Context, name, token, channel, message string) error
}

// Send is one planned delivery with resolved credentials.
type Send struct {
	BotIndex int
	Name     string
	Token    string
	Message  string
}

// Result reports one delivery outcome back to the driver. Err is nil on
// success; its text is opaque and human-readable.
type Result struct {
	BotIndex int
	BotName  string
	Message  string
	Err      error
}

// Engine fans planned sends out to concurrent delivery tasks. Launch must be
// called from a single goroutine (the hub); the delivery tasks themselves are
// independent and share no mutable state.
type Engine struct {
	sender  Sender
	results chan<- Result
	rng     *rand.Rand
}

func NewEngine(sender Sender, results chan<- Result) *Engine {
	telemetry.Init()
	return &Engine{
		sender:  sender,
		results: results,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Launch spawns one delivery goroutine per send and returns immediately.
// With a staggered policy the k-th send is held back k × uniform(Min, Max);
// delays are drawn up front so launch order fully determines the schedule.
// Outcomes arrive on the results channel with no completion-order guarantee.
func (e *Engine) Launch(ctx context.Context, channel string, sends []Send, policy DelayPolicy) {
	if len(sends) == 0 {
		return
	}
	telemetry.Dispatches.Inc()
	for k, snd := range sends {
		var delay time.Duration
		if !policy.Simultaneous {
			delay = time.Duration(k) * uniformDelay(e.rng, policy.Min, policy.Max)
		}
		go e.deliver(ctx, channel, snd, delay)
	}
}

func (e *Engine) deliver(ctx context.Context, channel string, snd Send, delay time.Duration) {
	if delay > 0 {
		time.Sleep(delay)
	}

	ctx, span := telemetry.StartSpan(ctx, "dispatch", "bot-send",
		telemetry.BotNameAttr(snd.Name),
		telemetry.ChannelAttr(channel),
	)
	defer span.End()

	telemetry.SendsAttempted.Inc()
	start := time.Now()
	err := e.sender.Send(ctx, snd.Name, snd.Token, channel, snd.Message)
	telemetry.SendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.SendsFailed.Inc()
		telemetry.RecordError(span, err)
		slog.Warn("send failed", slog.String("bot", snd.Name), slog.String("channel", channel), slog.Any("err", err))
	} else {
		telemetry.SendsSucceeded.Inc()
		telemetry.SetSpanSuccess(span)
		slog.Debug("send delivered", slog.String("bot", snd.Name), slog.String("channel", channel))
	}

	select {
	case e.results <- Result{BotIndex: snd.BotIndex, BotName: snd.Name, Message: snd.Message, Err: err}:
	case <-ctx.Done():
	}
}

// uniformDelay draws from [min, max], clamping a reversed range instead of
// panicking.
func uniformDelay(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max < min {
		min, max = max, min
	}
	if max <= 0 {
		return 0
	}
	if min == max {
		return min
	}
	return min + time.Duration(rng.Int64N(int64(max-min)+1))
}
