package irc

import (
	"context"
	"log/slog"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// Probe checks that the bot's credentials authenticate against the chat
// server. It returns true only when the server welcomes the login (numeric
// 001) within ProbeTimeout; authentication failures, transport errors, and
// timeouts all collapse to false. The connection is torn down before
// returning regardless of outcome.
func (s *Session) Probe(ctx context.Context, name, token string) bool {
	client := twitch.NewClient(name, "oauth:"+token)
	client.IrcAddress = s.Addr
	client.TLS = s.TLS

	welcome := make(chan struct{}, 1)
	client.OnConnect(func() {
		select {
		case welcome <- struct{}{}:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- client.Connect() }()

	timer := time.NewTimer(s.ProbeTimeout)
	defer timer.Stop()

	select {
	case <-welcome:
		if err := client.Disconnect(); err != nil {
			slog.Debug("probe disconnect", slog.String("bot", name), slog.Any("err", err))
		}
		return true
	case err := <-done:
		// Auth failure or transport error; both mean unavailable.
		slog.Debug("probe failed", slog.String("bot", name), slog.Any("err", err))
		return false
	case <-timer.C:
	case <-ctx.Done():
	}
	// Timed out or canceled mid-handshake: inconclusive counts as unavailable.
	if err := client.Disconnect(); err != nil {
		slog.Debug("probe disconnect after timeout", slog.String("bot", name), slog.Any("err", err))
	}
	return false
}
