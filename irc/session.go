// Package irc implements one-shot authenticated interactions with the Twitch
// chat server: a connectivity probe and a single-message send.
//
// Message sends deliberately use a raw fire-and-close TCP session rather than
// a persistent client: every send opens a fresh connection, authenticates,
// joins the channel with a bounded wait, sends one PRIVMSG, and closes. The
// probe uses the go-twitch-irc client since it only needs the login handshake.
package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultAddr is the plaintext Twitch IRC endpoint.
const DefaultAddr = "irc.chat.twitch.tv:6667"

// Error taxonomy surfaced to the dispatch layer. Callers should match with
// errors.Is and treat the message text as opaque.
var (
	ErrConnectFailed = errors.New("connect failed")
	ErrJoinTimeout   = errors.New("could not join channel")
	ErrWriteFailed   = errors.New("write failed")
)

// Session holds the endpoint and timing knobs shared by all probe/send calls.
// The zero value is not usable; construct with NewSession.
type Session struct {
	Addr string
	TLS  bool // probe client only; sends are plaintext TCP

	ProbeTimeout time.Duration // hard bound on the whole probe
	JoinTimeout  time.Duration // bound on waiting for join confirmation
	SettleDelay  time.Duration // pause between join confirmation and PRIVMSG
	DrainDelay   time.Duration // pause between PRIVMSG and close

	dialer net.Dialer
}

// NewSession returns a session against addr with the production timing
// defaults (10s probe, 5s join wait, 1s settle, 2s drain).
func NewSession(addr string, tls bool) *Session {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Session{
		Addr:         addr,
		TLS:          tls,
		ProbeTimeout: 10 * time.Second,
		JoinTimeout:  5 * time.Second,
		SettleDelay:  1 * time.Second,
		DrainDelay:   2 * time.Second,
	}
}

// Send delivers one message to #channel as the given bot over a fresh
// connection. The connection is closed on return regardless of outcome.
// Errors wrap ErrConnectFailed, ErrJoinTimeout, or ErrWriteFailed.
//
// There is no mid-flight cancellation: ctx bounds the dial only. The settle
// and drain pauses always run to completion once the join is confirmed.
func (s *Session) Send(ctx context.Context, name, token, channel, message string) error {
	conn, err := s.dialer.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	defer func() { _ = conn.Close() }()

	if err := writeLines(conn,
		"PASS oauth:"+token,
		"NICK "+name,
		"JOIN #"+channel,
	); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if err := s.awaitJoin(conn); err != nil {
		return err
	}

	// Politeness pause before the first message on a fresh connection.
	time.Sleep(s.SettleDelay)

	if err := writeLines(conn, "PRIVMSG #"+channel+" :"+message); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	// Let the connection drain before closing.
	time.Sleep(s.DrainDelay)
	return nil
}

// awaitJoin reads server lines until the join is confirmed (numeric 366 or
// the "End of /NAMES list" trailer) or JoinTimeout elapses. Server PINGs
// during the wait are answered immediately so the server does not drop us.
func (s *Session) awaitJoin(conn net.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(s.JoinTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrJoinTimeout, err)
	}
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("%w: no confirmation within %s: %v", ErrJoinTimeout, s.JoinTimeout, err)
		}
		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "PING") {
			pong := strings.Replace(line, "PING", "PONG", 1)
			if err := writeLines(conn, pong); err != nil {
				return fmt.Errorf("%w: %v", ErrWriteFailed, err)
			}
			continue
		}
		if strings.Contains(line, "366") || strings.Contains(line, "End of /NAMES list") {
			return nil
		}
		// Everything else (375/372/353, NOTICEs, ...) is ignored.
	}
}

func writeLines(conn net.Conn, lines ...string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	_, err := conn.Write([]byte(b.String()))
	return err
}
