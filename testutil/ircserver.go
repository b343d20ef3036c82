// Package testutil provides a minimal in-process IRC endpoint for exercising
// sessions, probes, and dispatch end to end without the real chat server.
package testutil

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// LineHandler reacts to one inbound line on a connection. send writes one
// outbound line, terminated with \r\n. Handlers run on the connection's read
// goroutine, so slow handlers delay subsequent lines on that connection only.
type LineHandler func(send func(string), line string)

// FakeIRCServer is a plaintext TCP listener that records every inbound line
// across all connections and lets a handler script the server side.
type FakeIRCServer struct {
	ln      net.Listener
	handler LineHandler

	mu    sync.Mutex
	lines []string
}

// NewFakeIRCServer starts a listener on a random local port. The server is
// closed automatically when the test finishes.
func NewFakeIRCServer(t *testing.T, handler LineHandler) *FakeIRCServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fake irc listen: %v", err)
	}
	s := &FakeIRCServer{ln: ln, handler: handler}
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the host:port the server listens on.
func (s *FakeIRCServer) Addr() string {
	return s.ln.Addr().String()
}

// Close stops accepting connections. Existing connections terminate when
// their peers close.
func (s *FakeIRCServer) Close() {
	_ = s.ln.Close()
}

// Lines returns a snapshot of every line received so far, in arrival order
// (interleaving across connections is unspecified).
func (s *FakeIRCServer) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// CountPrefix returns how many received lines start with prefix.
func (s *FakeIRCServer) CountPrefix(prefix string) int {
	n := 0
	for _, l := range s.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// WaitForPrefix polls until at least n lines with the prefix have arrived or
// the timeout expires. Returns whether the condition was met.
func (s *FakeIRCServer) WaitForPrefix(prefix string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if s.CountPrefix(prefix) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (s *FakeIRCServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *FakeIRCServer) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	var wmu sync.Mutex
	send := func(line string) {
		wmu.Lock()
		defer wmu.Unlock()
		_, _ = conn.Write([]byte(line + "\r\n"))
	}
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		s.mu.Lock()
		s.lines = append(s.lines, line)
		s.mu.Unlock()
		if s.handler != nil {
			s.handler(send, line)
		}
	}
}

// WelcomeAndJoin is the happy-path handler: it welcomes every login and
// confirms every channel join.
func WelcomeAndJoin(send func(string), line string) {
	switch {
	case strings.HasPrefix(line, "NICK "):
		nick := strings.TrimSpace(strings.TrimPrefix(line, "NICK "))
		send(":tmi.twitch.tv 001 " + nick + " :Welcome, GLHF!")
	case strings.HasPrefix(line, "JOIN "):
		ch := strings.TrimSpace(strings.TrimPrefix(line, "JOIN "))
		send(":tmi.twitch.tv 366 guest " + ch + " :End of /NAMES list")
	}
}

// NeverJoin welcomes logins but withholds join confirmation, forcing the
// join wait to run out.
func NeverJoin(send func(string), line string) {
	if strings.HasPrefix(line, "NICK ") {
		nick := strings.TrimSpace(strings.TrimPrefix(line, "NICK "))
		send(":tmi.twitch.tv 001 " + nick + " :Welcome, GLHF!")
	}
}

// RejectLogin answers every login attempt with the Twitch auth-failure notice.
func RejectLogin(send func(string), line string) {
	if strings.HasPrefix(line, "NICK ") {
		send(":tmi.twitch.tv NOTICE * :Login authentication failed")
	}
}
