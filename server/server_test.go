package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ngscoder/chatfleet/config"
	"github.com/ngscoder/chatfleet/hub"
)

// stubSender records deliveries; stubProber reports every bot reachable.
type stubSender struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (s *stubSender) Send(_ context.Context, _, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.fail
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubProber struct{ ok bool }

func (p *stubProber) Probe(context.Context, string, string) bool { return p.ok }

func newTestMux(t *testing.T) (http.Handler, *hub.Hub, *stubSender) {
	t.Helper()
	cfg := &config.Config{
		Channel:        "testchan",
		MinIntervalSec: 30,
		MaxIntervalSec: 120,
		ScheduleMode:   config.ModeRandom,
		SubsetCount:    3,
		Simultaneous:   true,
	}
	sender := &stubSender{}
	h := hub.New(cfg, sender, &stubProber{ok: true})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return NewMux(ctx, h), h, sender
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestHealthz(t *testing.T) {
	mux, _, _ := newTestMux(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rr.Code)
	}
	if body := rr.Body.String(); body != "ok" {
		t.Errorf("healthz body = %q", body)
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing X-Correlation-ID header")
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var st hub.Status
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Channel != "testchan" {
		t.Errorf("status channel = %q, want testchan", st.Channel)
	}
}

func TestBotsLoadListAndFilter(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bots",
		strings.NewReader("abc123|Alice\nxyz789\nqrs456|Alina")))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /bots = %d, want 200", rr.Code)
	}
	var loaded map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &loaded); err != nil || loaded["loaded"] != 3 {
		t.Fatalf("POST /bots body = %s, want loaded=3", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bots", nil))
	var all []hub.BotView
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode bots: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Alice" || all[1].Name != "bot_1" {
		t.Fatalf("bots = %+v, want Alice,bot_1,Alina", all)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bots?q=ali", nil))
	var filtered []hub.BotView
	if err := json.Unmarshal(rr.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("decode filtered bots: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("bots?q=ali returned %d, want 2 (case-insensitive substring)", len(filtered))
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bots?name=Alina", nil))
	var one hub.BotView
	if err := json.Unmarshal(rr.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode named bot: %v", err)
	}
	if one.Index != 2 {
		t.Errorf("bots?name=Alina index = %d, want 2", one.Index)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bots?name=nobody", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("bots?name=nobody = %d, want 404", rr.Code)
	}
}

func TestBotEnabledEndpoint(t *testing.T) {
	mux, h, _ := newTestMux(t)
	h.LoadCredentials("t1|a")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bots/0/enabled",
		strings.NewReader(`{"enabled":false}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /bots/0/enabled = %d, want 200", rr.Code)
	}
	if h.Bots("")[0].Enabled {
		t.Error("bot still enabled after disable request")
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bots/9/enabled",
		strings.NewReader(`{"enabled":true}`)))
	if rr.Code != http.StatusNotFound {
		t.Errorf("out-of-range index = %d, want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bots/abc/enabled", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("non-numeric index = %d, want 404", rr.Code)
	}
}

func TestBotSendEndpoint(t *testing.T) {
	mux, h, sender := newTestMux(t)
	h.LoadCredentials("t1|a")
	h.ProbeAll()
	waitUntil(t, "bot available", func() bool { return h.Bots("")[0].Available })

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bots/0/send",
		strings.NewReader(`{"message":"hello"}`)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("POST /bots/0/send = %d, want 202", rr.Code)
	}
	waitUntil(t, "delivery", func() bool { return sender.count() == 1 })

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bots/0/send",
		strings.NewReader(`{"message":""}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty message = %d, want 400", rr.Code)
	}
}

func TestSendEndpointModes(t *testing.T) {
	mux, h, sender := newTestMux(t)
	h.LoadCredentials("t1|a\nt2|b")
	h.ProbeAll()
	waitUntil(t, "bots available", func() bool {
		bots := h.Bots("")
		return bots[0].Available && bots[1].Available
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/send",
		strings.NewReader(`{"mode":"all","message":"hi"}`)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("POST /send = %d, want 202", rr.Code)
	}
	waitUntil(t, "fan-out", func() bool { return sender.count() == 2 })

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/send",
		strings.NewReader(`{"mode":"everything"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown mode = %d, want 400", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/send",
		strings.NewReader(`{not json`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d, want 400", rr.Code)
	}
}

func TestScheduleEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/schedule",
		strings.NewReader(`{"enabled":true,"min_interval_sec":10,"max_interval_sec":20,"mode":"subset","subset_count":2}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /schedule = %d, want 200", rr.Code)
	}
	var sv hub.ScheduleView
	if err := json.Unmarshal(rr.Body.Bytes(), &sv); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if !sv.Armed || sv.MinIntervalSec != 10 || sv.MaxIntervalSec != 20 {
		t.Errorf("schedule view = %+v, want armed 10..20", sv)
	}
	if sv.Mode != config.ModeSubset || sv.SubsetCount != 2 {
		t.Errorf("schedule mode = %q/%d, want subset/2", sv.Mode, sv.SubsetCount)
	}
	if sv.NextFireSec == nil {
		t.Error("armed schedule must report next_fire_sec")
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/schedule", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &sv); err != nil || !sv.Armed {
		t.Errorf("GET /schedule after arm = %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/schedule",
		strings.NewReader(`{"enabled":false,"min_interval_sec":10,"max_interval_sec":20}`)))
	sv = hub.ScheduleView{}
	if err := json.Unmarshal(rr.Body.Bytes(), &sv); err != nil || sv.Armed {
		t.Errorf("disarm response = %s, want armed=false", rr.Body.String())
	}
	if sv.NextFireSec != nil {
		t.Error("disarmed schedule must not report next_fire_sec")
	}
}

func TestDelayEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/delay",
		strings.NewReader(`{"simultaneous":false,"min_delay_sec":2,"max_delay_sec":4}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /delay = %d, want 200", rr.Code)
	}
	var pv hub.PolicyView
	if err := json.Unmarshal(rr.Body.Bytes(), &pv); err != nil {
		t.Fatalf("decode policy: %v", err)
	}
	if pv.Simultaneous || pv.MinDelaySec != 2 || pv.MaxDelaySec != 4 {
		t.Errorf("policy view = %+v", pv)
	}
}

func TestChannelEndpoint(t *testing.T) {
	mux, h, _ := newTestMux(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/channel",
		strings.NewReader(`{"channel":"#newchan"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /channel = %d, want 200", rr.Code)
	}
	waitUntil(t, "channel applied", func() bool { return h.Status().Channel == "newchan" })

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/channel",
		strings.NewReader(`{"channel":"  "}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("blank channel = %d, want 400", rr.Code)
	}
}

func TestLogEndpoints(t *testing.T) {
	mux, h, sender := newTestMux(t)
	h.LoadCredentials("t1|a")
	h.ProbeAll()
	waitUntil(t, "bot available", func() bool { return h.Bots("")[0].Available })

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bots/0/send",
		strings.NewReader(`{"message":"logged"}`)))
	waitUntil(t, "delivery", func() bool { return sender.count() == 1 })

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/log", nil))
	var entries []hub.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if len(entries) != 1 || !strings.Contains(entries[0].Text, "logged") {
		t.Fatalf("log = %+v, want one attempt entry", entries)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/log", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE /log = %d, want 204", rr.Code)
	}
	waitUntil(t, "log cleared", func() bool { return len(h.Log()) == 0 })

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/history", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE /history = %d, want 204", rr.Code)
	}
	waitUntil(t, "histories cleared", func() bool { return len(h.Bots("")[0].History) == 0 })
}

func TestScheduleFireEndpoint(t *testing.T) {
	mux, h, sender := newTestMux(t)
	h.LoadCredentials("t1|a")
	h.LoadMessages("pool message")
	h.ProbeAll()
	waitUntil(t, "bot available", func() bool { return h.Bots("")[0].Available })

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/schedule/fire", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("POST /schedule/fire = %d, want 202", rr.Code)
	}
	waitUntil(t, "manual fire delivery", func() bool { return sender.count() == 1 })
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _, _ := newTestMux(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/healthz"},
		{http.MethodDelete, "/status"},
		{http.MethodGet, "/send"},
		{http.MethodGet, "/messages"},
		{http.MethodPut, "/schedule"},
		{http.MethodGet, "/history"},
	} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", tc.method, tc.path, rr.Code)
		}
	}
}
