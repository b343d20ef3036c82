package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ngscoder/chatfleet/dispatch"
)

// HandleBots serves the roster collection: GET lists (optionally filtered),
// POST replaces the roster from credential-file text.
func (h *Handlers) HandleBots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// ?name= resolves a single bot, first match wins (duplicate names
		// are allowed in credential files). ?q= substring-filters the list.
		if name := r.URL.Query().Get("name"); name != "" {
			v, ok := h.hub.BotByName(name)
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, http.StatusOK, v)
			return
		}
		writeJSON(w, http.StatusOK, h.hub.Bots(r.URL.Query().Get("q")))
	case http.MethodPost:
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		n := h.hub.LoadCredentials(string(body))
		writeJSON(w, http.StatusOK, map[string]int{"loaded": n})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleBotsDispatcher routes requests under /bots/* to sub-handlers.
func (h *Handlers) HandleBotsDispatcher(w http.ResponseWriter, r *http.Request) {
	// crude routing
	path := strings.TrimPrefix(r.URL.Path, "/bots/")
	parts := strings.Split(path, "/")
	head := parts[0]
	tail := ""
	if len(parts) > 1 {
		tail = strings.Join(parts[1:], "/")
	}

	if head == "probe" && tail == "" {
		h.handleBotsProbe(w, r)
		return
	}

	idx, err := strconv.Atoi(head)
	if err != nil || idx < 0 {
		http.NotFound(w, r)
		return
	}
	switch tail {
	case "enabled":
		h.handleBotEnabled(w, r, idx)
	case "send":
		h.handleBotSend(w, r, idx)
	case "history":
		h.handleBotHistory(w, r, idx)
	default:
		http.NotFound(w, r)
	}
}

// handleBotsProbe re-checks every bot's credentials concurrently. The call
// returns immediately; availability flips arrive on the event stream.
func (h *Handlers) handleBotsProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.hub.ProbeAll()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "probing"})
}

func (h *Handlers) handleBotEnabled(w http.ResponseWriter, r *http.Request, idx int) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.hub.SetBotEnabled(idx, req.Enabled) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// handleBotSend fires one message from one explicit bot. The dispatch is
// fire-and-forget: an ineligible bot makes it a silent no-op, and delivery
// failures surface on the event stream and in the log.
func (h *Handlers) handleBotSend(w http.ResponseWriter, r *http.Request, idx int) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Message string `json:"message"`
		Channel string `json:"channel"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}
	h.hub.Send(dispatch.Intent{Kind: dispatch.SingleBot, Index: idx}, req.Message, req.Channel)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

func (h *Handlers) handleBotHistory(w http.ResponseWriter, r *http.Request, idx int) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.hub.ClearBotHistory(idx)
	w.WriteHeader(http.StatusNoContent)
}
