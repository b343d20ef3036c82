package server

import (
	"net/http"
	"strings"

	"github.com/ngscoder/chatfleet/config"
	"github.com/ngscoder/chatfleet/dispatch"
)

// HandleMessages replaces the random-message pool from message-file text.
func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	n := h.hub.LoadMessages(string(body))
	writeJSON(w, http.StatusOK, map[string]int{"loaded": n})
}

// HandleChannel sets the target channel for subsequent sends.
func (h *Handlers) HandleChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Channel) == "" {
		http.Error(w, "channel required", http.StatusBadRequest)
		return
	}
	h.hub.SetChannel(req.Channel)
	writeJSON(w, http.StatusOK, map[string]string{"channel": strings.TrimPrefix(req.Channel, "#")})
}

// HandleSend dispatches a message by mode: "random" picks one eligible bot,
// "all" fans out to every eligible bot, "subset" to count random eligible
// bots. An empty message draws from the pool.
func (h *Handlers) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Mode    string `json:"mode"`
		Message string `json:"message"`
		Channel string `json:"channel"`
		Count   int    `json:"count"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	intent, ok := intentForMode(req.Mode, req.Count)
	if !ok {
		http.Error(w, "mode must be one of random, all, subset", http.StatusBadRequest)
		return
	}
	h.hub.Send(intent, req.Message, req.Channel)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

func intentForMode(mode string, count int) (dispatch.Intent, bool) {
	switch mode {
	case config.ModeRandom, "":
		return dispatch.Intent{Kind: dispatch.RandomBot}, true
	case config.ModeAll:
		return dispatch.Intent{Kind: dispatch.AllBots}, true
	case config.ModeSubset:
		return dispatch.Intent{Kind: dispatch.SubsetBots, Count: count}, true
	}
	return dispatch.Intent{}, false
}

// HandleSchedule arms or disarms the random-interval trigger: GET returns the
// schedule view, POST updates enabled/bounds/mode.
func (h *Handlers) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.hub.Status().Schedule)
	case http.MethodPost:
		var req struct {
			Enabled        bool   `json:"enabled"`
			MinIntervalSec uint   `json:"min_interval_sec"`
			MaxIntervalSec uint   `json:"max_interval_sec"`
			Mode           string `json:"mode"`
			SubsetCount    int    `json:"subset_count"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Mode != "" {
			if _, ok := intentForMode(req.Mode, 1); !ok {
				http.Error(w, "mode must be one of random, all, subset", http.StatusBadRequest)
				return
			}
			h.hub.SetScheduleMode(req.Mode, req.SubsetCount)
		}
		h.hub.SetSchedule(req.Enabled, req.MinIntervalSec, req.MaxIntervalSec)
		writeJSON(w, http.StatusOK, h.hub.Status().Schedule)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleScheduleFire runs one schedule cycle immediately without changing the
// armed state.
func (h *Handlers) HandleScheduleFire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.hub.FireNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "fired"})
}

// HandleDelay configures simultaneous vs. staggered multi-bot delivery.
func (h *Handlers) HandleDelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Simultaneous bool `json:"simultaneous"`
		MinDelaySec  uint `json:"min_delay_sec"`
		MaxDelaySec  uint `json:"max_delay_sec"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.hub.SetDelayPolicy(req.Simultaneous, req.MinDelaySec, req.MaxDelaySec)
	writeJSON(w, http.StatusOK, h.hub.Status().Delay)
}

// HandleLog serves the global chat log: GET returns it, DELETE clears it.
func (h *Handlers) HandleLog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.hub.Log())
	case http.MethodDelete:
		h.hub.ClearLog()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleHistory clears the global log and every bot history in one shot.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.hub.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}
