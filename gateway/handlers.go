package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/types"
)

// maxChatBody bounds one turn. A single companion client sending
// conversational text never legitimately approaches this.
const maxChatBody = 64 << 10

// dialogueTurn is the payload persisted with every dialogue entry.
type dialogueTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// handleChat is one conversation turn: raw UTF-8 text in, raw UTF-8 text
// out. Both sides of the turn are appended to the resonance log.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody))
	if err != nil {
		http.Error(w, "unreadable request body", http.StatusBadRequest)
		return
	}
	userText := string(body)
	if userText == "" {
		http.Error(w, "empty message", http.StatusBadRequest)
		return
	}

	if err := g.recordTurn(r, "user", userText); err != nil {
		g.storeError(w, err)
		return
	}

	reply, err := g.responder.Respond(r.Context(), userText)
	if err != nil {
		g.logger.Error("responder failed", zap.Error(err))
		http.Error(w, "responder unavailable", http.StatusBadGateway)
		return
	}

	if err := g.recordTurn(r, "assistant", reply); err != nil {
		g.storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(reply))
}

func (g *Gateway) recordTurn(r *http.Request, role, text string) error {
	payload, err := json.Marshal(dialogueTurn{Role: role, Text: text})
	if err != nil {
		return err
	}
	_, err = g.log.Append(r.Context(), &types.ResonanceEntry{
		Kind:    types.EntryDialogue,
		Payload: string(payload),
	})
	return err
}

// handleHistory serves recent resonance entries, optionally filtered by
// kind: GET /history?kind=perception&limit=20
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	kind := types.EntryKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		http.Error(w, "unknown entry kind", http.StatusBadRequest)
		return
	}

	entries, err := g.log.Recent(r.Context(), kind, limit)
	if err != nil {
		g.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleStatus reports bridge liveness details for the companion client.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	lastSeq, err := g.log.LastSeq(r.Context())
	if err != nil {
		g.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime_s":   int(time.Since(g.startedAt).Seconds()),
		"last_seq":   lastSeq,
		"pending":    g.pendingTargets(),
		"started_at": g.startedAt.Format(time.RFC3339),
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// storeError maps persistence failures onto 503: the log is the durability
// guarantee, so the gateway refuses to report success without it.
func (g *Gateway) storeError(w http.ResponseWriter, err error) {
	g.logger.Error("store operation failed", zap.Error(err))
	if types.GetErrorCode(err) == types.ErrStoreIO {
		http.Error(w, "resonance log unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
