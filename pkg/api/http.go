// Package api exposes the HTTP surface: event intake for the platform
// connector and read endpoints over the ledger. Event bodies are
// validated just enough to be queueable; the engine does the real work
// on the consumer side.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"vouchd/pkg/engine"
	"vouchd/pkg/ingest"
	"vouchd/pkg/models"
	"vouchd/pkg/telemetry"
	"vouchd/pkg/utils"
)

// maxEventBody bounds inbound event bodies. Chat messages are small;
// anything larger is not a legitimate event.
const maxEventBody = 64 * 1024

// Handler routes the public API.
//
//   - POST /v1/events/message          accept a chat message event
//   - POST /v1/events/message-deleted  accept a message-deleted event
//   - GET  /v1/subjects/{id}/count     cached vouch count for a subject
//   - GET  /v1/subjects/{id}/vouches   full entry list for a subject
//   - GET  /v1/top?n=                  top subjects by count
//   - GET  /v1/stats                   ledger and queue statistics
//   - GET  /healthz                    liveness
//   - GET  /readyz                     readiness (queue headroom)
//   - POST /v1/admin/reindex           verify and rebuild the message index
//   - POST /v1/admin/flush             force a snapshot save
func Handler(q *ingest.Queue, eng *engine.Engine) http.Handler {
	l := eng.Ledger()
	started := time.Now()
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		// ready once the queue has headroom; a saturated queue sheds load
		if q.Len() >= q.Cap() {
			utils.WriteError(w, http.StatusServiceUnavailable, "ingest queue saturated")
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/events/message", func(w http.ResponseWriter, req *http.Request) {
		body, ok := readEventBody(w, req)
		if !ok {
			return
		}
		var ev models.MessageEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			utils.WriteError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if ev.MessageID == "" || ev.ChannelID == "" {
			utils.WriteError(w, http.StatusBadRequest, "message_id and channel_id required")
			return
		}
		enqueue(w, q, ingest.EventMessage, body)
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/events/message-deleted", func(w http.ResponseWriter, req *http.Request) {
		body, ok := readEventBody(w, req)
		if !ok {
			return
		}
		var ev models.MessageDeletedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			utils.WriteError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if ev.MessageID == "" || ev.ChannelID == "" {
			utils.WriteError(w, http.StatusBadRequest, "message_id and channel_id required")
			return
		}
		enqueue(w, q, ingest.EventMessageDeleted, body)
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/subjects/{id}/count", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		utils.WriteJSON(w, http.StatusOK, map[string]any{
			"subject_id": id,
			"count":      l.CountFor(id),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/subjects/{id}/vouches", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		entries := l.Entries(id)
		if entries == nil {
			entries = []models.VouchEntry{}
		}
		utils.WriteJSON(w, http.StatusOK, map[string]any{
			"subject_id": id,
			"count":      len(entries),
			"entries":    entries,
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/top", func(w http.ResponseWriter, req *http.Request) {
		n := 10
		if raw := req.URL.Query().Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				utils.WriteError(w, http.StatusBadRequest, "n must be a non-negative integer")
				return
			}
			n = v
		}
		utils.WriteJSON(w, http.StatusOK, map[string]any{"top": l.Top(n)})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/stats", func(w http.ResponseWriter, _ *http.Request) {
		subjects, entries := l.Stats()
		utils.WriteJSON(w, http.StatusOK, map[string]any{
			"subjects":      subjects,
			"entries":       entries,
			"evicted":       l.Evicted(),
			"queue_depth":   q.Len(),
			"queue_cap":     q.Cap(),
			"queue_dropped": q.Dropped(),
			"uptime":        time.Since(started).Round(time.Second).String(),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/admin/reindex", func(w http.ResponseWriter, req *http.Request) {
		verifyErr := l.CheckIndex()
		if verifyErr != nil {
			l.RebuildIndex()
		}
		resp := map[string]any{"repaired": verifyErr != nil}
		if verifyErr != nil {
			resp["violation"] = verifyErr.Error()
		}
		utils.WriteJSON(w, http.StatusOK, resp)
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/admin/flush", func(w http.ResponseWriter, _ *http.Request) {
		eng.Flush()
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
	}).Methods(http.MethodPost)

	return r
}

func readEventBody(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxEventBody+1))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "read body")
		return nil, false
	}
	if len(body) > maxEventBody {
		utils.WriteError(w, http.StatusRequestEntityTooLarge, "event body too large")
		return nil, false
	}
	return body, true
}

func enqueue(w http.ResponseWriter, q *ingest.Queue, typ ingest.EventType, body []byte) {
	if err := q.TryEnqueue(typ, body); err != nil {
		telemetry.QueueDropped.Inc()
		utils.WriteError(w, http.StatusServiceUnavailable, "queue full")
		return
	}
	telemetry.QueueDepth.Set(float64(q.Len()))
	utils.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
