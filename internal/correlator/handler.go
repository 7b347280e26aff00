package correlator

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the correlation engine over HTTP using go-chi.
type Handler struct {
	engine *Engine
	log    *slog.Logger
}

// NewHandler returns a Handler backed by the given engine.
func NewHandler(engine *Engine, log *slog.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

// deployRequest is the deploy-notification body. FirstNewSegment is a
// pointer so an absent field is distinguishable from an explicit zero:
// absence arms nothing unless the caller asks for inference.
type deployRequest struct {
	FirstNewSegment *SegmentID `json:"first_new_segment"`
	Infer           bool       `json:"infer"`
}

type deployResponse struct {
	Armed           bool      `json:"armed"`
	FirstNewSegment SegmentID `json:"first_new_segment,omitempty"`
}

// GetTimeline handles GET /api/timeline.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.View())
}

// GetStatus handles GET /api/status. While no poll has succeeded yet there
// is nothing to show; the 404 is the "no data yet" placeholder signal.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.engine.Snapshot()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Deploy handles POST /api/deploy, the deploy-notification entry point.
// An empty body or a body without first_new_segment arms nothing (200,
// armed=false) unless "infer" is set, in which case the watermark is
// derived from the latest snapshot. An explicit id of zero or below is a
// bad request.
func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug("invalid deploy body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case req.FirstNewSegment != nil:
		if !h.engine.Deploy(*req.FirstNewSegment) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, deployResponse{Armed: true, FirstNewSegment: *req.FirstNewSegment})

	case req.Infer:
		id, ok := h.engine.DeployInferred()
		if !ok {
			// Nothing to infer from yet; the caller retries after the
			// first successful poll.
			writeJSON(w, http.StatusConflict, deployResponse{Armed: false})
			return
		}
		writeJSON(w, http.StatusOK, deployResponse{Armed: true, FirstNewSegment: id})

	default:
		writeJSON(w, http.StatusOK, deployResponse{Armed: false})
	}
}

// SwitchFeed handles POST /api/feed/{feed}.
func (h *Handler) SwitchFeed(w http.ResponseWriter, r *http.Request) {
	feed, ok := ParseFeedKind(chi.URLParam(r, "feed"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.engine.SwitchFeed(feed); err != nil {
		h.log.Error("feed switch failed",
			slog.String("feed", string(feed)),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]FeedKind{"feed": feed})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
