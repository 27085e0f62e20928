package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yegors/skywatch/internal/audio"
	"github.com/yegors/skywatch/internal/bus"
	"github.com/yegors/skywatch/internal/collector"
	"github.com/yegors/skywatch/internal/config"
	"github.com/yegors/skywatch/internal/escalation"
	"github.com/yegors/skywatch/internal/feed"
	"github.com/yegors/skywatch/internal/pipeline"
	"github.com/yegors/skywatch/internal/storage/sqlite"
	"github.com/yegors/skywatch/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	collector   *collector.Collector
	escalation  *escalation.Controller
	msgBus      *bus.Bus
	pipeline    *pipeline.Pipeline
	mirror      *audio.MirrorBuffer
	transcripts *sqlite.TranscriptStorage
	incidents   *sqlite.IncidentStorage
	feed        *feed.Feed
	config      *config.Config
	logger      *logger.Logger
	startTime   time.Time
}

// NewHandler creates a new API handler
func NewHandler(
	coll *collector.Collector,
	esc *escalation.Controller,
	msgBus *bus.Bus,
	pipe *pipeline.Pipeline,
	mirror *audio.MirrorBuffer,
	transcripts *sqlite.TranscriptStorage,
	incidents *sqlite.IncidentStorage,
	messageFeed *feed.Feed,
	cfg *config.Config,
	log *logger.Logger,
) *Handler {
	return &Handler{
		collector:   coll,
		escalation:  esc,
		msgBus:      msgBus,
		pipeline:    pipe,
		mirror:      mirror,
		transcripts: transcripts,
		incidents:   incidents,
		feed:        messageFeed,
		config:      cfg,
		logger:      log.Named("api-handler"),
		startTime:   time.Now().UTC(),
	}
}

// respondJSON writes a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

// respondError writes a JSON error response
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// GetHealth returns service health and uptime
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
	})
}

// GetStats returns combined pipeline counters
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.pipeline.Stats())
}

// GetTrackedCallsigns returns all callsigns with retained context
func (h *Handler) GetTrackedCallsigns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"callsigns": h.collector.TrackedCallsigns(),
	})
}

// GetConsolidatedContext returns the consolidated context for one callsign
func (h *Handler) GetConsolidatedContext(w http.ResponseWriter, r *http.Request) {
	cs := chi.URLParam(r, "callsign")
	if cs == "" {
		h.respondError(w, http.StatusBadRequest, "callsign is required")
		return
	}

	windowMinutes := 0
	if v := r.URL.Query().Get("window_minutes"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid window_minutes")
			return
		}
		windowMinutes = parsed
	}

	consolidated := h.collector.Consolidate(cs, windowMinutes)
	if consolidated == nil {
		h.respondError(w, http.StatusNotFound, "no observations for callsign")
		return
	}

	h.respondJSON(w, http.StatusOK, consolidated)
}

// GetCandidates returns current emergency candidate callsigns
func (h *Handler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	lookback := h.config.Collector.CandidateLookbackMinutes
	if v := r.URL.Query().Get("lookback_minutes"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid lookback_minutes")
			return
		}
		lookback = parsed
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"candidates": h.collector.EmergencyCandidates(lookback),
	})
}

// GetIncidents returns in-memory incidents from the escalation controller
func (h *Handler) GetIncidents(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"incidents": h.escalation.Incidents(),
	})
}

// EvaluateIncidents runs one escalation evaluation cycle immediately
func (h *Handler) EvaluateIncidents(w http.ResponseWriter, r *http.Request) {
	h.escalation.Evaluate(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]any{
		"incidents": h.escalation.Incidents(),
	})
}

// GetIncidentHistory returns archived incidents from storage
func (h *Handler) GetIncidentHistory(w http.ResponseWriter, r *http.Request) {
	if h.incidents == nil {
		h.respondError(w, http.StatusNotFound, "incident storage disabled")
		return
	}

	limit := parseLimit(r, 50)
	records, err := h.incidents.GetRecentIncidents(limit)
	if err != nil {
		h.logger.Error("Failed to query incidents", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query incidents")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"incidents": records})
}

// GetIncidentsByCallsign returns archived incidents for one callsign
func (h *Handler) GetIncidentsByCallsign(w http.ResponseWriter, r *http.Request) {
	if h.incidents == nil {
		h.respondError(w, http.StatusNotFound, "incident storage disabled")
		return
	}

	cs := chi.URLParam(r, "callsign")
	limit := parseLimit(r, 50)
	records, err := h.incidents.GetIncidentsByCallsign(cs, limit)
	if err != nil {
		h.logger.Error("Failed to query incidents", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query incidents")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"incidents": records})
}

// GetTranscripts returns recent archived transcripts
func (h *Handler) GetTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		h.respondError(w, http.StatusNotFound, "transcript storage disabled")
		return
	}

	limit := parseLimit(r, 100)
	records, err := h.transcripts.GetRecentTranscripts(limit)
	if err != nil {
		h.logger.Error("Failed to query transcripts", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query transcripts")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"transcripts": records})
}

// GetTranscriptsByCallsign returns archived transcripts for one callsign
func (h *Handler) GetTranscriptsByCallsign(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		h.respondError(w, http.StatusNotFound, "transcript storage disabled")
		return
	}

	cs := chi.URLParam(r, "callsign")
	limit := parseLimit(r, 100)
	records, err := h.transcripts.GetTranscriptsByCallsign(cs, limit)
	if err != nil {
		h.logger.Error("Failed to query transcripts", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query transcripts")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"transcripts": records})
}

// GetBusHistory returns retained bus messages for a topic
func (h *Handler) GetBusHistory(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		h.respondError(w, http.StatusBadRequest, "topic is required")
		return
	}

	limit := parseLimit(r, 100)
	h.respondJSON(w, http.StatusOK, map[string]any{
		"topic":    topic,
		"messages": h.msgBus.History(topic, limit),
	})
}

// GetMessages returns the shared message feed
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.respondError(w, http.StatusNotFound, "message feed disabled")
		return
	}

	messages, err := h.feed.Messages()
	if err != nil {
		h.logger.Error("Failed to read message feed", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to read message feed")
		return
	}
	if messages == nil {
		messages = []feed.Message{}
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// StreamAudio serves the live audio mirror as a WAV stream
func (h *Handler) StreamAudio(w http.ResponseWriter, r *http.Request) {
	if h.mirror == nil {
		h.respondError(w, http.StatusNotFound, "audio mirroring disabled")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	listenerID := uuid.NewString()
	wav := audio.NewWAVStreamReader(
		h.mirror.Listen(listenerID),
		h.config.Audio.SampleRate,
		h.config.Audio.Channels,
	)
	defer wav.Close()

	h.logger.Info("Audio stream listener connected",
		logger.String("listener_id", listenerID),
		logger.String("remote_addr", r.RemoteAddr))

	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("Audio stream listener disconnected",
				logger.String("listener_id", listenerID))
			return
		default:
		}

		n, err := wav.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("Audio stream read failed", logger.Error(err))
			}
			return
		}
	}
}

func parseLimit(r *http.Request, fallback int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
