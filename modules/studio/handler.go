package studio

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"styleforge-server/modules/common/model"
	"styleforge-server/modules/common/notify"
	"styleforge-server/modules/common/utils"
	"styleforge-server/modules/generation"
	"styleforge-server/modules/history"
	"styleforge-server/modules/ingest"
)

const (
	// multipart overhead on top of the raw image limit
	uploadBodySlack = 1 << 20
	maxJSONBody     = 64 << 20
)

// Handler exposes the studio over HTTP.
type Handler struct {
	manager    *Manager
	history    *history.Store
	hub        *notify.Hub
	log        zerolog.Logger
	maxUpload  int64
	serviceTag string
}

// NewHandler - maxUpload bounds the raw file accepted by the upload endpoint
func NewHandler(manager *Manager, hist *history.Store, hub *notify.Hub, maxUpload int64, log zerolog.Logger) *Handler {
	return &Handler{
		manager:    manager,
		history:    hist,
		hub:        hub,
		log:        log,
		maxUpload:  maxUpload,
		serviceTag: "styleforge-studio",
	}
}

// RegisterRoutes wires every studio endpoint.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.HealthCheck).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/metrics", h.GetMetrics).Methods("GET")
	r.HandleFunc("/ws", h.ServeWS).Methods("GET")

	r.HandleFunc("/api/sessions", h.CreateSession).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}", h.DeleteSession).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}/state", h.GetState).Methods("GET")
	r.HandleFunc("/api/sessions/{sessionId}/upload", h.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}/upload", h.ClearUpload).Methods("DELETE")
	r.HandleFunc("/api/sessions/{sessionId}/generate", h.Generate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}/abort", h.Abort).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{sessionId}/history/{entryId}/select", h.SelectHistory).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/history", h.ListHistory).Methods("GET")

	h.log.Info().Msg("✅ [Studio] Routes registered")
}

// EnableCORS - permissive CORS for the browser shell
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.serviceTag,
	})
}

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := h.manager.Metrics()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":         time.Since(metrics.StartTime).String(),
			"startTime":      metrics.StartTime,
			"totalSessions":  metrics.TotalSessions,
			"activeSessions": metrics.ActiveSessions,
		},
		"history": map[string]interface{}{
			"entries":  len(h.history.List()),
			"capacity": history.Capacity,
		},
	})
}

// ServeWS subscribes a socket to a live session.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if _, err := h.manager.Get(r.URL.Query().Get("session")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.hub.ServeWS(w, r)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": s.ID})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(mux.Vars(r)["sessionId"]); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Upload - multipart form with a single "file" part
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+uploadBodySlack)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	up, err := s.Upload.Select(r.Context(), ingest.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedFormat):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, ingest.ErrDecode):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ingest.ErrSuperseded):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ingest.ErrSlotClosed):
			writeError(w, http.StatusGone, err.Error())
		default:
			h.log.Error().Err(err).Str("session_id", s.ID).Msg("❌ Upload failed")
			writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, newUploadView(up))
}

func (h *Handler) ClearUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Upload.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	ImageDataURL string `json:"imageDataUrl,omitempty"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	style, err := model.ParseStyle(req.Style)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var external *ingest.UploadedAsset
	if req.ImageDataURL != "" {
		mimeType, data, err := utils.ParseDataURL(req.ImageDataURL)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid imageDataUrl: "+err.Error())
			return
		}
		external = &ingest.UploadedAsset{
			EncodedData:    []byte(utils.ConvertImageToBase64(data)),
			SourceFileName: "external",
			SourceByteSize: int64(len(data)),
			ContentType:    mimeType,
		}
	}
	source := s.Upload.Resolve(external)

	sub, err := s.Orchestrator.Submit(r.Context(), generation.Request{
		Asset:  source.Asset,
		Prompt: req.Prompt,
		Style:  style,
	})
	switch {
	case errors.Is(err, generation.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, generation.ErrSubmissionActive):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"submissionId": sub.ID(),
		"source":       source.Kind.String(),
	})
}

func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	active := s.Orchestrator.Active()
	if active == nil {
		writeError(w, http.StatusConflict, "no generation in progress")
		return
	}
	active.Cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"submissionId": active.ID()})
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": h.history.List()})
}

// SelectHistory restores a past result into the session's display.
func (h *Handler) SelectHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	entry, err := h.history.Select(mux.Vars(r)["entryId"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.setSelected(entry)
	if h.hub != nil {
		h.hub.Publish(notify.Frame{Type: "selected", SessionID: s.ID, State: entry})
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.manager.Get(mux.Vars(r)["sessionId"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
