package ingest

import (
	"fmt"
	"image"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"styleforge-server/modules/common/utils"
)

// previewMaxSide bounds the rendered preview; the asset itself is untouched.
const previewMaxSide = 512

// PreviewRegistry holds WebP renderings of uploaded assets until their
// handle is released.
type PreviewRegistry struct {
	basePath string
	quality  float32
	log      zerolog.Logger

	mu      sync.RWMutex
	entries map[string][]byte
}

// NewPreviewRegistry - previews are served under basePath (e.g. "/previews")
func NewPreviewRegistry(basePath string, quality float32, log zerolog.Logger) *PreviewRegistry {
	return &PreviewRegistry{
		basePath: basePath,
		quality:  quality,
		log:      log,
		entries:  make(map[string][]byte),
	}
}

// Create renders img and returns a fresh handle owning the rendering.
func (r *PreviewRegistry) Create(img image.Image) (*PreviewHandle, error) {
	b := img.Bounds()
	w, h := utils.ScaleToFit(b.Dx(), b.Dy(), previewMaxSide)
	if w != b.Dx() || h != b.Dy() {
		img = utils.ResizeImage(img, w, h)
	}

	data, err := utils.EncodeWebP(img, r.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = data
	live := len(r.entries)
	r.mu.Unlock()

	r.log.Debug().Str("preview_id", id).Int("bytes", len(data)).Int("live", live).Msg("🖼️  Preview created")

	return &PreviewHandle{
		ID:       id,
		URL:      r.basePath + "/" + id,
		registry: r,
	}, nil
}

// Get returns the WebP bytes of a live handle.
func (r *PreviewRegistry) Get(id string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.entries[id]
	return data, ok
}

// Len - number of live previews
func (r *PreviewRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *PreviewRegistry) release(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	live := len(r.entries)
	r.mu.Unlock()

	r.log.Debug().Str("preview_id", id).Int("live", live).Msg("🗑️  Preview released")
}

// RegisterRoutes wires GET {basePath}/{handle}.
func (r *PreviewRegistry) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(r.basePath+"/{handle}", r.handleGet).Methods("GET")
}

func (r *PreviewRegistry) handleGet(w http.ResponseWriter, req *http.Request) {
	data, ok := r.Get(mux.Vars(req)["handle"])
	if !ok {
		http.Error(w, "preview not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// PreviewHandle - exclusively owned reference to one preview rendering
type PreviewHandle struct {
	ID  string `json:"id"`
	URL string `json:"url"`

	registry *PreviewRegistry
	once     sync.Once
	released atomic.Bool
}

// Release frees the rendering. Only the first call has an effect; it reports
// whether this call performed the release.
func (h *PreviewHandle) Release() bool {
	if h == nil {
		return false
	}
	did := false
	h.once.Do(func() {
		h.registry.release(h.ID)
		h.released.Store(true)
		did = true
	})
	return did
}

// Released reports whether Release has run.
func (h *PreviewHandle) Released() bool {
	return h != nil && h.released.Load()
}
