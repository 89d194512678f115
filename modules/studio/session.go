package studio

import (
	"sync"
	"time"

	"styleforge-server/modules/common/model"
	"styleforge-server/modules/generation"
	"styleforge-server/modules/ingest"
)

// Session is one user's studio: an upload slot, an orchestrator and the
// result currently on display. It replaces any process-wide state.
type Session struct {
	ID           string
	CreatedAt    time.Time
	Upload       *ingest.UploadSlot
	Orchestrator *generation.Orchestrator

	mu           sync.RWMutex
	lastActivity time.Time
	selected     *model.GenerationResult
	closed       bool
}

// Touch records activity for the inactivity sweep.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity - time of the latest request against the session
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Selected - result on display (last success or a restored history entry)
func (s *Session) Selected() *model.GenerationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	r := *s.selected
	return &r
}

func (s *Session) setSelected(r model.GenerationResult) {
	s.mu.Lock()
	s.selected = &r
	s.mu.Unlock()
}

// close tears the session down: the in-flight submission is cancelled and the
// upload slot releases its preview. Safe to call more than once.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if active := s.Orchestrator.Active(); active != nil {
		active.Cancel()
	}
	s.Upload.Close()
}

// Snapshot - what GET /state returns
type Snapshot struct {
	SessionID  string                  `json:"sessionId"`
	Generation generation.State        `json:"generation"`
	Upload     *UploadView             `json:"upload"`
	Selected   *model.GenerationResult `json:"selected"`
}

// UploadView - an upload without its payload
type UploadView struct {
	FileName       string `json:"fileName"`
	ByteSize       int64  `json:"byteSize"`
	SourceByteSize int64  `json:"sourceByteSize"`
	MimeType       string `json:"mimeType"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Resized        bool   `json:"resized"`
	PreviewID      string `json:"previewId"`
	PreviewURL     string `json:"previewUrl"`
}

func newUploadView(up *ingest.Upload) *UploadView {
	if up == nil {
		return nil
	}
	return &UploadView{
		FileName:       up.Asset.SourceFileName,
		ByteSize:       up.ByteSize,
		SourceByteSize: up.Asset.SourceByteSize,
		MimeType:       up.Asset.ContentType,
		Width:          up.Asset.Width,
		Height:         up.Asset.Height,
		Resized:        up.Resized,
		PreviewID:      up.Preview.ID,
		PreviewURL:     up.Preview.URL,
	}
}

// Snapshot - current state of the session
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		SessionID:  s.ID,
		Generation: s.Orchestrator.State(),
		Upload:     newUploadView(s.Upload.Current()),
		Selected:   s.Selected(),
	}
}
