package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"styleforge-server/modules/common/notify"
)

// UploadSlot owns the single live upload of a session. Only the slot creates
// or releases its preview handle.
type UploadSlot struct {
	ingest   func(context.Context, File) (*Upload, error)
	notifier notify.Notifier

	mu      sync.Mutex
	seq     uint64
	current *Upload
	closed  bool
}

// NewUploadSlot - an empty slot; notices go to notifier (may be nil)
func NewUploadSlot(pipeline *Pipeline, notifier notify.Notifier) *UploadSlot {
	if notifier == nil {
		notifier = notify.Func(func(context.Context, notify.Notice) {})
	}
	return &UploadSlot{ingest: pipeline.Ingest, notifier: notifier}
}

// Select ingests f and, if no newer selection arrived meanwhile, makes it the
// current upload and releases the previous handle. A rejected file leaves the
// current upload untouched.
func (s *UploadSlot) Select(ctx context.Context, f File) (*Upload, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSlotClosed
	}
	s.seq++
	ticket := s.seq
	s.mu.Unlock()

	up, err := s.ingest(ctx, f)

	s.mu.Lock()
	if s.closed || ticket != s.seq {
		closed := s.closed
		s.mu.Unlock()
		if up != nil {
			up.Preview.Release()
		}
		if closed {
			return nil, ErrSlotClosed
		}
		return nil, ErrSuperseded
	}
	if err != nil {
		s.mu.Unlock()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.notifier.Notify(ctx, notify.Error(uploadErrorMessage(err)))
		}
		return nil, err
	}
	prev := s.current
	s.current = up
	s.mu.Unlock()

	if prev != nil {
		prev.Preview.Release()
	}

	s.notifier.Notify(ctx, notify.Success(fmt.Sprintf(
		"Image %q uploaded successfully! (%.2f MB)",
		f.Name, float64(up.ByteSize)/1024/1024,
	)))
	return up, nil
}

// Clear removes the current upload. It also invalidates any ingestion still
// in flight.
func (s *UploadSlot) Clear() {
	s.mu.Lock()
	s.seq++
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	if prev != nil {
		prev.Preview.Release()
	}
}

// Close releases everything; later selections fail with ErrSlotClosed.
func (s *UploadSlot) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Clear()
}

// Current returns the live upload, or nil.
func (s *UploadSlot) Current() *Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Resolve picks the asset for a generation request. A caller-supplied asset
// always overrides the locally ingested one.
func (s *UploadSlot) Resolve(external *UploadedAsset) Source {
	if external != nil && len(external.EncodedData) > 0 {
		return External(external)
	}
	if up := s.Current(); up != nil {
		asset := up.Asset
		return Local(&asset)
	}
	return Source{Kind: SourceNone}
}

func uploadErrorMessage(err error) string {
	if errors.Is(err, ErrUnsupportedFormat) {
		return "Only PNG and JPG images are allowed."
	}
	return "❌ Upload failed: " + err.Error()
}
