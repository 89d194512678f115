package history

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"styleforge-server/modules/common/kvstore"
)

func entry(i int) Entry {
	return Entry{
		ID:        fmt.Sprintf("gen-%d", i),
		ImageURL:  fmt.Sprintf("data:image/png;base64,%d", i),
		Prompt:    fmt.Sprintf("prompt %d", i),
		Style:     "Editorial",
		CreatedAt: time.Date(2026, 5, 1, 10, i, 0, 0, time.UTC),
	}
}

type failingStore struct{ kvstore.Store }

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("connection refused")
}

func TestRecordKeepsFiveMostRecent(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s := Load(ctx, kv, DefaultKey, zerolog.Nop())

	for i := 1; i <= 6; i++ {
		if err := s.Record(ctx, entry(i)); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	got := s.List()
	if len(got) != Capacity {
		t.Fatalf("len = %d, want %d", len(got), Capacity)
	}
	for i, e := range got {
		if want := fmt.Sprintf("gen-%d", 6-i); e.ID != want {
			t.Fatalf("entry %d = %s, want %s", i, e.ID, want)
		}
	}
	if _, err := s.Select("gen-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("evicted entry still selectable: %v", err)
	}

	reloaded := Load(ctx, kv, DefaultKey, zerolog.Nop())
	if !reflect.DeepEqual(reloaded.List(), got) {
		t.Fatalf("reloaded history differs:\n got %+v\nwant %+v", reloaded.List(), got)
	}
}

func TestPersistedUnderFixedKey(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s := Load(ctx, kv, "", zerolog.Nop())

	if err := s.Record(ctx, entry(1)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	raw, ok, err := kv.Get(ctx, "generationHistory")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if want := `[{"id":"gen-1","imageUrl":"data:image/png;base64,1","prompt":"prompt 1","style":"Editorial","createdAt":"2026-05-01T10:01:00Z"}]`; raw != want {
		t.Fatalf("persisted = %s\nwant %s", raw, want)
	}
}

func TestLoadCorruptValueYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"{not json", `{"id":"x"}`, "null", ""} {
		kv := kvstore.NewMemoryStore()
		if err := kv.Set(ctx, DefaultKey, raw); err != nil {
			t.Fatalf("Set: %v", err)
		}
		s := Load(ctx, kv, DefaultKey, zerolog.Nop())
		if got := len(s.List()); got != 0 {
			t.Fatalf("Load(%q) len = %d, want 0", raw, got)
		}
	}
}

func TestLoadTruncatesOversizedValue(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	raw := `[{"id":"a"},{"id":"b"},{"id":"c"},{"id":"d"},{"id":"e"},{"id":"f"},{"id":"g"}]`
	if err := kv.Set(ctx, DefaultKey, raw); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s := Load(ctx, kv, DefaultKey, zerolog.Nop())
	if got := len(s.List()); got != Capacity {
		t.Fatalf("len = %d, want %d", got, Capacity)
	}
	if s.List()[0].ID != "a" {
		t.Fatalf("first entry = %s, want a", s.List()[0].ID)
	}
}

func TestLoadSurvivesBackendErrors(t *testing.T) {
	ctx := context.Background()
	s := Load(ctx, failingStore{}, DefaultKey, zerolog.Nop())
	if len(s.List()) != 0 {
		t.Fatalf("expected empty history")
	}
	if err := s.Record(ctx, entry(1)); err == nil {
		t.Fatalf("expected persist error")
	}
	if _, err := s.Select("gen-1"); err != nil {
		t.Fatalf("in-memory history should still hold the entry: %v", err)
	}
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	s := Load(ctx, kvstore.NewMemoryStore(), DefaultKey, zerolog.Nop())
	_ = s.Record(ctx, entry(1))
	_ = s.Record(ctx, entry(2))

	got, err := s.Select("gen-1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Prompt != "prompt 1" {
		t.Fatalf("Prompt = %q, want prompt 1", got.Prompt)
	}
	if _, err := s.Select("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := Load(ctx, kvstore.NewMemoryStore(), DefaultKey, zerolog.Nop())
	_ = s.Record(ctx, entry(1))

	list := s.List()
	list[0].Prompt = "mutated"
	if s.List()[0].Prompt != "prompt 1" {
		t.Fatalf("List exposed internal state")
	}
}
