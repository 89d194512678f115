package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"styleforge-server/modules/common/model"
)

func newTestMock(rolls ...float64) *MockGenerator {
	m := NewMockGenerator(0.2)
	i := 0
	m.random = func() float64 {
		v := rolls[min(i, len(rolls)-1)]
		i++
		return v
	}
	m.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestMockGeneratorEchoesRequest(t *testing.T) {
	m := newTestMock(0.5, 0.9)
	res, err := m.Generate(context.Background(), Payload{ImageDataURL: "data:image/png;base64,AA==", Prompt: "p", Style: "Vintage"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ImageURL != "data:image/png;base64,AA==" || res.Prompt != "p" || res.Style != "Vintage" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ID == "" || res.CreatedAt.IsZero() {
		t.Fatalf("result missing id or timestamp: %+v", res)
	}
}

func TestMockGeneratorOverloads(t *testing.T) {
	m := newTestMock(0.5, 0.1)
	if _, err := m.Generate(context.Background(), Payload{Prompt: "p"}); !errors.Is(err, ErrOverloaded) {
		t.Fatalf("err = %v, want ErrOverloaded", err)
	}
}

func TestMockGeneratorLatencyWindow(t *testing.T) {
	m := newTestMock(0.25, 0.9)
	var got time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error { got = d; return nil }

	if _, err := m.Generate(context.Background(), Payload{Prompt: "p"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != 1250*time.Millisecond {
		t.Fatalf("latency = %v, want 1.25s", got)
	}
}

func TestMockGeneratorHonoursCancel(t *testing.T) {
	m := NewMockGenerator(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Generate(ctx, Payload{Prompt: "p"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

type fakeImageModel struct {
	gotPrompt string
	gotImage  []byte
	gotMime   string
	data      []byte
	err       error
}

func (f *fakeImageModel) GenerateImage(_ context.Context, prompt string, image []byte, mimeType string) ([]byte, string, error) {
	f.gotPrompt, f.gotImage, f.gotMime = prompt, image, mimeType
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, "image/png", nil
}

func TestGeminiGeneratorSuccess(t *testing.T) {
	fake := &fakeImageModel{data: []byte{0x89, 'P', 'N', 'G'}}
	g := &GeminiGenerator{client: fake, log: zerolog.Nop()}

	res, err := g.Generate(context.Background(), Payload{ImageDataURL: "data:image/jpeg;base64,AQID", Prompt: "linen suit", Style: "Editorial"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ImageURL != "data:image/png;base64,iVBORw==" {
		t.Fatalf("ImageURL = %q", res.ImageURL)
	}
	if fake.gotMime != "image/jpeg" || len(fake.gotImage) != 3 {
		t.Fatalf("reference image not forwarded: %q %v", fake.gotMime, fake.gotImage)
	}
	if !strings.Contains(fake.gotPrompt, "linen suit") || !strings.Contains(fake.gotPrompt, "EDITORIAL") {
		t.Fatalf("prompt missing user text or style: %q", fake.gotPrompt)
	}
}

func TestGeminiGeneratorMapsOverload(t *testing.T) {
	g := &GeminiGenerator{client: &fakeImageModel{err: genai.APIError{Code: 503, Status: "UNAVAILABLE"}}, log: zerolog.Nop()}
	if _, err := g.Generate(context.Background(), Payload{Prompt: "p"}); !errors.Is(err, ErrOverloaded) {
		t.Fatalf("err = %v, want ErrOverloaded", err)
	}

	g = &GeminiGenerator{client: &fakeImageModel{err: errors.New("safety filter")}, log: zerolog.Nop()}
	_, err := g.Generate(context.Background(), Payload{Prompt: "p"})
	if err == nil || errors.Is(err, ErrOverloaded) {
		t.Fatalf("err = %v, want a non-overload error", err)
	}
}

func TestGeminiGeneratorRejectsBadReference(t *testing.T) {
	g := &GeminiGenerator{client: &fakeImageModel{}, log: zerolog.Nop()}
	if _, err := g.Generate(context.Background(), Payload{ImageDataURL: "not-a-data-url", Prompt: "p"}); err == nil {
		t.Fatalf("expected error for malformed data URL")
	}
}

func TestBuildPromptAndParseStyle(t *testing.T) {
	style, err := model.ParseStyle("streetwear")
	if err != nil || style != model.StyleStreetwear {
		t.Fatalf("ParseStyle = %q, %v", style, err)
	}
	if style, _ := model.ParseStyle(""); style != model.StyleEditorial {
		t.Fatalf("default style = %q, want Editorial", style)
	}
	if _, err := model.ParseStyle("baroque"); err == nil {
		t.Fatalf("expected error for unknown style")
	}

	prompt := BuildPrompt("  wool coat  ", model.StyleVintage, false)
	if !strings.HasPrefix(prompt, "wool coat") || !strings.Contains(prompt, "[VINTAGE]") {
		t.Fatalf("prompt = %q", prompt)
	}
	if strings.Contains(prompt, "reference subject") {
		t.Fatalf("prompt mentions a reference image that was not sent")
	}
}
