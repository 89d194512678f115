package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"styleforge-server/modules/common/gemini"
	"styleforge-server/modules/common/model"
	"styleforge-server/modules/common/utils"
)

// imageModel - the part of gemini.Client the generator needs
type imageModel interface {
	GenerateImage(ctx context.Context, prompt string, image []byte, mimeType string) ([]byte, string, error)
}

// GeminiGenerator generates through the Gemini image model.
type GeminiGenerator struct {
	client imageModel
	log    zerolog.Logger
}

// NewGeminiGenerator - wraps an initialized Gemini client
func NewGeminiGenerator(client *gemini.Client, log zerolog.Logger) *GeminiGenerator {
	return &GeminiGenerator{client: client, log: log}
}

func (g *GeminiGenerator) Generate(ctx context.Context, p Payload) (model.GenerationResult, error) {
	var (
		image    []byte
		mimeType string
	)
	if p.ImageDataURL != "" {
		var err error
		mimeType, image, err = utils.ParseDataURL(p.ImageDataURL)
		if err != nil {
			return model.GenerationResult{}, fmt.Errorf("invalid reference image: %w", err)
		}
	}

	prompt := BuildPrompt(p.Prompt, model.Style(p.Style), len(image) > 0)
	g.log.Info().Str("style", p.Style).Int("prompt_len", len(prompt)).Msg("🎨 Calling Gemini")

	data, outMime, err := g.client.GenerateImage(ctx, prompt, image, mimeType)
	if err != nil {
		if ctx.Err() != nil {
			return model.GenerationResult{}, ctx.Err()
		}
		if gemini.IsOverloaded(err) {
			g.log.Warn().Err(err).Msg("⚠️  Gemini overloaded")
			return model.GenerationResult{}, fmt.Errorf("%w: %v", ErrOverloaded, err)
		}
		return model.GenerationResult{}, fmt.Errorf("Gemini API call failed: %w", err)
	}

	return model.GenerationResult{
		ID:        uuid.NewString(),
		ImageURL:  utils.DataURL(outMime, data),
		Prompt:    p.Prompt,
		Style:     p.Style,
		CreatedAt: time.Now().UTC(),
	}, nil
}
