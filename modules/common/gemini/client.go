package gemini

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Client - thin wrapper around the genai image model
type Client struct {
	models *genai.Models
	model  string
	log    zerolog.Logger
}

// NewClient - Gemini API backend with the given key and model
func NewClient(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Info().Str("model", model).Msg("✅ Gemini client initialized")
	return &Client{models: client.Models, model: model, log: log}, nil
}

// GenerateImage sends prompt (plus an optional reference image) and returns
// the first inline image of the response.
func (c *Client) GenerateImage(ctx context.Context, prompt string, image []byte, mimeType string) ([]byte, string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(image, mimeType))
	}
	content := &genai.Content{Role: genai.RoleUser, Parts: parts}

	c.log.Debug().Str("model", c.model).Int("prompt_len", len(prompt)).Bool("with_image", len(image) > 0).Msg("📤 Sending request to Gemini")

	result, err := c.models.GenerateContent(ctx, c.model, []*genai.Content{content}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, "", err
	}

	data, outMime, ok := FirstInlineImage(result)
	if !ok {
		return nil, "", fmt.Errorf("no image data in response")
	}
	c.log.Debug().Int("bytes", len(data)).Msg("✅ Received image from Gemini")
	return data, outMime, nil
}

// FirstInlineImage - the first non-empty inline blob across all candidates
func FirstInlineImage(resp *genai.GenerateContentResponse) ([]byte, string, bool) {
	if resp == nil {
		return nil, "", false
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return part.InlineData.Data, mimeType, true
			}
		}
	}
	return nil, "", false
}
