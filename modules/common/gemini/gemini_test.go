package gemini

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"
)

func TestIsOverloaded(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 api error", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, true},
		{"503 api error", fmt.Errorf("call: %w", genai.APIError{Code: 503, Status: "UNAVAILABLE"}), true},
		{"400 api error", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad prompt"}, false},
		{"message", errors.New("Model overloaded"), true},
		{"other", errors.New("permission denied"), false},
	}
	for _, tc := range cases {
		if got := IsOverloaded(tc.err); got != tc.want {
			t.Fatalf("%s: IsOverloaded = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFirstInlineImage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here you go"},
				{InlineData: &genai.Blob{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}},
			}}},
		},
	}

	data, mimeType, ok := FirstInlineImage(resp)
	if !ok || len(data) != 3 || mimeType != "image/jpeg" {
		t.Fatalf("FirstInlineImage = %v, %q, %v", data, mimeType, ok)
	}

	if _, _, ok := FirstInlineImage(&genai.GenerateContentResponse{}); ok {
		t.Fatalf("empty response should have no image")
	}
}
