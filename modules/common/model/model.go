package model

import (
	"fmt"
	"strings"
	"time"
)

// Style - the look requested for a generation
type Style string

const (
	StyleEditorial  Style = "Editorial"
	StyleStreetwear Style = "Streetwear"
	StyleVintage    Style = "Vintage"
)

// Styles lists every accepted style, default first.
var Styles = []Style{StyleEditorial, StyleStreetwear, StyleVintage}

// ParseStyle matches s case-insensitively; "" selects Editorial.
func ParseStyle(s string) (Style, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StyleEditorial, nil
	}
	for _, style := range Styles {
		if strings.EqualFold(s, string(style)) {
			return style, nil
		}
	}
	return "", fmt.Errorf("unknown style %q", s)
}

// GenerationResult - one finished generation; never mutated after creation.
// The same shape is stored as a history entry.
type GenerationResult struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"imageUrl"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	CreatedAt time.Time `json:"createdAt"`
}

// Orchestrator statuses
const (
	StatusIdle       = "idle"
	StatusSubmitting = "submitting"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusAborted    = "aborted"
)
