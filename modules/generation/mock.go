package generation

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"styleforge-server/modules/common/cancel"
	"styleforge-server/modules/common/model"
)

// MockGenerator stands in for a real backend: it answers after a random
// delay and fails with ErrOverloaded at the configured rate.
type MockGenerator struct {
	OverloadRate float64
	MinLatency   time.Duration
	MaxLatency   time.Duration

	random func() float64
	sleep  cancel.Sleeper
	now    func() time.Time
}

// NewMockGenerator - latency uniform in [1s, 2s)
func NewMockGenerator(overloadRate float64) *MockGenerator {
	return &MockGenerator{
		OverloadRate: overloadRate,
		MinLatency:   time.Second,
		MaxLatency:   2 * time.Second,
		random:       rand.Float64,
		sleep:        cancel.Sleep,
		now:          time.Now,
	}
}

// Generate echoes the request back as a result.
func (m *MockGenerator) Generate(ctx context.Context, p Payload) (model.GenerationResult, error) {
	latency := m.MinLatency + time.Duration(m.random()*float64(m.MaxLatency-m.MinLatency))
	if err := m.sleep(ctx, latency); err != nil {
		return model.GenerationResult{}, err
	}

	if m.random() < m.OverloadRate {
		return model.GenerationResult{}, ErrOverloaded
	}

	return model.GenerationResult{
		ID:        uuid.NewString(),
		ImageURL:  p.ImageDataURL,
		Prompt:    p.Prompt,
		Style:     p.Style,
		CreatedAt: m.now().UTC(),
	}, nil
}
