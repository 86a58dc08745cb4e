package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"hypnosd/internal/conversation"
	"hypnosd/internal/engine"
)

// Sampling settings fixed for every generation.
const (
	Temperature = 0.7
)

// Generation is the outcome of one serialized engine call.
type Generation struct {
	ID   string
	Text string
	// TotalTokens is zero when the engine does not report usage.
	TotalTokens int
	Waited      time.Duration
	Took        time.Duration
}

// Serializer owns the access gate around the single engine instance: at most
// one generation runs at a time across all requests. Waiters block with no
// timeout, priority or cancellation.
type Serializer struct {
	gate   *semaphore.Weighted
	params engine.Params
	log    zerolog.Logger
}

// NewSerializer returns a Serializer generating up to maxTokens per call.
func NewSerializer(maxTokens int, log zerolog.Logger) *Serializer {
	return &Serializer{
		gate: semaphore.NewWeighted(1),
		params: engine.Params{
			MaxTokens:   maxTokens,
			Temperature: Temperature,
			Stop:        []string{conversation.TurnEnd},
		},
		log: log,
	}
}

// Params returns the generation parameters passed to the engine.
func (s *Serializer) Params() engine.Params { return s.params }

// Generate waits for exclusive access, runs eng on prompt and releases the
// gate on every exit path. Engine errors and panics come back as *InferenceError.
func (s *Serializer) Generate(ctx context.Context, eng engine.Engine, prompt string) (Generation, error) {
	g := Generation{ID: uuid.NewString()}
	// Detached: a waiting or running request is never abandoned midway.
	ctx = context.WithoutCancel(ctx)

	queued := time.Now()
	gateWaiting.Inc()
	err := s.gate.Acquire(ctx, 1)
	gateWaiting.Dec()
	if err != nil {
		return g, &InferenceError{Err: fmt.Errorf("acquire engine: %w", err)}
	}
	defer s.gate.Release(1)
	g.Waited = time.Since(queued)
	gateWaitDuration.Observe(g.Waited.Seconds())

	generationInflight.Inc()
	start := time.Now()
	c, err := s.call(ctx, eng, prompt)
	g.Took = time.Since(start)
	generationInflight.Dec()
	generationDuration.Observe(g.Took.Seconds())

	if err != nil {
		generationErrors.Inc()
		s.log.Error().Str("gen_id", g.ID).Dur("dur", g.Took).Err(err).Msg("generation failed")
		return g, &InferenceError{Err: err}
	}
	g.Text = strings.TrimSpace(c.Text)
	g.TotalTokens = c.TotalTokens
	s.log.Debug().Str("gen_id", g.ID).Dur("wait", g.Waited).Dur("dur", g.Took).Int("chars", len(g.Text)).Msg("generation done")
	return g, nil
}

func (s *Serializer) call(ctx context.Context, eng engine.Engine, prompt string) (c engine.Completion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return eng.Generate(ctx, prompt, s.params)
}
