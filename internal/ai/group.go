package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// groupGenerator tries each candidate generator in order. Only the
// "unavailable" error class advances to the next candidate; any other
// error surfaces immediately as a generation failure. Every candidate
// attempt is wall-clock bounded by timeout.
type groupGenerator struct {
	items   []IGenerator
	timeout time.Duration
}

func NewGroupGenerator(items []IGenerator, timeout time.Duration) IGenerator {
	if len(items) == 0 {
		return nil
	}
	return &groupGenerator{items: items, timeout: timeout}
}

func (g *groupGenerator) Name() string {
	return "group"
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.run(ctx, func(attemptCtx context.Context, item IGenerator) (string, error) {
		return item.Generate(attemptCtx, prompt)
	})
}

func (g *groupGenerator) GenerateStream(ctx context.Context, prompt string, sink func(token string) error) (string, error) {
	emitted := false
	guarded := func(token string) error {
		emitted = true
		return sink(token)
	}
	return g.run(ctx, func(attemptCtx context.Context, item IGenerator) (string, error) {
		if emitted {
			// Tokens already reached the caller, switching models now
			// would interleave two answers.
			return "", fmt.Errorf("stream already started")
		}
		return item.GenerateStream(attemptCtx, prompt, guarded)
	})
}

func (g *groupGenerator) run(ctx context.Context, attempt func(context.Context, IGenerator) (string, error)) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item == nil {
			continue
		}
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if g.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, g.timeout)
		}
		res, err := attempt(attemptCtx, item)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsUnavailable(err) {
			return "", err
		}
		logutil.GetLogger(ctx).Warn("model candidate unavailable, trying next",
			zap.Int("index", i), zap.String("name", item.Name()), zap.Error(err))
	}
	if lastErr == nil {
		return "", fmt.Errorf("generator not configured")
	}
	return "", fmt.Errorf("all model candidates exhausted: %w", lastErr)
}
