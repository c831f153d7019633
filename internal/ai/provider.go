package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks the "model unavailable" error class: the
// backend cannot serve this model at all (unknown model, missing
// credentials). Fallback advances past it; anything else is a real
// generation failure.
var ErrUnavailable = errors.New("ai backend unavailable")

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

type IProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string) (string, error)
	// GenerateStream emits incremental text through sink as the backend
	// produces it and returns the full accumulated text. A sink error
	// stops emission; the call still returns what was generated.
	GenerateStream(ctx context.Context, model string, prompt string, sink func(token string) error) (string, error)
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

type IGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string, sink func(token string) error) (string, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type generator struct {
	provider IProvider
	model    string
}

func NewGenerator(p IProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Name() string {
	return g.provider.Name() + "/" + g.model
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt)
}

func (g *generator) GenerateStream(ctx context.Context, prompt string, sink func(token string) error) (string, error) {
	return g.provider.GenerateStream(ctx, g.model, prompt, sink)
}

type embedder struct {
	provider IProvider
	model    string
}

func NewEmbedder(p IProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}
