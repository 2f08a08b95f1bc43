// Package provider adapts text-generation backends to a single Generate call.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/promptledger/PromptLedger/internal/models"
)

// Request is one generation call.
type Request struct {
	Prompt string
	Model  string
	Params models.GenerationParams
}

// Result is what a successful generation returns. Token counts are nil when unknown.
type Result struct {
	ResponseText      string
	PromptTokens      *int
	ResponseTokens    *int
	LatencyMs         int
	ProviderRequestID string
}

// Provider generates text. Failures should be *Error so they can be classified.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces p under its name.
func (r *Registry) Register(p Provider) {
	r.providers[strings.ToLower(p.Name())] = p
}

// Get returns the provider registered as name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for provider %q", models.ErrNotFound, name)
	}
	return p, nil
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func intPtr(v int) *int { return &v }
