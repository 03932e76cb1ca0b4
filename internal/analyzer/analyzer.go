// Package analyzer submits formatted chat context to an LLM provider and
// returns its raw answer. Interpreting the answer is the verdict package's job.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNoProvider means no analyzer provider is configured; callers treat
	// the cycle as producing no verdicts.
	ErrNoProvider = errors.New("no analyzer provider configured")
	// ErrUnknownProvider means the requested provider id was never registered.
	ErrUnknownProvider = errors.New("unknown analyzer provider")
)

// Gateway is what the batch processor calls.
type Gateway interface {
	Analyze(ctx context.Context, contextText, providerID string) (string, error)
}

// Provider is a single model backend.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, system, user string) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// Registry maps provider ids to providers and builds the review prompt
// around every request.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	prompt    *Prompt
	log       *zap.Logger
}

// NewRegistry creates an empty registry using prompt for every request.
func NewRegistry(prompt *Prompt, log *zap.Logger) *Registry {
	if prompt == nil {
		prompt = NewPrompt("", "")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		providers: make(map[string]Provider),
		prompt:    prompt,
		log:       log,
	}
}

// Register adds or replaces the provider under id.
func (r *Registry) Register(id string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[id] = p
}

// IDs returns the registered provider ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prompt returns the prompt the registry sends.
func (r *Registry) Prompt() *Prompt { return r.prompt }

// Analyze sends contextText to the provider registered under providerID.
// An empty providerID returns ErrNoProvider without any network call.
func (r *Registry) Analyze(ctx context.Context, contextText, providerID string) (string, error) {
	if providerID == "" {
		return "", ErrNoProvider
	}
	r.mu.RLock()
	p, ok := r.providers[providerID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}

	r.log.Debug("calling analyzer", zap.String("provider", providerID), zap.Int("context_bytes", len(contextText)))
	out, err := p.Complete(ctx, r.prompt.System(), r.prompt.User(contextText))
	if err != nil {
		return "", fmt.Errorf("provider %s: %w", providerID, err)
	}
	return out, nil
}
