package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davidbz/ember/internal/domain"
)

const (
	objectModel = "model"
	ownerOpenAI = "openai"
	ownerClaude = "anthropic"
)

// Registry implements the EngineRegistry interface.
// Each provider tag is served by at most one engine; tags without an
// engine fall back to the default engine.
type Registry struct {
	mu            sync.RWMutex
	engines       map[string]domain.Engine
	tagToEngine   map[domain.ProviderTag]string
	defaultEngine string
}

// NewRegistry creates a new engine registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:          sync.RWMutex{},
		engines:     make(map[string]domain.Engine),
		tagToEngine: make(map[domain.ProviderTag]string),
	}
}

// Register adds an engine to the registry.
func (r *Registry) Register(_ context.Context, engine domain.Engine) error {
	if engine == nil {
		return errors.New("engine cannot be nil")
	}

	name := engine.Name()
	if name == "" {
		return errors.New("engine name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("engine %s already registered", name)
	}

	tags := engine.Providers()
	for _, tag := range tags {
		if owner, taken := r.tagToEngine[tag]; taken {
			return fmt.Errorf("provider %s already served by engine %s", tag, owner)
		}
	}

	r.engines[name] = engine
	for _, tag := range tags {
		r.tagToEngine[tag] = name
	}

	return nil
}

// SetDefault makes a registered engine serve every tag without its own engine.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; !exists {
		return fmt.Errorf("engine %s not found", name)
	}

	r.defaultEngine = name
	return nil
}

// Get retrieves an engine by name.
func (r *Registry) Get(_ context.Context, name string) (domain.Engine, error) {
	if name == "" {
		return nil, errors.New("engine name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, exists := r.engines[name]
	if !exists {
		return nil, fmt.Errorf("engine %s not found", name)
	}

	return engine, nil
}

// Resolve returns the engine serving provider, falling back to the default.
func (r *Registry) Resolve(_ context.Context, provider domain.ProviderTag) (domain.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, exists := r.tagToEngine[provider]; exists {
		return r.engines[name], nil
	}

	if r.defaultEngine != "" {
		return r.engines[r.defaultEngine], nil
	}

	return nil, fmt.Errorf("%w for provider %s", domain.ErrNoEngine, provider)
}

// List returns the names of all registered engines.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}

	return names, nil
}

// Catalog returns the static model list advertised by /v1/models.
// It does not depend on which engines are registered.
func Catalog() []domain.ModelInfo {
	return []domain.ModelInfo{
		{ID: "gpt-4-turbo-preview", Object: objectModel, OwnedBy: ownerOpenAI},
		{ID: "gpt-4", Object: objectModel, OwnedBy: ownerOpenAI},
		{ID: "gpt-3.5-turbo", Object: objectModel, OwnedBy: ownerOpenAI},
		{ID: "claude-3-opus-20240229", Object: objectModel, OwnedBy: ownerClaude},
		{ID: "claude-3-sonnet-20240229", Object: objectModel, OwnedBy: ownerClaude},
		{ID: "claude-3-haiku-20240307", Object: objectModel, OwnedBy: ownerClaude},
	}
}
