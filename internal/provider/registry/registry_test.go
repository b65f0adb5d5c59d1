package registry_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/provider/echo"
	"github.com/davidbz/ember/internal/provider/registry"
)

var _ domain.EngineRegistry = (*registry.Registry)(nil)

// mockEngine is a mock implementation of domain.Engine for testing.
type mockEngine struct {
	name string
	tags []domain.ProviderTag
}

func (m *mockEngine) Complete(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResult, error) {
	return &domain.CompletionResult{}, nil
}

func (m *mockEngine) Name() string {
	return m.name
}

func (m *mockEngine) Providers() []domain.ProviderTag {
	return m.tags
}

func TestRegistry_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should register engine successfully", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := reg.Register(ctx, &mockEngine{name: "openai", tags: []domain.ProviderTag{domain.ProviderOpenAI}})
		require.NoError(t, err)

		registered, err := reg.Get(ctx, "openai")
		require.NoError(t, err)
		require.Equal(t, "openai", registered.Name())
	})

	t.Run("should return error when engine is nil", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := reg.Register(ctx, nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "engine cannot be nil")
	})

	t.Run("should return error when engine name is empty", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := reg.Register(ctx, &mockEngine{name: ""})
		require.Error(t, err)
		require.Contains(t, err.Error(), "engine name cannot be empty")
	})

	t.Run("should return error when engine already registered", func(t *testing.T) {
		reg := registry.NewRegistry()

		require.NoError(t, reg.Register(ctx, &mockEngine{name: "openai"}))

		err := reg.Register(ctx, &mockEngine{name: "openai"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "already registered")
	})

	t.Run("should return error when provider is already served", func(t *testing.T) {
		reg := registry.NewRegistry()

		require.NoError(t, reg.Register(ctx, &mockEngine{name: "a", tags: []domain.ProviderTag{domain.ProviderAnthropic}}))

		err := reg.Register(ctx, &mockEngine{name: "b", tags: []domain.ProviderTag{domain.ProviderAnthropic}})
		require.Error(t, err)
		require.Contains(t, err.Error(), "already served by engine a")

		_, err = reg.Get(ctx, "b")
		require.Error(t, err)
	})
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()

	newRegistry := func(t *testing.T) *registry.Registry {
		t.Helper()
		reg := registry.NewRegistry()
		require.NoError(t, reg.Register(ctx, &mockEngine{name: "openai", tags: []domain.ProviderTag{domain.ProviderOpenAI}}))
		require.NoError(t, reg.Register(ctx, &mockEngine{name: "anthropic", tags: []domain.ProviderTag{domain.ProviderAnthropic}}))
		return reg
	}

	t.Run("should resolve the engine serving the tag", func(t *testing.T) {
		reg := newRegistry(t)

		engine, err := reg.Resolve(ctx, domain.ProviderAnthropic)
		require.NoError(t, err)
		require.Equal(t, "anthropic", engine.Name())
	})

	t.Run("should fall back to the default engine", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.SetDefault("openai"))

		engine, err := reg.Resolve(ctx, domain.ProviderBedrock)
		require.NoError(t, err)
		require.Equal(t, "openai", engine.Name())

		engine, err = reg.Resolve(ctx, domain.ProviderAnthropic)
		require.NoError(t, err)
		require.Equal(t, "anthropic", engine.Name())
	})

	t.Run("should return no engine error without a default", func(t *testing.T) {
		reg := newRegistry(t)

		engine, err := reg.Resolve(ctx, domain.ProviderCohere)
		require.Error(t, err)
		require.Nil(t, engine)
		require.True(t, errors.Is(err, domain.ErrNoEngine))
		require.Equal(t, domain.ErrorKindNoEngine, domain.ClassifyError(ctx, err))
		require.Contains(t, err.Error(), "cohere")
	})

	t.Run("should reject unknown default engine", func(t *testing.T) {
		reg := newRegistry(t)

		err := reg.SetDefault("missing")
		require.Error(t, err)
		require.Contains(t, err.Error(), "engine missing not found")
	})

	t.Run("should resolve every tag concurrently", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.SetDefault("openai"))

		var wg sync.WaitGroup
		errs := make(chan error, 100)
		for i := range 100 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tags := domain.ProviderTags()
				if _, err := reg.Resolve(ctx, tags[i%len(tags)]); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
	})
}

func TestRegistry_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("should return error when name is empty", func(t *testing.T) {
		_, err := registry.NewRegistry().Get(ctx, "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "engine name cannot be empty")
	})

	t.Run("should return error when engine is missing", func(t *testing.T) {
		_, err := registry.NewRegistry().Get(ctx, "nope")
		require.Error(t, err)
		require.Contains(t, err.Error(), "engine nope not found")
	})
}

func TestRegistry_List(t *testing.T) {
	ctx := context.Background()

	t.Run("should return empty list for new registry", func(t *testing.T) {
		names, err := registry.NewRegistry().List(ctx)
		require.NoError(t, err)
		require.Empty(t, names)
	})

	t.Run("should list all registered engines", func(t *testing.T) {
		reg := registry.NewRegistry()
		for i := range 3 {
			require.NoError(t, reg.Register(ctx, &mockEngine{name: fmt.Sprintf("engine-%d", i)}))
		}

		names, err := reg.List(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"engine-0", "engine-1", "engine-2"}, names)
	})
}

func TestCatalog(t *testing.T) {
	t.Run("should list the static models in order", func(t *testing.T) {
		models := registry.Catalog()

		require.Len(t, models, 6)
		require.Equal(t, "gpt-4-turbo-preview", models[0].ID)
		require.Equal(t, "claude-3-haiku-20240307", models[5].ID)

		for _, model := range models {
			require.Equal(t, "model", model.Object)
			require.Equal(t, string(domain.ClassifyProvider(model.ID)), model.OwnedBy)
		}
	})

	t.Run("should not advertise the local echo model", func(t *testing.T) {
		for _, model := range registry.Catalog() {
			require.NotEqual(t, echo.ModelName, model.ID)
		}
	})
}
