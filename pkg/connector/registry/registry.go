// Package registry maps connector type names to factories so the CLI can
// build the configured source and target.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/connector/core"
	"github.com/ajitpratap0/nsagency/pkg/connector/rest"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/logger"
)

// SourceFactory creates a source connector from its configuration.
type SourceFactory func(ctx context.Context, cfg config.ConnectorConfig, loc *time.Location, log *zap.Logger) (core.Source, error)

// TargetFactory creates a target connector from its configuration.
type TargetFactory func(ctx context.Context, cfg config.ConnectorConfig, log *zap.Logger) (core.Target, error)

// Registry manages connector registration and instantiation
type Registry struct {
	sources map[string]SourceFactory
	targets map[string]TargetFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

func init() {
	_ = globalRegistry.RegisterSource("rest", func(ctx context.Context, cfg config.ConnectorConfig, loc *time.Location, log *zap.Logger) (core.Source, error) {
		return rest.NewSource(ctx, cfg, loc, log)
	})
	_ = globalRegistry.RegisterTarget("rest", func(ctx context.Context, cfg config.ConnectorConfig, log *zap.Logger) (core.Target, error) {
		return rest.NewTarget(ctx, cfg, log)
	})
}

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		targets: make(map[string]TargetFactory),
		logger:  logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// RegisterSource registers a source connector factory
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source connector %s already registered", name))
	}

	r.sources[name] = factory
	r.logger.Debug("source connector registered", zap.String("name", name))
	return nil
}

// RegisterTarget registers a target connector factory
func (r *Registry) RegisterTarget(name string, factory TargetFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.targets[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("target connector %s already registered", name))
	}

	r.targets[name] = factory
	r.logger.Debug("target connector registered", zap.String("name", name))
	return nil
}

// CreateSource creates a source connector instance
func (r *Registry) CreateSource(ctx context.Context, cfg config.ConnectorConfig, loc *time.Location, log *zap.Logger) (core.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source connector %s not found", cfg.Type))
	}

	source, err := factory(ctx, cfg, loc, log)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create source connector %s", cfg.Type))
	}
	return source, nil
}

// CreateTarget creates a target connector instance
func (r *Registry) CreateTarget(ctx context.Context, cfg config.ConnectorConfig, log *zap.Logger) (core.Target, error) {
	r.mu.RLock()
	factory, exists := r.targets[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("target connector %s not found", cfg.Type))
	}

	target, err := factory(ctx, cfg, log)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create target connector %s", cfg.Type))
	}
	return target, nil
}

// ListSources returns all registered source connector names
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sources)
}

// ListTargets returns all registered target connector names
func (r *Registry) ListTargets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.targets)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global registry functions

// CreateSource creates a source from the global registry
func CreateSource(ctx context.Context, cfg config.ConnectorConfig, loc *time.Location, log *zap.Logger) (core.Source, error) {
	return globalRegistry.CreateSource(ctx, cfg, loc, log)
}

// CreateTarget creates a target from the global registry
func CreateTarget(ctx context.Context, cfg config.ConnectorConfig, log *zap.Logger) (core.Target, error) {
	return globalRegistry.CreateTarget(ctx, cfg, log)
}

// ListSources lists source connectors in the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}

// ListTargets lists target connectors in the global registry
func ListTargets() []string {
	return globalRegistry.ListTargets()
}

// GetRegistry returns the global registry
func GetRegistry() *Registry {
	return globalRegistry
}
