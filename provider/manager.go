package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/captiongen/logger"
)

// Manager combines a Registry with a Selector.
type Manager[T Provider] struct {
	mu          sync.RWMutex
	registry    *Registry[T]
	selector    Selector[T]
	providers   map[string]T
	defaultName string
	log         *logger.Logger
}

// NewManager creates a Manager backed by the given registry and selector.
func NewManager[T Provider](registry *Registry[T], selector Selector[T], log *logger.Logger) *Manager[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager[T]{
		registry:  registry,
		selector:  selector,
		providers: make(map[string]T),
		log:       log.WithComponent("provider"),
	}
}

// Initialize creates the named provider from its factory.
func (m *Manager[T]) Initialize(name string) error {
	instance, err := m.registry.Create(name)
	if err != nil {
		return fmt.Errorf("initialize provider %q: %w", name, err)
	}
	m.mu.Lock()
	m.providers[name] = instance
	m.mu.Unlock()
	m.log.Debug("provider initialized", map[string]interface{}{logger.FieldProvider: name})
	return nil
}

// Get returns the default provider if set, otherwise asks the selector.
func (m *Manager[T]) Get(ctx context.Context) (T, error) {
	m.mu.RLock()
	defaultName := m.defaultName
	providers := make(map[string]T, len(m.providers))
	for k, v := range m.providers {
		providers[k] = v
	}
	m.mu.RUnlock()

	if defaultName != "" {
		if p, ok := providers[defaultName]; ok {
			return p, nil
		}
		var zero T
		return zero, fmt.Errorf("default provider %q not found", defaultName)
	}
	if m.selector == nil {
		var zero T
		return zero, fmt.Errorf("no default provider and no selector configured")
	}
	return m.selector.Select(ctx, providers)
}

// GetByName returns an initialized provider by name.
func (m *Manager[T]) GetByName(name string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.providers[name]; ok {
		return p, nil
	}
	var zero T
	return zero, fmt.Errorf("provider %q not found", name)
}

// SetDefault pins Get to one initialized provider.
func (m *Manager[T]) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("provider %q not initialized", name)
	}
	m.defaultName = name
	return nil
}

// Available returns the sorted names of all initialized providers.
func (m *Manager[T]) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
