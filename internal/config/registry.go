package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/callmark/pkg/morph"
)

// ErrLemmatizerNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested name.
var ErrLemmatizerNotRegistered = errors.New("config: lemmatizer not registered")

// LemmatizerFactory builds a lemmatizer from its configuration block.
type LemmatizerFactory func(MorphologyConfig) (morph.Lemmatizer, error)

// Registry maps lemmatizer names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]LemmatizerFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]LemmatizerFactory)}
}

// Register registers a lemmatizer factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory LemmatizerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Create instantiates the lemmatizer registered under cfg.Name, chained with
// its fallbacks. Returns [ErrLemmatizerNotRegistered] if no factory has been
// registered for one of the names.
func (r *Registry) Create(cfg MorphologyConfig) (morph.Lemmatizer, error) {
	var chain []morph.Lemmatizer
	for mc := &cfg; mc != nil; mc = mc.Fallback {
		l, err := r.create(*mc)
		if err != nil {
			return nil, err
		}
		chain = append(chain, l)
	}
	return morph.Chain(chain...), nil
}

func (r *Registry) create(cfg MorphologyConfig) (morph.Lemmatizer, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLemmatizerNotRegistered, cfg.Name)
	}
	l, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create lemmatizer %q: %w", cfg.Name, err)
	}
	return l, nil
}

// OptString returns the string value stored under key in opts, or "".
func OptString(opts map[string]any, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

// OptBool returns the boolean value stored under key in opts, or false.
func OptBool(opts map[string]any, key string) bool {
	v, _ := opts[key].(bool)
	return v
}
