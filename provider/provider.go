// Package provider holds the generic registry and selection logic used to
// pick a backend (such as a speech recognizer) by configured name.
package provider

import "context"

// Provider is the base interface all providers implement.
type Provider interface {
	Name() string
	// IsAvailable reports whether the provider can take requests now.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance. Configuration is captured by the closure.
type Factory[T Provider] func() (T, error)
