// Package di provides a lightweight wrapper around uber's dig dependency injection framework.
// It wires the settings of a smoke run into the stores, client and runner that execute it.
package di

import (
	"go.uber.org/dig"
)

// Container defines a dependency injection container based on uber's dig.
// This interface allows for easy testing and mocking of the DI container.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error

	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error

	// Scope creates a scoped sub-container with its own set of values.
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// Get returns an instance constructed via dependency injection. Provider
// failures are returned as the provider's own error, not dig's wrapper.
func Get[T any](container Container) (want T, err error) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		return want, dig.RootCause(err)
	}
	return want, nil
}

// MustGet returns an instance constructed via dependency injection or panics.
// This is a convenience function for retrieving a dependency from the container
// when you're certain it exists. If the dependency cannot be resolved, it will panic.
//
// Example:
//
//	client := MustGet[*apiclient.Client](container)
func MustGet[T any](container Container) T {
	want, err := Get[T](container)
	if err != nil {
		panic(err)
	}
	return want
}

// New creates a new dependency injection container for the given settings.
// The settings are registered as a dependency so providers can take them as a
// regular parameter. Constructors only run when something asks for their result,
// so AWS clients are never built for runs that do not use them.
//
// Example:
//
//	container, err := New(settings,
//	    WithContext(ctx),
//	    WithProviders(
//	        func(env RuntimeEnv) *Thing { return &Thing{Token: env["TELEGRAM_BOT_TOKEN"]} },
//	    ),
//	)
func New(settings Settings, opts ...Option) (Container, error) {
	// Build options
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Create dig container
	container := dig.New()
	if err := container.Provide(func() Settings { return settings }); err != nil {
		return nil, err
	}
	if err := container.Provide(o.contextProvider()); err != nil {
		return nil, err
	}

	// Register all provided constructors
	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	// Register all provided constructors
	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideContextLogger,
	ProvideParameterStores,
	ProvideRuntimeEnv,
	ProvideAPIClient,
	ProvideRunner,
}
