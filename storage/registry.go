package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Options carries settings shared by every adapter.
type Options struct {
	// RootID names the root container for adapters that host their own tree.
	RootID string
	// Credentials is a service-account JSON document for hosted drives.
	Credentials []byte
	Logger      zerolog.Logger
}

type Factory func(ctx context.Context, dsn *url.URL, opts Options) (Backend, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{
	factories: map[string]Factory{},
}

// Register makes an adapter available to Open under each of schemes.
func Register(factory Factory, schemes ...string) {
	if factory == nil {
		return
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, scheme := range schemes {
		if scheme = normalizeScheme(scheme); scheme != "" {
			registry.factories[scheme] = factory
		}
	}
}

// Open builds the backend registered for dsn's scheme.
func Open(ctx context.Context, dsn string, opts Options) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty storage dsn", ErrInvalidInput)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	scheme := normalizeScheme(parsed.Scheme)

	registry.mu.RLock()
	factory, ok := registry.factories[scheme]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return factory(ctx, parsed, opts)
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
