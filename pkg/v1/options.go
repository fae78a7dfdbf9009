package v1

import "go.uber.org/zap"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	root         string
	scope        string
	cacheSize    int
	indexBackend string
	logger       *zap.Logger
}

// WithRoot opens the store rooted at dir instead of resolving a scope.
func WithRoot(dir string) Option {
	return func(c *clientConfig) {
		c.root = dir
	}
}

// WithScope forces a specific scope (global or project).
func WithScope(scope string) Option {
	return func(c *clientConfig) {
		c.scope = scope
	}
}

// WithCacheSize overrides the configured cache capacity.
func WithCacheSize(n int) Option {
	return func(c *clientConfig) {
		c.cacheSize = n
	}
}

// WithIndexBackend overrides the configured index backend (json or sqlite).
func WithIndexBackend(backend string) Option {
	return func(c *clientConfig) {
		c.indexBackend = backend
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
