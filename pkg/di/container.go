// Package di provides dependency injection for the entity cache: a
// container holding the shared pieces of one process (configuration, bus,
// key serializer) and a factory for coordinator nodes.
package di

import (
	"log/slog"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/cluster"
	"github.com/goliatone/go-entity-cache/entitycache"
	"github.com/goliatone/go-entity-cache/internal/cacheinfra"
	"github.com/goliatone/go-entity-cache/stats"
)

// Container manages the singletons shared by every node built in one
// process: the entry store configuration, the invalidation bus and the
// query key serializer. Nodes themselves are per-unit: each NewNode call
// builds a fresh entry store and statistics aggregator.
type Container struct {
	config        cache.Config
	bus           cluster.Bus
	keySerializer cache.KeySerializer
	logger        *slog.Logger
}

// Option customizes a Container.
type Option func(*Container)

// WithBus replaces the default in-process bus, e.g. with a
// cluster.NetworkBus for real multi-process deployments.
func WithBus(bus cluster.Bus) Option {
	return func(c *Container) { c.bus = bus }
}

// WithKeySerializer replaces the default query key serializer.
func WithKeySerializer(ks cache.KeySerializer) Option {
	return func(c *Container) { c.keySerializer = ks }
}

// WithLogger sets the logger handed to nodes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// NewContainer creates a DI container with the provided cache
// configuration. The configuration is validated once here; node factories
// reuse it as-is.
func NewContainer(config cache.Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config:        config,
		bus:           cluster.NewLocalBus(),
		keySerializer: cache.NewDefaultKeySerializer(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewContainerWithDefaults creates a container using default configuration.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// Config returns a copy of the cache configuration used by this container.
func (c *Container) Config() cache.Config { return c.config }

// Bus returns the shared invalidation bus.
func (c *Container) Bus() cluster.Bus { return c.bus }

// KeySerializer returns the shared query key serializer.
func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

// NewNode builds a coordinator with a fresh entry store and statistics,
// wired to the container's bus and serializer. id may be empty, in which
// case the node picks a random identity.
func (c *Container) NewNode(id string, loader cache.BackingStore) (*entitycache.Node, error) {
	store, err := cacheinfra.NewSturdycStore(c.config)
	if err != nil {
		return nil, err
	}

	return entitycache.NewNode(entitycache.NodeConfig{
		ID:            id,
		Store:         store,
		Loader:        loader,
		Bus:           c.bus,
		Stats:         stats.New(),
		KeySerializer: c.keySerializer,
		Logger:        c.logger,
	})
}
