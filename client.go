package treesync

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/sync/sync"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/synctypes"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
)

// Location is a root within a tree: a directory for local trees, a key
// prefix for object stores.
type Location struct {
	Tree tree.Tree
	Root string
}

// String describes the location for logs.
func (l Location) String() string {
	if l.Tree == nil {
		return l.Root
	}
	return l.Tree.String() + " " + l.Root
}

// Client runs copy, sync and list operations. It holds no per-operation
// state and is safe for concurrent use.
type Client struct {
	config  synctypes.ClientConfig
	manager *sync.Manager
}

// New creates a client with the provided options.
//
// Example:
//
//	client := treesync.New(
//	    treesync.WithConcurrency(8),
//	    treesync.WithLogger(logger),
//	)
func New(opts ...synctypes.Option) *Client {
	cfg := synctypes.ClientConfig{
		Logger:      slog.Default(),
		Concurrency: synctypes.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		config:  cfg,
		manager: sync.NewManager(cfg.Logger),
	}
}

// Concurrency returns the default number of concurrent actions.
func (c *Client) Concurrency() int {
	return c.config.Concurrency
}
