// Package filecache maps adapter script identifiers to source contents,
// fetched on demand and cached for the life of a session.
package filecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/uber/dbg-bridge/src/bridge/internal/fs"
	"go.lsp.dev/uri"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Params carries this gateway's dependencies through Fx.
type Params struct {
	fx.In

	FS     fs.BridgeFS
	Logger *zap.SugaredLogger
}

// FileCache resolves a script's opaque path identifier to its contents,
// used by Debugger.getScriptSource and by continueToLocation registration.
type FileCache interface {
	// Register associates a path with its resource URI, ahead of any
	// content fetch. Idempotent for the same path.
	Register(path string, u uri.URI)
	// Source returns the cached contents for path, fetching from disk on
	// first access.
	Source(ctx context.Context, path string) (string, error)
	// URI returns the URI registered for path, or false if none was
	// registered.
	URI(path string) (uri.URI, bool)
}

type fileCache struct {
	fs     fs.BridgeFS
	logger *zap.SugaredLogger

	mu    sync.Mutex
	uris  map[string]uri.URI
	cache map[string]string

	group singleflight.Group
}

// New returns a disk-backed FileCache.
func New(p Params) FileCache {
	return &fileCache{
		fs:     p.FS,
		logger: p.Logger,
		uris:   make(map[string]uri.URI),
		cache:  make(map[string]string),
	}
}

func (c *fileCache) Register(path string, u uri.URI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uris[path] = u
}

func (c *fileCache) URI(path string) (uri.URI, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.uris[path]
	return u, ok
}

func (c *fileCache) Source(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	if contents, ok := c.cache[path]; ok {
		c.mu.Unlock()
		return contents, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		exists, err := c.fs.FileExists(path)
		if err != nil {
			return "", fmt.Errorf("checking source file %q: %w", path, err)
		}
		if !exists {
			return "", fmt.Errorf("source file %q not found", path)
		}
		raw, err := c.fs.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading source file %q: %w", path, err)
		}
		contents := string(raw)
		c.mu.Lock()
		c.cache[path] = contents
		c.mu.Unlock()
		return contents, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
