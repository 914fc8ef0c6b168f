// Package fs wraps the small slice of filesystem operations the default
// FileCache implementation needs, so tests can substitute an in-memory
// fake instead of touching disk.
package fs

import (
	"os"

	"go.uber.org/fx"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// BridgeFS wraps the filesystem operations used to back a default,
// disk-based FileCache.
type BridgeFS interface {
	FileExists(path string) (bool, error)
	ReadFile(name string) ([]byte, error)
	Open(name string) (*os.File, error)
}

type fsImpl struct{}

// New creates a new BridgeFS backed by the real filesystem.
func New() BridgeFS {
	return fsImpl{}
}

func (fsImpl) Open(name string) (*os.File, error) {
	return os.Open(name)
}

func (fsImpl) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (fsImpl) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
