package io

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOFileLoader loads files directly from the local filesystem with caching.
// Relative paths are resolved against Root when it is set.
type IOFileLoader struct {
	root string

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIOFileLoader creates a new filesystem-based file loader.
func NewIOFileLoader(root string) *IOFileLoader {
	return &IOFileLoader{
		root:  root,
		cache: make(map[string][]byte),
	}
}

// GetFile reads the file content from the filesystem. Results are cached.
func (l *IOFileLoader) GetFile(ctx context.Context, path string) ([]byte, error) {
	if l.root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	key := loader.CacheKey("io", path)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

var _ loader.FileLoader = (*IOFileLoader)(nil)
