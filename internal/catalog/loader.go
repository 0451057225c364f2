package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/incidentfox/incidentfox/internal/cache"
)

// ErrNotFound is returned when no catalog file exists in any search location
var ErrNotFound = errors.New("no .incidentfox.yaml found")

// FileNames are checked in each directory, in order
var FileNames = []string{".incidentfox.yaml", "incidentfox.yaml"}

const cacheKeyPrefix = "catalog:"

// FindFrom looks for a catalog file in dir and each of its parents, then in
// home. It returns "" when there is none.
func FindFrom(dir, home string) string {
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if fileExists(candidate) {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if home != "" {
		candidate := filepath.Join(home, ".incidentfox.yaml")
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Loader finds, parses and caches the catalog file. An explicit path always
// wins over the directory search.
type Loader struct {
	explicit string
	cwd      func() (string, error)
	home     func() (string, error)
	cache    *cache.Cache[*Catalog]
}

// NewLoader creates a loader. ttl bounds how long a parsed file is reused
// when no file event invalidates it first.
func NewLoader(explicitPath string, ttl time.Duration) *Loader {
	return &Loader{
		explicit: explicitPath,
		cwd:      os.Getwd,
		home:     os.UserHomeDir,
		cache:    cache.New[*Catalog](ttl, ttl),
	}
}

// Close stops the cache cleanup goroutine
func (l *Loader) Close() {
	l.cache.Stop()
}

// Path returns the catalog file in use, or "" when none exists
func (l *Loader) Path() string {
	if l.explicit != "" {
		if fileExists(l.explicit) {
			return l.explicit
		}
		return ""
	}

	dir, err := l.cwd()
	if err != nil {
		dir = "."
	}
	home, _ := l.home()
	return FindFrom(dir, home)
}

// WritePath returns where a new catalog should be created when none exists
func (l *Loader) WritePath() string {
	if path := l.Path(); path != "" {
		return path
	}
	if l.explicit != "" {
		return l.explicit
	}
	dir, err := l.cwd()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, FileNames[0])
}

// Load returns the parsed catalog and its path. It returns ErrNotFound when
// no catalog file exists.
func (l *Loader) Load() (*Catalog, string, error) {
	path := l.Path()
	if path == "" {
		return nil, "", ErrNotFound
	}

	key := cacheKeyPrefix + path
	if c, ok := l.cache.Get(key); ok {
		return c, path, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, path, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	l.cache.Set(key, c)
	log.Debug().Str("path", path).Int("services", len(c.Services)).Msg("Catalog loaded")
	return c, path, nil
}

// Invalidate drops every cached catalog
func (l *Loader) Invalidate() {
	l.cache.DeleteByPrefix(cacheKeyPrefix)
}

// Watch invalidates the cache whenever the catalog file is written, created,
// renamed or removed. The parent directory is watched so atomic replaces
// are seen. Blocks until ctx is done.
func (l *Loader) Watch(ctx context.Context) error {
	path := l.WritePath()
	dir := filepath.Dir(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Info().Str("path", path).Msg("Watching catalog for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				log.Debug().Str("path", path).Str("op", event.Op.String()).Msg("Catalog changed, invalidating cache")
				l.Invalidate()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Catalog watcher error")
		}
	}
}
