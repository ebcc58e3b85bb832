// Package handlecache shares open NetCDF file handles across worker
// goroutines.  The container library is not reentrant per handle, so each
// cached handle carries its own mutex; a cache-wide mutex protects only the
// map itself.
package handlecache

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

var (
	ErrUnknownFile = errors.New("handlecache: file was not initialized")
	ErrOpenFailed  = errors.New("handlecache: open failed")
)

type entry struct {
	mu    sync.Mutex
	group api.Group // nil until first Acquire
}

// Cache keeps at most one open handle per file basename.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Cache {
	return &Cache{entries: map[string]*entry{}}
}

// Initialize drops any previous state and creates one closed entry per
// basename.  Called once at the start of each metadata phase.
func (c *Cache) Initialize(files []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.group != nil {
			e.group.Close()
		}
	}
	c.entries = make(map[string]*entry, len(files))
	for _, f := range files {
		c.entries[f] = &entry{}
	}
}

// Acquire returns the open handle for name, opening root/name read-only on
// first use, together with the per-file mutex the caller must hold while
// doing I/O on the handle.  The cache-wide mutex is released before return,
// so disjoint files can be read concurrently.
func (c *Cache) Acquire(root, name string) (api.Group, *sync.Mutex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, has := c.entries[name]
	if !has {
		return nil, nil, ErrUnknownFile
	}
	if e.group == nil {
		g, err := netcdf.Open(filepath.Join(root, name))
		if err != nil {
			return nil, nil, errors.Join(ErrOpenFailed, err)
		}
		e.group = g
	}
	return e.group, &e.mu, nil
}

// Release closes and clears the handle for name; the entry and its mutex
// remain for later reacquisition.
func (c *Cache) Release(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, has := c.entries[name]
	if !has || e.group == nil {
		return
	}
	e.group.Close()
	e.group = nil
}

// Clear closes every open handle and empties the map.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.group != nil {
			e.group.Close()
		}
	}
	c.entries = map[string]*entry{}
}

// Len returns the number of initialized entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// openCount reports how many entries currently hold an open handle.
func (c *Cache) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.group != nil {
			n++
		}
	}
	return n
}
