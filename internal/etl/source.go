package etl

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source produces the full set of rows of a named table.
// Implementations live in etl/sources/, one file per source type.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// String returns the string value stored under key, or "".
func (c SourceConfig) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Source is the interface every record source must implement.
type Source interface {
	// Fetch returns every row of table, following continuation cursors
	// until the upstream is exhausted. view may be empty. Any failed page
	// request fails the whole fetch with a *FetchError.
	Fetch(ctx context.Context, table, view string) ([]Row, error)
}

// SourceFactory builds a Source from its configuration.
type SourceFactory func(cfg SourceConfig) (Source, error)

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]SourceFactory{}
)

// RegisterSource registers a source factory under typ.
// Called from init() in each source implementation file.
func RegisterSource(typ string, f SourceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = f
}

// NewSource builds a registered source by type, or returns an error if
// the type is unknown.
func NewSource(typ string, cfg SourceConfig) (Source, error) {
	registryMu.RLock()
	f, ok := registry[typ]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return f(cfg)
}

// ListSources returns the registered source types, sorted.
func ListSources() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
