// Package formats models the backend's advertised import/export formats as a
// bipartite graph between external and native MIME types.
package formats

import (
	"context"
	"fmt"

	"github.com/mrlokans/mimeroute/internal/storage"
)

// Catalog holds the two adjacency maps advertised by the backend.
// Adjacency lists keep the order in which the backend reported them.
type Catalog struct {
	// Import maps an external type to the native types it can become.
	Import map[string][]string `json:"importFormats"`
	// Export maps a native type to the external types it can be rendered as.
	Export map[string][]string `json:"exportFormats"`
}

// Source provides a catalog for one top-level operation.
type Source interface {
	Catalog(ctx context.Context) (*Catalog, error)
}

// New builds a catalog from backend capabilities. A nil argument yields an empty catalog.
func New(caps *storage.Capabilities) *Catalog {
	c := &Catalog{
		Import: make(map[string][]string),
		Export: make(map[string][]string),
	}
	if caps == nil {
		return c
	}
	for k, v := range caps.ImportFormats {
		c.Import[k] = append([]string(nil), v...)
	}
	for k, v := range caps.ExportFormats {
		c.Export[k] = append([]string(nil), v...)
	}
	return c
}

// Fetch reads the capability description once and parses it into a catalog.
func Fetch(ctx context.Context, backend storage.Backend) (*Catalog, error) {
	caps, err := backend.Capabilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch formats: %w", err)
	}
	return New(caps), nil
}

// Fetcher is a Source that reads the catalog fresh on every call.
type Fetcher struct {
	Backend storage.Backend
}

// NewFetcher creates a Fetcher for backend.
func NewFetcher(backend storage.Backend) *Fetcher {
	return &Fetcher{Backend: backend}
}

func (f *Fetcher) Catalog(ctx context.Context) (*Catalog, error) {
	return Fetch(ctx, f.Backend)
}

// IsImportable reports whether t is an external type the backend can import.
func (c *Catalog) IsImportable(t string) bool {
	_, ok := c.Import[t]
	return ok
}

// IsExportable reports whether t is a native type the backend can export.
func (c *Catalog) IsExportable(t string) bool {
	_, ok := c.Export[t]
	return ok
}

// IsNative reports whether t is one of the backend's own types: either it can
// be exported, or some external type imports into it.
func (c *Catalog) IsNative(t string) bool {
	if c.IsExportable(t) {
		return true
	}
	for _, natives := range c.Import {
		for _, n := range natives {
			if n == t {
				return true
			}
		}
	}
	return false
}

// ConvertiblePairs lists, for every source type, the target types reachable
// with a single import+export round trip or a single export.
func (c *Catalog) ConvertiblePairs() map[string][]string {
	pairs := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	add := func(from, to string) {
		if seen[from] == nil {
			seen[from] = make(map[string]bool)
		}
		if seen[from][to] {
			return
		}
		seen[from][to] = true
		pairs[from] = append(pairs[from], to)
	}

	for external, natives := range c.Import {
		for _, native := range natives {
			for _, out := range c.Export[native] {
				add(external, out)
			}
		}
	}
	for native, outs := range c.Export {
		for _, out := range outs {
			add(native, out)
		}
	}
	return pairs
}
