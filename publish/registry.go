package publish

import (
	"strings"

	"github.com/igem-tools/wikipub/metrics"
)

// Registry is the ordered record of assets pending publication and
// assets already published. The two collections are disjoint: an asset
// moves from pending to published exactly once, immediately on success,
// so later rewrites see every earlier outcome.
type Registry struct {
	pending   []*Asset
	published []*Asset
}

// NewRegistry creates a registry holding the given assets as pending
func NewRegistry(assets []*Asset) *Registry {
	r := &Registry{pending: append([]*Asset(nil), assets...)}
	metrics.SetRegistrySize(len(r.pending), 0)
	return r
}

// Pending returns the assets awaiting publication, in discovery order
func (r *Registry) Pending() []*Asset {
	return r.pending
}

// Published returns the published assets, in publication order
func (r *Registry) Published() []*Asset {
	return r.published
}

// PendingByKind snapshots the pending assets of one kind, preserving
// discovery order. A snapshot keeps iteration stable while publishing
// mutates membership.
func (r *Registry) PendingByKind(kind Kind) []*Asset {
	var out []*Asset
	for _, a := range r.pending {
		if a.Kind() == kind {
			out = append(out, a)
		}
	}
	return out
}

// MarkPublished moves an asset from pending to published. Unknown
// assets are ignored.
func (r *Registry) MarkPublished(asset *Asset) {
	for i, a := range r.pending {
		if a == asset {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			r.published = append(r.published, asset)
			metrics.SetRegistrySize(len(r.pending), len(r.published))
			return
		}
	}
}

// FindPublished resolves a raw reference against the published assets
// only; pending assets are never valid rewrite targets. Candidates are
// matched on destination, source path, full path, then resolved URL,
// exact first and then with leading "./" stripped from both sides.
// Returns the first match in publication order, or nil.
func (r *Registry) FindPublished(ref string) *Asset {
	norm := trimDotSlash(ref)
	for _, a := range r.published {
		for _, alias := range a.aliases() {
			if alias == "" {
				continue
			}
			if ref == alias || norm == trimDotSlash(alias) {
				return a
			}
		}
	}
	return nil
}

// trimDotSlash strips a single leading "./" (or a bare leading "/")
func trimDotSlash(s string) string {
	s = strings.TrimPrefix(s, "./")
	return strings.TrimPrefix(s, "/")
}
