package publish

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Catalog discovers local files matching glob patterns and turns them
// into assets. Pure filesystem traversal; no network calls.
type Catalog struct {
	// Strip removes the pattern's directory from computed destinations
	Strip bool

	logger *slog.Logger
}

// NewCatalog creates a catalog with the given strip mode
func NewCatalog(strip bool, logger *slog.Logger) *Catalog {
	return &Catalog{Strip: strip, logger: logger}
}

// Collect expands every pattern in order and returns the discovered
// assets. Directories recurse depth-first. Patterns that match nothing
// yield zero entries and a log line, not an error. Duplicate
// destinations are kept (the first to publish wins lookups) and logged.
func (c *Catalog) Collect(patterns []string) []*Asset {
	var results []*Asset
	for _, pattern := range patterns {
		base := ""
		if c.Strip {
			base = filepath.Dir(pattern)
			if base == "." {
				base = ""
			}
		}
		matched := c.collectPattern(pattern, base)
		if len(matched) == 0 {
			c.logger.Info("Pattern matched no files", "pattern", pattern)
		} else {
			c.logger.Debug("Collected files for pattern", "pattern", pattern, "count", len(matched))
		}
		results = append(results, matched...)
	}
	c.warnDuplicates(results)
	return results
}

func (c *Catalog) collectPattern(pattern, base string) []*Asset {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		c.logger.Warn("Bad glob pattern", "pattern", pattern, "error", err)
		return nil
	}

	var results []*Asset
	for _, source := range matches {
		info, err := os.Stat(source)
		if err != nil {
			continue
		}
		if info.IsDir() {
			results = append(results, c.collectPattern(filepath.Join(source, "*"), base)...)
			continue
		}
		results = append(results, c.collectFile(source, base))
	}
	return results
}

// collectFile builds an asset; with a base the destination drops the
// pattern directory from the path (first occurrence only, not regex)
func (c *Catalog) collectFile(source, base string) *Asset {
	asset := &Asset{Path: source, PrefixBase: base}
	if base != "" {
		asset.Destination = strings.Replace(source, base, "", 1)
	}
	return asset
}

// warnDuplicates flags assets whose computed destinations collide.
// Collisions are accepted: the first to publish wins link resolution,
// the last upload wins page content.
func (c *Catalog) warnDuplicates(assets []*Asset) {
	seen := make(map[string]string, len(assets))
	for _, a := range assets {
		dest := a.Destination
		if dest == "" {
			dest = a.Path
		}
		if prev, ok := seen[dest]; ok {
			c.logger.Warn("Duplicate destination", "destination", dest, "first", prev, "also", a.Path)
			continue
		}
		seen[dest] = a.Path
	}
}
