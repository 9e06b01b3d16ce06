// Package mappingdir loads versioned mapping documents from a directory.
//
// File naming convention: {platform}_{kind}_{date}.json, where kind contains
// "action" or "activity" and date is an ISO timestamp or plain date, e.g.
// github_action_2024-01-01.json or github_activity_2024-06-01T12:00:00Z.json.
// Files that do not follow the convention are skipped, not errors; a file
// that parses its name but not its content is a configuration error.
package mappingdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgemap/forgemap/internal/mapping"
	"github.com/forgemap/forgemap/internal/types"
	"github.com/forgemap/forgemap/internal/versions"
)

// Loader enumerates mapping versions from one directory.
type Loader struct {
	dir string
	log zerolog.Logger
}

// New creates a loader over dir.
func New(dir string, log zerolog.Logger) *Loader {
	return &Loader{dir: dir, log: log}
}

// Versions returns every mapping version available for the platform, both
// kinds, sorted by effective-from date.
func (l *Loader) Versions(platform string) ([]versions.Version, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading mapping directory %s: %w", l.dir, err)
	}

	var found []versions.Version
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if !strings.HasPrefix(name, platform+"_") {
			continue
		}

		filePlatform, kind, effective, err := ParseMappingName(name)
		if err != nil {
			l.log.Debug().Str("file", name).Msg("skipping file with unrecognized mapping name")
			continue
		}
		if filePlatform != platform {
			continue
		}

		doc, err := LoadDocument(filepath.Join(l.dir, name))
		if err != nil {
			return nil, fmt.Errorf("mapping file %s: %w", name, err)
		}

		found = append(found, versions.Version{
			Platform:      platform,
			Kind:          kind,
			EffectiveFrom: effective,
			Document:      doc,
		})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].EffectiveFrom.Before(found[j].EffectiveFrom)
	})
	return found, nil
}

// LoadDocument reads and parses one mapping document file.
func LoadDocument(path string) (*mapping.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return mapping.ParseDocument(data)
}

// ParseMappingName extracts platform, kind, and effective-from date from a
// mapping filename following the {platform}_{kind}_{date}.json convention.
func ParseMappingName(name string) (string, types.MappingKind, time.Time, error) {
	base := strings.TrimSuffix(name, ".json")
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return "", "", time.Time{}, fmt.Errorf("%w: %s", types.ErrInvalidMappingName, name)
	}

	platform := parts[0]

	var kind types.MappingKind
	lower := strings.ToLower(base)
	switch {
	case strings.Contains(lower, "activity"):
		kind = types.KindActivity
	case strings.Contains(lower, "action"):
		kind = types.KindAction
	default:
		return "", "", time.Time{}, fmt.Errorf("%w: %s", types.ErrInvalidMappingName, name)
	}

	effective, err := parseEffectiveDate(parts[len(parts)-1])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: %s: %v", types.ErrInvalidMappingName, name, err)
	}

	return platform, kind, effective, nil
}

// parseEffectiveDate accepts a full RFC 3339 timestamp or a plain date.
func parseEffectiveDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
