// internal/versions/resolver.go
package versions

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgemap/forgemap/internal/mapping"
	"github.com/forgemap/forgemap/internal/types"
)

/*
 * Mapping version resolution.
 *
 * Mapping documents are versioned by effective-from date. An event batch is
 * partitioned into disjoint half-open periods built from the distinct
 * effective dates across all of a platform's versions (both kinds), so each
 * sub-batch is processed against the ruleset that was valid at that time.
 *
 * Period invariants: periods from sorted distinct dates are contiguous and
 * exhaustive from the earliest date onward, the last period is open-ended,
 * and an event lands in at most one period. Events with missing or
 * unparseable timestamps are dropped before assignment, not failed. When no
 * versions exist at all, a single catch-all period holds every event
 * unconditionally.
 *
 * Version lookup per period uses the period midpoint. For the open-ended
 * final period no finite midpoint exists; the period's own start is the
 * lookup key (documented convention, see Period.VersionKey).
 */

// Version is one immutable mapping-document version.
type Version struct {
	Platform      string
	Kind          types.MappingKind
	EffectiveFrom time.Time
	Document      *mapping.Document
}

// Period is a half-open interval [Start, End). Open marks the final period,
// which has no upper bound.
type Period struct {
	Start time.Time
	End   time.Time
	Open  bool
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	if t.Before(p.Start) {
		return false
	}
	return p.Open || t.Before(p.End)
}

// VersionKey is the timestamp used to select the period's mapping version:
// the midpoint, or the start when the period is open-ended.
func (p Period) VersionKey() time.Time {
	if p.Open {
		return p.Start
	}
	return p.Start.Add(p.End.Sub(p.Start) / 2)
}

func (p Period) String() string {
	if p.Open {
		return fmt.Sprintf("[%s, +inf)", types.FormatTimestamp(p.Start))
	}
	return fmt.Sprintf("[%s, %s)", types.FormatTimestamp(p.Start), types.FormatTimestamp(p.End))
}

// PeriodEvents is one non-empty sub-batch with its period.
type PeriodEvents struct {
	Period Period
	Events []types.Record
}

// CatchAll is the single period used when no versions exist: every event
// belongs to it regardless of timestamp.
func CatchAll() Period {
	return Period{Open: true}
}

// Partition splits events into date-ordered, disjoint sub-batches by the
// distinct effective dates of the given versions. timestampKey names the
// record field holding the event time. Events whose timestamp is missing or
// unparseable are dropped silently; periods left empty are dropped.
func Partition(events []types.Record, available []Version, timestampKey string, log zerolog.Logger) []PeriodEvents {
	dates := effectiveDates(available)
	if len(dates) == 0 {
		return []PeriodEvents{{Period: CatchAll(), Events: events}}
	}

	periods := buildPeriods(dates)
	buckets := make([][]types.Record, len(periods))

	dropped := 0
	for _, event := range events {
		t, err := types.ParseTimestamp(event[timestampKey])
		if err != nil {
			dropped++
			continue
		}
		for i, period := range periods {
			if period.Contains(t) {
				buckets[i] = append(buckets[i], event)
				break
			}
		}
	}
	if dropped > 0 {
		log.Warn().Int("count", dropped).Msg("dropped events with missing or unparseable timestamps")
	}

	out := make([]PeriodEvents, 0, len(periods))
	for i, period := range periods {
		if len(buckets[i]) == 0 {
			continue
		}
		out = append(out, PeriodEvents{Period: period, Events: buckets[i]})
	}
	return out
}

// SelectVersion returns the version of the given kind whose effective-from
// date is the latest one at or before the key time.
func SelectVersion(available []Version, kind types.MappingKind, key time.Time) (Version, error) {
	var best Version
	found := false
	for _, v := range available {
		if v.Kind != kind {
			continue
		}
		if v.EffectiveFrom.After(key) {
			continue
		}
		if !found || v.EffectiveFrom.After(best.EffectiveFrom) {
			best = v
			found = true
		}
	}
	if !found {
		return Version{}, fmt.Errorf("%w: kind %s at %s", types.ErrNoMappingVersion, kind, types.FormatTimestamp(key))
	}
	return best, nil
}

// effectiveDates collects the sorted distinct effective dates across all
// versions, both kinds included.
func effectiveDates(available []Version) []time.Time {
	seen := make(map[int64]struct{}, len(available))
	dates := make([]time.Time, 0, len(available))
	for _, v := range available {
		key := v.EffectiveFrom.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, v.EffectiveFrom)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// buildPeriods turns sorted distinct dates into contiguous half-open
// periods; the last one is open-ended.
func buildPeriods(dates []time.Time) []Period {
	periods := make([]Period, len(dates))
	for i, start := range dates {
		if i+1 < len(dates) {
			periods[i] = Period{Start: start, End: dates[i+1]}
		} else {
			periods[i] = Period{Start: start, Open: true}
		}
	}
	return periods
}
