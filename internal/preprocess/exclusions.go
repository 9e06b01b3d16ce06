// internal/preprocess/exclusions.go
package preprocess

import (
	"github.com/forgemap/forgemap/internal/mapping"
	"github.com/forgemap/forgemap/internal/types"
)

// Exclusions lists identifiers removed from the raw stream before any other
// processing: actor logins, repository names, organization logins.
type Exclusions struct {
	Actors []string
	Repos  []string
	Orgs   []string
}

// Empty reports whether no exclusions are configured.
func (e Exclusions) Empty() bool {
	return len(e.Actors) == 0 && len(e.Repos) == 0 && len(e.Orgs) == 0
}

// ApplyExclusions drops events whose actor.login, repo.name, or org.login
// appears in the corresponding list. Events lacking a field are kept.
func ApplyExclusions(events []types.Record, exclusions Exclusions) []types.Record {
	if exclusions.Empty() {
		return events
	}

	actors := toSet(exclusions.Actors)
	repos := toSet(exclusions.Repos)
	orgs := toSet(exclusions.Orgs)

	kept := make([]types.Record, 0, len(events))
	for _, event := range events {
		if inSet(actors, mapping.Extract(event, "actor.login")) {
			continue
		}
		if inSet(repos, mapping.Extract(event, "repo.name")) {
			continue
		}
		if inSet(orgs, mapping.Extract(event, "org.login")) {
			continue
		}
		kept = append(kept, event)
	}
	return kept
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, value any) bool {
	if set == nil {
		return false
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	_, hit := set[s]
	return hit
}
