// ABOUTME: Agent matching: selects registered agents whose categories intersect the prediction
// ABOUTME: No deduplication; the same url under distinct issuers is two dispatch targets

package pipeline

import "github.com/chorushq/chorus-orchestrator/internal/store"

// MatchAgents returns every agent whose category set intersects the
// predicted categories. The registry normalizes legacy single-category rows
// before they get here, so only the category set is consulted.
// An empty category set or empty registry yields no matches; not an error.
func MatchAgents(categories []string, agents []*store.Agent) []*store.Agent {
	if len(categories) == 0 || len(agents) == 0 {
		return nil
	}

	want := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		want[c] = struct{}{}
	}

	var matched []*store.Agent
	for _, agent := range agents {
		for _, c := range agent.Categories {
			if _, ok := want[c]; ok {
				matched = append(matched, agent)
				break
			}
		}
	}

	return matched
}
