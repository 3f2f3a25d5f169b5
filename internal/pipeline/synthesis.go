// ABOUTME: Synthesis context assembly from non-error agent responses
// ABOUTME: One source-labeled line per response; error-marked entries are excluded

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chorushq/chorus-orchestrator/internal/dispatch"
)

// buildSynthesisContext concatenates one line per non-error response,
// identifying its source url and carrying the full structured payload.
// The fallback has no url and is labeled as orchestrator-level.
func buildSynthesisContext(responses []dispatch.AgentResponse) string {
	var lines []string
	for _, r := range responses {
		if r.Failed() {
			continue
		}

		source := "orchestrator fallback"
		if r.AgentURL != nil {
			source = *r.AgentURL
		}

		payload, err := json.Marshal(r)
		if err != nil {
			// Responses come off the wire as JSON-decoded values; this
			// should not happen, but a skipped line beats a broken run.
			continue
		}

		lines = append(lines, fmt.Sprintf("Data from %s: %s", source, payload))
	}

	return strings.Join(lines, "\n")
}
