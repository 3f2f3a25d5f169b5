// ABOUTME: Tests for synthesis context assembly
// ABOUTME: Covers source labeling and exclusion of error-marked responses

package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chorushq/chorus-orchestrator/internal/dispatch"
)

func TestBuildSynthesisContext(t *testing.T) {
	responses := []dispatch.AgentResponse{
		{Name: "A", AgentURL: urlPtr("https://a.example.com"), Result: map[string]any{"answer": "x"}},
		{Name: "B", AgentURL: urlPtr("https://b.example.com"), Error: "agent call failed: timeout"},
		{Name: FallbackName, Result: "local"},
	}

	got := buildSynthesisContext(responses)
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Data from https://a.example.com: "))
	assert.True(t, strings.HasPrefix(lines[1], "Data from orchestrator fallback: "))
	assert.NotContains(t, got, "b.example.com")
}

func TestBuildSynthesisContext_AllFailed(t *testing.T) {
	responses := []dispatch.AgentResponse{
		{Name: "A", Error: "x"},
		{Name: FallbackName, Error: "y"},
	}

	assert.Empty(t, buildSynthesisContext(responses))
}
