// ABOUTME: Staged stream event types emitted by one pipeline run
// ABOUTME: Four ordered events (quota, category, agents, final), serialized one JSON object per line

package pipeline

import (
	"strings"

	"github.com/chorushq/chorus-orchestrator/internal/dispatch"
)

// EventType tags a stream event.
type EventType string

// Event types in emission order. A denial short-circuits straight to final.
const (
	EventQuota    EventType = "quota"
	EventCategory EventType = "category"
	EventAgents   EventType = "agents"
	EventFinal    EventType = "final"
)

// Event is one frame of the staged response stream.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// QuotaData is the payload of a quota event: the admission-time snapshot of
// the caller's remaining and maximum credit.
type QuotaData struct {
	Remaining int `json:"remaining"`
	Max       int `json:"max"`
}

// QuotaEvent reports the caller's credit after admission.
func QuotaEvent(remaining, max int) Event {
	return Event{Type: EventQuota, Data: QuotaData{Remaining: remaining, Max: max}}
}

// CategoryEvent carries the comma-joined predicted category list.
func CategoryEvent(categories []string) Event {
	return Event{Type: EventCategory, Data: strings.Join(categories, ", ")}
}

// AgentsEvent carries the full response list: every dispatched agent plus
// the fallback, error-marked entries included.
func AgentsEvent(responses []dispatch.AgentResponse) Event {
	return Event{Type: EventAgents, Data: responses}
}

// FinalEvent carries the synthesized answer (or a denial message).
// It is always the last event of a run and is emitted exactly once.
func FinalEvent(answer string) Event {
	return Event{Type: EventFinal, Data: answer}
}

// EmitFunc delivers one event to the transport layer. Each event is
// consumable before the next stage of the run produces anything.
type EmitFunc func(Event) error
