// ABOUTME: Pipeline orchestrator: admission, classification, fan-out, synthesis, staged emission
// ABOUTME: One Run per inbound query; runs are independent and share no per-run mutable state

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chorushq/chorus-orchestrator/internal/dispatch"
	"github.com/chorushq/chorus-orchestrator/internal/llm"
	"github.com/chorushq/chorus-orchestrator/internal/quota"
	"github.com/chorushq/chorus-orchestrator/internal/store"
)

// FallbackName labels the orchestrator-level fallback entry in the agents event.
const FallbackName = "Orchestrator LLM Fallback Responses"

// SynthesisFailedMessage is the final answer when synthesis itself fails.
const SynthesisFailedMessage = "Synthesis failed."

// Admitter decides whether a caller may issue a query.
type Admitter interface {
	Admit(ctx context.Context, caller quota.Caller) (quota.Decision, error)
}

// Classifier predicts the category set for a query. A failed classification
// is an empty set, never an error.
type Classifier interface {
	Classify(ctx context.Context, query string) []string
}

// AgentDispatcher fans a query out to matched agents and joins all calls.
type AgentDispatcher interface {
	Dispatch(ctx context.Context, agents []*store.Agent, query, outputStructure string) []dispatch.AgentResponse
}

// Pipeline sequences one query through admission, classification, matching,
// concurrent dispatch plus fallback, synthesis, and staged emission.
// Collaborators are injected once at construction; there is no ambient lookup.
type Pipeline struct {
	gate       Admitter
	classifier Classifier
	registry   store.AgentRegistry
	dispatcher AgentDispatcher
	inference  llm.Inference
	logger     *slog.Logger
}

// New creates a Pipeline with explicit collaborators.
func New(gate Admitter, classifier Classifier, registry store.AgentRegistry, dispatcher AgentDispatcher, inference llm.Inference, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		gate:       gate,
		classifier: classifier,
		registry:   registry,
		dispatcher: dispatcher,
		inference:  inference,
		logger:     logger.With("component", "pipeline"),
	}
}

// Run executes one pipeline run, emitting events in order through emit.
// An admitted run emits exactly quota, category, agents, final; a denied run
// emits a single final event. Only an undecidable admission (storage
// failure) or a failed emit returns an error.
func (p *Pipeline) Run(ctx context.Context, caller quota.Caller, query string, emit EmitFunc) error {
	decision, err := p.gate.Admit(ctx, caller)
	if err != nil {
		return fmt.Errorf("admission check: %w", err)
	}

	if !decision.Admitted {
		return emit(FinalEvent(decision.Message))
	}

	// Snapshot taken at admission time; never re-read during the run
	if err := emit(QuotaEvent(decision.Remaining, decision.Max)); err != nil {
		return err
	}

	categories := p.classifier.Classify(ctx, query)
	if err := emit(CategoryEvent(categories)); err != nil {
		return err
	}

	matched := p.matchAgents(ctx, categories)

	// Agent calls and the local fallback run concurrently; the run waits
	// for all of them before the agents event.
	var wg sync.WaitGroup
	var agentResponses []dispatch.AgentResponse
	var fallback dispatch.AgentResponse

	wg.Add(2)
	go func() {
		defer wg.Done()
		agentResponses = p.dispatcher.Dispatch(ctx, matched, query, "")
	}()
	go func() {
		defer wg.Done()
		fallback = p.fallbackAnswer(ctx, query)
	}()
	wg.Wait()

	responses := append(agentResponses, fallback)
	if err := emit(AgentsEvent(responses)); err != nil {
		return err
	}

	final := p.synthesize(ctx, query, responses)
	return emit(FinalEvent(final))
}

// matchAgents lists the registry and selects category matches. A registry
// failure degrades to zero matched agents; the fallback still runs.
func (p *Pipeline) matchAgents(ctx context.Context, categories []string) []*store.Agent {
	if len(categories) == 0 {
		return nil
	}

	agents, err := p.registry.ListAgents(ctx)
	if err != nil {
		p.logger.Error("listing agents failed, dispatching to none", "error", err)
		return nil
	}

	matched := MatchAgents(categories, agents)
	p.logger.Debug("matched agents", "categories", categories, "matched", len(matched))
	return matched
}

// fallbackAnswer produces the guaranteed local answer. Its failure is
// tolerated: the entry appears with an error marker instead of a result.
func (p *Pipeline) fallbackAnswer(ctx context.Context, query string) dispatch.AgentResponse {
	answer, err := p.inference.Answer(ctx, "answer query: "+query)
	if err != nil {
		p.logger.Warn("fallback answer failed", "error", err)
		return dispatch.AgentResponse{
			Name:  FallbackName,
			Error: fmt.Sprintf("fallback failed: %v", err),
		}
	}

	return dispatch.AgentResponse{
		Name:   FallbackName,
		Result: answer,
	}
}

// synthesize merges all non-error responses into one final answer.
// Failure degrades to SynthesisFailedMessage; it is never fatal to the run.
func (p *Pipeline) synthesize(ctx context.Context, query string, responses []dispatch.AgentResponse) string {
	contextText := buildSynthesisContext(responses)

	prompt := fmt.Sprintf("Query: %s\nContext:\n%s\nSynthesize answer.", query, contextText)
	final, err := p.inference.Answer(ctx, prompt)
	if err != nil {
		p.logger.Warn("synthesis failed", "error", err)
		return SynthesisFailedMessage
	}

	return final
}
