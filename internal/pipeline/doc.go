// Package pipeline orchestrates one query through the full dispatch and
// synthesis sequence: admission, classification, agent matching, concurrent
// signed fan-out alongside a local fallback answer, synthesis, and staged
// event emission.
//
// A run emits exactly four ordered events — quota, category, agents, final —
// each delivered incrementally through an EmitFunc before the next stage
// produces anything. A denied admission collapses to a single final event.
// Failures recover local-first: classification degrades to an empty category
// set, per-agent failures mark only their own response, and fallback or
// synthesis failures degrade to placeholder strings. Only an undecidable
// admission aborts a run.
package pipeline
