// Package store provides persistence for chorus-orchestrator: caller credit
// records and the agent registry, backed by SQLite.
//
// The pipeline consumes two narrow interfaces: UserStore (single-record
// read/update for quota accounting) and AgentRegistry (read-only listing).
// Agent registration writes belong to an external subsystem; CreateAgent and
// CreateUser exist for that subsystem and for tests.
package store
