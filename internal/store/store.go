// ABOUTME: Store interface and data types for chorus-orchestrator persistence
// ABOUTME: Defines User, Agent structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateAgent is returned when an agent already exists for a url+issuer pair
var ErrDuplicateAgent = errors.New("agent already exists")

// User represents an identified caller with a daily credit balance.
// LastResetTime is nil until the first request of a reset cycle is consumed.
type User struct {
	ID            string
	Email         string
	RequestsLeft  int
	LastResetTime *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Agent represents a registered agent service. Registration writes happen in
// an external subsystem; this core reads agents and dispatches to them.
//
// Categories is the authoritative category set. Rows written before
// multi-category support carry only the legacy Category field; the registry
// normalizes those into Categories at scan time so matching never has to
// special-case legacy rows.
type Agent struct {
	ID                  string
	URL                 string
	IssuerID            string
	Name                string
	Categories          []string
	Category            string // legacy single-category field
	PrivateKey          string // encrypted unless PrivateKeyEncrypted is false
	PrivateKeyEncrypted bool
	Public              bool
	OwnerID             string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UserStore provides read/update access to caller credit records
type UserStore interface {
	// GetUser retrieves a user by key (email). Returns ErrNotFound if absent.
	GetUser(ctx context.Context, email string) (*User, error)

	// UpdateQuota persists a user's balance and reset timestamp in a single
	// update call. lastReset may be nil to leave the cycle unstarted.
	UpdateQuota(ctx context.Context, email string, requestsLeft int, lastReset *time.Time) error
}

// AgentRegistry provides read-only access to registered agents
type AgentRegistry interface {
	// ListAgents returns all registered agents with normalized category sets.
	// No filtering is performed; all matching happens in the pipeline.
	ListAgents(ctx context.Context) ([]*Agent, error)
}

// Store combines all persistence interfaces
type Store interface {
	UserStore
	AgentRegistry

	Close() error
}
