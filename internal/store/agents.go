// ABOUTME: Agent registry persistence, read-only to the dispatch pipeline
// ABOUTME: Normalizes legacy single-category rows into category sets at scan time

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAgent inserts an agent registration. Registration belongs to an
// external subsystem; the method exists for that subsystem and for tests.
// Returns ErrDuplicateAgent if the url+issuer pair is already registered.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	if agent.UpdatedAt.IsZero() {
		agent.UpdatedAt = now
	}

	var categoriesJSON any
	if len(agent.Categories) > 0 {
		data, err := json.Marshal(agent.Categories)
		if err != nil {
			return fmt.Errorf("marshaling categories: %w", err)
		}
		categoriesJSON = string(data)
	}

	query := `
		INSERT INTO agents (id, url, issuer_id, name, category, categories,
			private_key, private_key_encrypted, public, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		agent.ID,
		agent.URL,
		agent.IssuerID,
		agent.Name,
		nullString(agent.Category),
		categoriesJSON,
		nullString(agent.PrivateKey),
		agent.PrivateKeyEncrypted,
		agent.Public,
		nullString(agent.OwnerID),
		agent.CreatedAt.Format(time.RFC3339),
		agent.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateAgent
		}
		return fmt.Errorf("inserting agent: %w", err)
	}

	s.logger.Debug("created agent", "id", agent.ID, "url", agent.URL, "issuer_id", agent.IssuerID)
	return nil
}

// ListAgents returns all registered agents. Category sets are normalized:
// a row with no multi-category list falls back to its legacy category field.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	query := `
		SELECT id, url, issuer_id, name, category, categories,
			private_key, private_key_encrypted, public, owner_id, created_at, updated_at
		FROM agents
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent, err := s.scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agents: %w", err)
	}

	return agents, nil
}

func (s *SQLiteStore) scanAgent(rows *sql.Rows) (*Agent, error) {
	var agent Agent
	var category, categoriesJSON, privateKey, ownerID sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(
		&agent.ID,
		&agent.URL,
		&agent.IssuerID,
		&agent.Name,
		&category,
		&categoriesJSON,
		&privateKey,
		&agent.PrivateKeyEncrypted,
		&agent.Public,
		&ownerID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}

	agent.Category = category.String
	agent.PrivateKey = privateKey.String
	agent.OwnerID = ownerID.String
	agent.CreatedAt = s.parseTimestamp(createdAt, "created_at", agent.ID)
	agent.UpdatedAt = s.parseTimestamp(updatedAt, "updated_at", agent.ID)

	if categoriesJSON.Valid && categoriesJSON.String != "" {
		if err := json.Unmarshal([]byte(categoriesJSON.String), &agent.Categories); err != nil {
			return nil, fmt.Errorf("parsing categories for agent %s: %w", agent.ID, err)
		}
	}

	// Legacy rows predate the multi-category list
	if len(agent.Categories) == 0 && agent.Category != "" {
		agent.Categories = []string{agent.Category}
	}

	return &agent, nil
}
