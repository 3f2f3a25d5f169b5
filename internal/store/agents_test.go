// ABOUTME: Tests for agent registry persistence
// ABOUTME: Covers legacy category normalization and url+issuer uniqueness

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ListAgents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, &Agent{
		URL:        "https://agent-one.example.com",
		IssuerID:   "issuer-1",
		Name:       "Agent One",
		Categories: []string{"Restaurant", "Bar"},
		PrivateKey: "encrypted-blob",
	}))
	require.NoError(t, store.CreateAgent(ctx, &Agent{
		URL:      "https://agent-two.example.com",
		IssuerID: "issuer-2",
		Name:     "Agent Two",
		Category: "Plumber",
	}))

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	assert.Equal(t, []string{"Restaurant", "Bar"}, agents[0].Categories)
	assert.Equal(t, "encrypted-blob", agents[0].PrivateKey)
	assert.True(t, agents[0].PrivateKeyEncrypted)
}

func TestStore_ListAgents_LegacyCategoryNormalized(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, &Agent{
		URL:      "https://legacy.example.com",
		IssuerID: "issuer-legacy",
		Name:     "Legacy Agent",
		Category: "Plumber",
	}))

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)

	// Legacy single-category rows come back with a populated category set
	assert.Equal(t, []string{"Plumber"}, agents[0].Categories)
	assert.Equal(t, "Plumber", agents[0].Category)
}

func TestStore_ListAgents_Empty(t *testing.T) {
	store := setupTestStore(t)

	agents, err := store.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestStore_CreateAgent_DuplicateURLIssuer(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	agent := &Agent{
		URL:      "https://shared.example.com",
		IssuerID: "issuer-a",
		Name:     "First",
	}
	require.NoError(t, store.CreateAgent(ctx, agent))

	dup := &Agent{
		URL:      "https://shared.example.com",
		IssuerID: "issuer-a",
		Name:     "Second",
	}
	assert.ErrorIs(t, store.CreateAgent(ctx, dup), ErrDuplicateAgent)
}

func TestStore_CreateAgent_SameURLDistinctIssuers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, &Agent{
		URL:      "https://shared.example.com",
		IssuerID: "issuer-a",
		Name:     "First",
	}))
	require.NoError(t, store.CreateAgent(ctx, &Agent{
		URL:      "https://shared.example.com",
		IssuerID: "issuer-b",
		Name:     "Second",
	}))

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}
