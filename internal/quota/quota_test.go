// ABOUTME: Tests for admission control and credit accounting
// ABOUTME: Covers decrement, 24h reset, denial without mutation, and guest limiting

package quota

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus-orchestrator/internal/ratelimit"
	"github.com/chorushq/chorus-orchestrator/internal/store"
)

// fakeUserStore is an in-memory UserStore recording quota updates.
type fakeUserStore struct {
	users   map[string]*store.User
	getErr  error
	updErr  error
	updates int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*store.User)}
}

func (f *fakeUserStore) GetUser(ctx context.Context, email string) (*store.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) UpdateQuota(ctx context.Context, email string, requestsLeft int, lastReset *time.Time) error {
	if f.updErr != nil {
		return f.updErr
	}
	f.updates++
	u := f.users[email]
	u.RequestsLeft = requestsLeft
	u.LastResetTime = lastReset
	return nil
}

func newTestGate(users store.UserStore) *Gate {
	return NewGate(users, ratelimit.New(1, 24*time.Hour), 5, 1, 24*time.Hour, slog.Default())
}

func TestGate_AdmitIdentified_Decrements(t *testing.T) {
	users := newFakeUserStore()
	reset := time.Now().UTC().Add(-time.Hour)
	users.users["alice@example.com"] = &store.User{
		Email:         "alice@example.com",
		RequestsLeft:  5,
		LastResetTime: &reset,
	}

	gate := newTestGate(users)
	dec, err := gate.Admit(context.Background(), Caller{UserKey: "alice@example.com"})
	require.NoError(t, err)

	assert.True(t, dec.Admitted)
	assert.Equal(t, 4, dec.Remaining)
	assert.Equal(t, 5, dec.Max)
	assert.Equal(t, 1, users.updates)

	// Mid-cycle consumption keeps the original reset timestamp
	assert.True(t, users.users["alice@example.com"].LastResetTime.Equal(reset))
}

func TestGate_AdmitIdentified_ConsecutiveRuns(t *testing.T) {
	users := newFakeUserStore()
	users.users["bob@example.com"] = &store.User{
		Email:        "bob@example.com",
		RequestsLeft: 5,
	}

	gate := newTestGate(users)
	ctx := context.Background()
	caller := Caller{UserKey: "bob@example.com"}

	for want := 4; want >= 0; want-- {
		dec, err := gate.Admit(ctx, caller)
		require.NoError(t, err)
		require.True(t, dec.Admitted)
		assert.Equal(t, want, dec.Remaining)
	}

	// Sixth run within the window is denied
	dec, err := gate.Admit(ctx, caller)
	require.NoError(t, err)
	assert.False(t, dec.Admitted)
	assert.Equal(t, DeniedUserMessage, dec.Message)
	assert.Equal(t, 5, users.updates)
}

func TestGate_AdmitIdentified_ResetAfterWindow(t *testing.T) {
	users := newFakeUserStore()
	reset := time.Now().UTC().Add(-30 * time.Hour)
	users.users["carol@example.com"] = &store.User{
		Email:         "carol@example.com",
		RequestsLeft:  0,
		LastResetTime: &reset,
	}

	gate := newTestGate(users)
	dec, err := gate.Admit(context.Background(), Caller{UserKey: "carol@example.com"})
	require.NoError(t, err)

	// 30 hours since last reset: balance resets to 5 then decrements to 4
	assert.True(t, dec.Admitted)
	assert.Equal(t, 4, dec.Remaining)
	assert.Equal(t, 5, dec.Max)

	// A fresh cycle stamps a new reset timestamp
	stored := users.users["carol@example.com"]
	require.NotNil(t, stored.LastResetTime)
	assert.True(t, stored.LastResetTime.After(reset))
}

func TestGate_AdmitIdentified_NeverStarted(t *testing.T) {
	users := newFakeUserStore()
	users.users["dave@example.com"] = &store.User{
		Email:        "dave@example.com",
		RequestsLeft: 0, // stale balance with no timestamp is treated as reset
	}

	gate := newTestGate(users)
	dec, err := gate.Admit(context.Background(), Caller{UserKey: "dave@example.com"})
	require.NoError(t, err)

	assert.True(t, dec.Admitted)
	assert.Equal(t, 4, dec.Remaining)
	assert.NotNil(t, users.users["dave@example.com"].LastResetTime)
}

func TestGate_DenialDoesNotMutate(t *testing.T) {
	users := newFakeUserStore()
	reset := time.Now().UTC().Add(-time.Hour)
	users.users["erin@example.com"] = &store.User{
		Email:         "erin@example.com",
		RequestsLeft:  0,
		LastResetTime: &reset,
	}

	gate := newTestGate(users)
	dec, err := gate.Admit(context.Background(), Caller{UserKey: "erin@example.com"})
	require.NoError(t, err)

	assert.False(t, dec.Admitted)
	assert.Equal(t, 0, users.updates)
}

func TestGate_StorageErrorPropagates(t *testing.T) {
	users := newFakeUserStore()
	users.getErr = errors.New("connection refused")

	gate := newTestGate(users)
	_, err := gate.Admit(context.Background(), Caller{UserKey: "alice@example.com"})
	assert.Error(t, err)
}

func TestGate_UpdateErrorPropagates(t *testing.T) {
	users := newFakeUserStore()
	users.users["alice@example.com"] = &store.User{Email: "alice@example.com", RequestsLeft: 5}
	users.updErr = errors.New("disk full")

	gate := newTestGate(users)
	_, err := gate.Admit(context.Background(), Caller{UserKey: "alice@example.com"})
	assert.Error(t, err)
}

func TestGate_AdmitGuest(t *testing.T) {
	gate := newTestGate(newFakeUserStore())
	ctx := context.Background()

	dec, err := gate.Admit(ctx, Caller{Identity: "203.0.113.7"})
	require.NoError(t, err)
	assert.True(t, dec.Admitted)
	assert.Equal(t, 0, dec.Remaining)
	assert.Equal(t, 1, dec.Max)

	// Second request within the window is denied with the literal guest message
	dec, err = gate.Admit(ctx, Caller{Identity: "203.0.113.7"})
	require.NoError(t, err)
	assert.False(t, dec.Admitted)
	assert.Equal(t, DeniedGuestMessage, dec.Message)
}

func TestGate_GuestIdentitiesIndependent(t *testing.T) {
	gate := newTestGate(newFakeUserStore())
	ctx := context.Background()

	dec, err := gate.Admit(ctx, Caller{Identity: "203.0.113.7"})
	require.NoError(t, err)
	assert.True(t, dec.Admitted)

	dec, err = gate.Admit(ctx, Caller{Identity: "198.51.100.9"})
	require.NoError(t, err)
	assert.True(t, dec.Admitted)
}
