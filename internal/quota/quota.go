// ABOUTME: Admission control for pipeline runs: per-caller daily credit balances
// ABOUTME: Identified callers decrement a stored balance; anonymous callers use a fixed-window limiter

package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chorushq/chorus-orchestrator/internal/ratelimit"
	"github.com/chorushq/chorus-orchestrator/internal/store"
)

// Denial messages returned verbatim to callers.
const (
	DeniedUserMessage  = "Daily request limit reached (5/day). Please wait 24 hours."
	DeniedGuestMessage = "Guest limit reached (1/day). Please login or register to get 5 requests/day."
)

// Caller identifies who is asking. UserKey is set by the fronting auth layer
// for identified callers; anonymous callers carry only a network identity.
type Caller struct {
	UserKey  string
	Identity string
}

// Authenticated reports whether the caller is an identified user.
func (c Caller) Authenticated() bool {
	return c.UserKey != ""
}

// Decision is the outcome of an admission check. Remaining and Max are a
// snapshot taken at admission time; the pipeline never re-reads them.
type Decision struct {
	Admitted  bool
	Remaining int
	Max       int
	Message   string
}

// Gate decides whether a caller may issue a query. Exactly one balance
// mutation happens per admitted identified request; denials mutate nothing.
type Gate struct {
	users    store.UserStore
	guests   *ratelimit.Limiter
	dailyCap int
	guestCap int
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewGate creates an admission gate over the given user store and guest
// limiter. The caller owns the limiter's lifecycle.
func NewGate(users store.UserStore, guests *ratelimit.Limiter, dailyCap, guestCap int, window time.Duration, logger *slog.Logger) *Gate {
	return &Gate{
		users:    users,
		guests:   guests,
		dailyCap: dailyCap,
		guestCap: guestCap,
		window:   window,
		logger:   logger.With("component", "quota"),
		now:      time.Now,
	}
}

// Admit checks and consumes one credit for the caller.
// Storage errors propagate; the run cannot proceed when admission is undecidable.
func (g *Gate) Admit(ctx context.Context, caller Caller) (Decision, error) {
	if caller.Authenticated() {
		return g.admitUser(ctx, caller.UserKey)
	}
	return g.admitGuest(caller.Identity), nil
}

func (g *Gate) admitUser(ctx context.Context, email string) (Decision, error) {
	user, err := g.users.GetUser(ctx, email)
	if err != nil {
		return Decision{}, fmt.Errorf("reading user %q: %w", email, err)
	}

	now := g.now().UTC()

	balance := user.RequestsLeft
	lastReset := user.LastResetTime

	// Reset cycle if never started or more than the window has elapsed
	if lastReset == nil || now.Sub(*lastReset) > g.window {
		balance = g.dailyCap
		lastReset = nil // stamped on consumption
	}

	if balance <= 0 {
		g.logger.Info("denied identified caller", "user", email)
		return Decision{
			Admitted: false,
			Max:      g.dailyCap,
			Message:  DeniedUserMessage,
		}, nil
	}

	balance--
	if lastReset == nil {
		lastReset = &now
	}

	if err := g.users.UpdateQuota(ctx, email, balance, lastReset); err != nil {
		return Decision{}, fmt.Errorf("updating quota for %q: %w", email, err)
	}

	g.logger.Debug("admitted identified caller", "user", email, "remaining", balance)
	return Decision{
		Admitted:  true,
		Remaining: balance,
		Max:       g.dailyCap,
	}, nil
}

func (g *Gate) admitGuest(identity string) Decision {
	if !g.guests.Allow(identity) {
		g.logger.Info("denied anonymous caller", "identity", identity)
		return Decision{
			Admitted: false,
			Max:      g.guestCap,
			Message:  DeniedGuestMessage,
		}
	}

	// A guest who got in just consumed their single credit
	return Decision{
		Admitted:  true,
		Remaining: 0,
		Max:       g.guestCap,
	}
}
