// ABOUTME: SecureDispatcher: concurrent signed fan-out to matched agents
// ABOUTME: One response per agent, failures isolated per call, structured join before return

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chorushq/chorus-orchestrator/internal/crypto"
	"github.com/chorushq/chorus-orchestrator/internal/store"
)

// ErrInvalidRegistration is the error marker attached to an agent response
// when its stored credentials are absent or cannot be decrypted.
const ErrInvalidRegistration = "Invalid registration or failed to decrypt credentials"

// AgentResponse is the per-agent result of one dispatch. Exactly one is
// produced per dispatched agent; an Error marker excludes the entry from
// synthesis but not from the agents event.
type AgentResponse struct {
	Name     string  `json:"name"`
	AgentURL *string `json:"agent_url"`
	Result   any     `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Failed reports whether this response carries an error marker.
func (r AgentResponse) Failed() bool {
	return r.Error != ""
}

// Sender is the opaque sign-and-send capability: one authenticated call to
// an agent endpoint. Transport and auth details are the implementation's.
type Sender interface {
	Send(ctx context.Context, endpoint string, payload map[string]any, issuerID, privateKeyPEM string) (map[string]any, error)
}

// Dispatcher issues one authenticated call per matched agent, all
// concurrently, and returns once every call has resolved.
type Dispatcher struct {
	sender   Sender
	keychain *crypto.Keychain
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Dispatcher. timeout bounds each individual agent call.
func New(sender Sender, keychain *crypto.Keychain, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		keychain: keychain,
		timeout:  timeout,
		logger:   logger.With("component", "dispatch"),
	}
}

// Dispatch fans the query out to all agents and blocks until every call has
// resolved. The result has one slot per input agent, in input order. A
// credential or network failure marks that slot only; siblings are unaffected.
func (d *Dispatcher) Dispatch(ctx context.Context, agents []*store.Agent, query, outputStructure string) []AgentResponse {
	if len(agents) == 0 {
		return nil
	}

	results := make([]AgentResponse, len(agents))

	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent *store.Agent) {
			defer wg.Done()
			results[i] = d.callAgent(ctx, agent, query, outputStructure)
		}(i, agent)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) callAgent(ctx context.Context, agent *store.Agent, query, outputStructure string) AgentResponse {
	url := agent.URL

	privateKey, err := d.resolvePrivateKey(agent)
	if err != nil {
		d.logger.Error("failed to resolve agent credentials", "url", url, "issuer_id", agent.IssuerID, "error", err)
		return AgentResponse{
			Name:     agent.Name,
			AgentURL: &url,
			Error:    ErrInvalidRegistration,
		}
	}

	payload := map[string]any{"query": query}
	if outputStructure != "" {
		payload["output_structure"] = outputStructure
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.sender.Send(callCtx, url, payload, agent.IssuerID, privateKey)
	if err != nil {
		d.logger.Warn("agent call failed", "url", url, "issuer_id", agent.IssuerID, "error", err)
		return AgentResponse{
			Name:     agent.Name,
			AgentURL: &url,
			Error:    fmt.Sprintf("agent call failed: %v", err),
		}
	}

	return AgentResponse{
		Name:     agent.Name,
		AgentURL: &url,
		Result:   result,
	}
}

// resolvePrivateKey returns the plaintext signing key for an agent.
// Rows written before credential encryption carry plaintext keys.
func (d *Dispatcher) resolvePrivateKey(agent *store.Agent) (string, error) {
	if agent.URL == "" || agent.IssuerID == "" || agent.PrivateKey == "" {
		return "", fmt.Errorf("incomplete registration")
	}

	if !agent.PrivateKeyEncrypted {
		return agent.PrivateKey, nil
	}

	plaintext, err := d.keychain.Decrypt(agent.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("decrypting credentials: %w", err)
	}
	return plaintext, nil
}
