// ABOUTME: HTTP sign-and-send implementation of the Sender capability
// ABOUTME: Posts the query payload with a short-lived RS256 bearer token per call

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Request tokens are single-use and short-lived
const tokenTTL = 5 * time.Minute

// HTTPSender signs each outbound request with the agent's RSA private key
// and posts the payload as JSON. The agent verifies the token against the
// public key it holds for the issuer.
type HTTPSender struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSender creates an HTTPSender. Per-call deadlines come from the
// caller's context, not from the underlying client.
func NewHTTPSender(logger *slog.Logger) *HTTPSender {
	return &HTTPSender{
		client: &http.Client{},
		logger: logger.With("component", "sender"),
	}
}

// Send implements the Sender interface.
func (s *HTTPSender) Send(ctx context.Context, endpoint string, payload map[string]any, issuerID, privateKeyPEM string) (map[string]any, error) {
	token, err := signRequestToken(issuerID, privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("signing request token: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a little of the body for context, then discard
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("agent returned status %d: %s", resp.StatusCode, snippet)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding agent response: %w", err)
	}

	return result, nil
}

// signRequestToken creates a short-lived RS256 JWT identifying the issuer.
func signRequestToken(issuerID, privateKeyPEM string) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": issuerID,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// Ensure HTTPSender implements Sender.
var _ Sender = (*HTTPSender)(nil)
