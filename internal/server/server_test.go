// ABOUTME: Tests for the HTTP layer: NDJSON streaming, caller identification, registry views
// ABOUTME: Uses httptest with a fake pipeline runner and in-memory registry

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus-orchestrator/internal/config"
	"github.com/chorushq/chorus-orchestrator/internal/pipeline"
	"github.com/chorushq/chorus-orchestrator/internal/quota"
	"github.com/chorushq/chorus-orchestrator/internal/store"
)

type fakeRunner struct {
	events []pipeline.Event
	err    error
	caller quota.Caller
	query  string
}

func (f *fakeRunner) Run(ctx context.Context, caller quota.Caller, query string, emit pipeline.EmitFunc) error {
	f.caller = caller
	f.query = query
	for _, e := range f.events {
		if err := emit(e); err != nil {
			return err
		}
	}
	return f.err
}

type fakeRegistry struct {
	agents []*store.Agent
	err    error
}

func (f *fakeRegistry) ListAgents(ctx context.Context) ([]*store.Agent, error) {
	return f.agents, f.err
}

func newTestServer(runner Runner, registry store.AgentRegistry) *Server {
	cfg := &config.Config{}
	cfg.Server.HTTPAddr = ":0"
	return New(cfg, runner, registry, slog.Default())
}

func postSearch(t *testing.T, srv *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeLines(t *testing.T, body string) []pipeline.Event {
	t.Helper()
	var events []pipeline.Event
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		var e pipeline.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	return events
}

func TestHandleSearch_StreamsEvents(t *testing.T) {
	runner := &fakeRunner{events: []pipeline.Event{
		pipeline.QuotaEvent(4, 5),
		pipeline.CategoryEvent([]string{"Restaurant", "Bar"}),
		pipeline.AgentsEvent(nil),
		pipeline.FinalEvent("the answer"),
	}}
	srv := newTestServer(runner, &fakeRegistry{})

	rec := postSearch(t, srv, `{"query": "best tacos"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	events := decodeLines(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, pipeline.EventQuota, events[0].Type)
	assert.Equal(t, pipeline.EventCategory, events[1].Type)
	assert.Equal(t, pipeline.EventAgents, events[2].Type)
	assert.Equal(t, pipeline.EventFinal, events[3].Type)
	assert.Equal(t, "Restaurant, Bar", events[1].Data)
	assert.Equal(t, "the answer", events[3].Data)

	assert.Equal(t, "best tacos", runner.query)
}

func TestHandleSearch_IdentifiedCaller(t *testing.T) {
	runner := &fakeRunner{events: []pipeline.Event{pipeline.FinalEvent("x")}}
	srv := newTestServer(runner, &fakeRegistry{})

	postSearch(t, srv, `{"query": "q"}`, map[string]string{"X-User-Key": "alice@example.com"})

	assert.Equal(t, "alice@example.com", runner.caller.UserKey)
	assert.True(t, runner.caller.Authenticated())
}

func TestHandleSearch_AnonymousCallerKeyedByIP(t *testing.T) {
	runner := &fakeRunner{events: []pipeline.Event{pipeline.FinalEvent("x")}}
	srv := newTestServer(runner, &fakeRegistry{})

	postSearch(t, srv, `{"query": "q"}`, map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})

	assert.False(t, runner.caller.Authenticated())
	assert.Equal(t, "203.0.113.7", runner.caller.Identity)
}

func TestHandleSearch_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, &fakeRegistry{})

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSearch_BadRequests(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, &fakeRegistry{})

	rec := postSearch(t, srv, `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postSearch(t, srv, `{"query": ""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearch_PipelineErrorBeforeFirstEvent(t *testing.T) {
	runner := &fakeRunner{err: errors.New("credit store unreachable")}
	srv := newTestServer(runner, &fakeRegistry{})

	rec := postSearch(t, srv, `{"query": "q"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleListAgents(t *testing.T) {
	registry := &fakeRegistry{agents: []*store.Agent{
		{Name: "Public Agent", URL: "https://a.example.com", Categories: []string{"Hotel"}, Public: true, PrivateKey: "secret-blob"},
		{Name: "Private Agent", URL: "https://b.example.com", Categories: []string{"Bar"}, Public: false},
	}}
	srv := newTestServer(&fakeRunner{}, registry)

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var agents []AgentInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "Public Agent", agents[0].Name)

	// Credential material never appears in the listing
	assert.NotContains(t, rec.Body.String(), "secret-blob")
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, &fakeRegistry{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
