// ABOUTME: POST /search handler streaming staged pipeline events as NDJSON
// ABOUTME: Each event is written and flushed before the next pipeline stage runs

package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/chorushq/chorus-orchestrator/internal/pipeline"
	"github.com/chorushq/chorus-orchestrator/internal/quota"
)

// SearchRequest is the JSON request body for POST /search.
type SearchRequest struct {
	Query string `json:"query"`
}

// handleSearch handles POST /search requests.
// It accepts a JSON body with the query and streams the staged pipeline
// events as newline-delimited JSON, one event per line.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.sendJSONError(w, http.StatusBadRequest, "query required")
		return
	}

	caller := callerFromRequest(r)

	// Check streaming support before running the pipeline (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	wroteEvent := false
	emit := func(e pipeline.Event) error {
		line, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
		flusher.Flush()
		wroteEvent = true
		return nil
	}

	if err := s.pipeline.Run(r.Context(), caller, req.Query, emit); err != nil {
		s.logger.Error("pipeline run failed", "error", err)
		if !wroteEvent {
			// Headers not committed by a flush yet; report a plain failure
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
}

// callerFromRequest identifies the caller. The fronting auth layer sets
// X-User-Key for identified users; everyone else is anonymous, keyed by
// client IP.
func callerFromRequest(r *http.Request) quota.Caller {
	if key := r.Header.Get("X-User-Key"); key != "" {
		return quota.Caller{UserKey: key}
	}
	return quota.Caller{Identity: clientIP(r)}
}

// clientIP extracts the client IP from a request, respecting
// X-Forwarded-For for proxied deployments.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sendJSONError writes a JSON error response with the given status code.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
