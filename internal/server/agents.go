// ABOUTME: Read-only HTTP views over the agent registry, plus liveness
// ABOUTME: GET /api/agents lists public agents without credential material

package server

import (
	"encoding/json"
	"net/http"
)

// AgentInfoResponse is the JSON shape for GET /api/agents entries.
// Credential material never leaves the store through this endpoint.
type AgentInfoResponse struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Categories []string `json:"categories"`
}

// handleListAgents handles GET /api/agents requests.
// It returns a JSON array of all publicly visible registered agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	agents, err := s.registry.ListAgents(r.Context())
	if err != nil {
		s.logger.Error("failed to list agents", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]AgentInfoResponse, 0, len(agents))
	for _, a := range agents {
		if !a.Public {
			continue
		}
		response = append(response, AgentInfoResponse{
			Name:       a.Name,
			URL:        a.URL,
			Categories: a.Categories,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleHealth handles GET /health liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
