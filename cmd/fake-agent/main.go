// ABOUTME: Minimal fake agent for E2E testing — serves HTTP, verifies signed request tokens, echoes answers.
// ABOUTME: Usage: fake-agent [-addr localhost:9090] [-name "Echo Agent"] [-pubkey key.pem]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type queryRequest struct {
	Query           string `json:"query"`
	OutputStructure string `json:"output_structure,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:9090", "listen address")
	name := flag.String("name", "Echo Agent", "Agent display name")
	pubkeyPath := flag.String("pubkey", "", "PEM file with the orchestrator's RSA public key (skips token verification if empty)")
	flag.Parse()

	if err := run(*addr, *name, *pubkeyPath); err != nil {
		log.Fatal(err)
	}
}

func run(addr, name, pubkeyPath string) error {
	var verifyKey any
	if pubkeyPath != "" {
		pemBytes, err := os.ReadFile(pubkeyPath)
		if err != nil {
			return fmt.Errorf("reading public key: %w", err)
		}
		verifyKey, err = jwt.ParseRSAPublicKeyFromPEM(pemBytes)
		if err != nil {
			return fmt.Errorf("parsing public key: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if verifyKey != nil {
			issuer, err := verifyToken(r.Header.Get("Authorization"), verifyKey)
			if err != nil {
				log.Printf("rejected request: %v", err)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			log.Printf("verified token from issuer %s", issuer)
		}

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid body"})
			return
		}

		log.Printf("received query: %s", req.Query)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"agent":  name,
			"answer": echoReply(req.Query),
		})
	})

	log.Printf("fake agent %q listening on %s", name, addr)
	return http.ListenAndServe(addr, mux)
}

// verifyToken checks the Bearer token signature and returns the issuer claim.
func verifyToken(header string, key any) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	issuer, err := token.Claims.GetIssuer()
	if err != nil {
		return "", fmt.Errorf("missing issuer claim: %w", err)
	}
	return issuer, nil
}

func echoReply(query string) string {
	return fmt.Sprintf("Echo: %s", query)
}
