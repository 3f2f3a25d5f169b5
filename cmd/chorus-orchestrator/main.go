// ABOUTME: Entry point for the chorus-orchestrator query pipeline server
// ABOUTME: Dispatches queries to registered agents and synthesizes answers

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/chorushq/chorus-orchestrator/internal/classify"
	"github.com/chorushq/chorus-orchestrator/internal/config"
	"github.com/chorushq/chorus-orchestrator/internal/crypto"
	"github.com/chorushq/chorus-orchestrator/internal/dispatch"
	"github.com/chorushq/chorus-orchestrator/internal/llm/openai"
	"github.com/chorushq/chorus-orchestrator/internal/pipeline"
	"github.com/chorushq/chorus-orchestrator/internal/quota"
	"github.com/chorushq/chorus-orchestrator/internal/ratelimit"
	"github.com/chorushq/chorus-orchestrator/internal/server"
	"github.com/chorushq/chorus-orchestrator/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
      _
  ___| |__   ___  _ __ _   _ ___
 / __| '_ \ / _ \| '__| | | / __|
| (__| | | | (_) | |  | |_| \__ \
 \___|_| |_|\___/|_|   \__,_|___/
`

// getConfigPath returns the path to the orchestrator config file.
// Priority: CHORUS_CONFIG env var > XDG_CONFIG_HOME/chorus/orchestrator.yaml > ~/.config/chorus/orchestrator.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHORUS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "orchestrator.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chorus", "orchestrator.yaml")
}

// getDataPath returns the path to the chorus data directory.
// Priority: XDG_DATA_HOME/chorus > ~/.local/share/chorus
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "chorus")
}

func main() {
	// .env values never override real environment variables
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: chorus-orchestrator <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the orchestrator server")
		fmt.Println("  init     Create a new config file with generated secrets")
		fmt.Println("  health   Check orchestrator health")
		fmt.Println("  agents   List publicly registered agents")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "agents":
		err = runAgents(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Model:     %s\n", cfg.LLM.Model)

	fmt.Println()

	logger.Info("starting chorus-orchestrator",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	keychain, err := crypto.NewKeychain(cfg.Security.MasterSecret, cfg.Security.CredentialSalt)
	if err != nil {
		return fmt.Errorf("deriving credential key: %w", err)
	}

	inference := openai.NewClient(func(o *openai.Options) {
		o.APIKey = cfg.LLM.APIKey
		o.Model = cfg.LLM.Model
		o.Temperature = cfg.LLM.Temperature
	})

	classifier, err := classify.New(inference, logger)
	if err != nil {
		return fmt.Errorf("creating classifier: %w", err)
	}

	guests := ratelimit.New(cfg.Quota.GuestCap, cfg.Quota.ResetWindow)
	defer guests.Close()

	gate := quota.NewGate(st, guests, cfg.Quota.DailyCap, cfg.Quota.GuestCap, cfg.Quota.ResetWindow, logger)
	sender := dispatch.NewHTTPSender(logger)
	dispatcher := dispatch.New(sender, keychain, cfg.Dispatch.CallTimeout, logger)
	pipe := pipeline.New(gate, classifier, st, dispatcher, inference, logger)

	srv := server.New(cfg, pipe, st, logger)
	return srv.Run(ctx)
}

// runInit writes a fresh config file with generated secrets. It refuses
// to overwrite an existing one.
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "orchestrator.db")

	green := color.New(color.FgGreen)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	masterSecret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generating master secret: %w", err)
	}
	credentialSalt, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generating credential salt: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# chorus-orchestrator configuration
# Generated by chorus-orchestrator init

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

security:
  master_secret: "%s"
  credential_salt: "%s"

llm:
  api_key: "${OPENAI_API_KEY}"
  model: "gpt-4o-mini"

quota:
  daily_cap: 5
  guest_cap: 1
  reset_window: "24h"

dispatch:
  call_timeout: "30s"

logging:
  level: "info"
  format: "text"
`, dbPath, masterSecret, credentialSalt)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println("  Edit it to set your OpenAI API key, then run: chorus-orchestrator serve")
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runAgents(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/agents", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("agents check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
