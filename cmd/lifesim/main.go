// Lifesim is an LLM-narrated alternative-reality life simulation server.
//
// It exposes a small HTTP API: clients POST free-text player actions to
// /api/interact and receive structured narrative turns back, with live
// turn feeds available over WebSocket at /api/watch/{userId}. Game state
// lives in memory per user; the model backends (OpenAI or Gemini) are
// selected per request. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	lifesim serve            Start the API server
//	lifesim init [dir]       Write a default lifesim.yaml
//	lifesim version          Print version and build information
//	lifesim -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/api"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/archive"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/buildinfo"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/config"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/game"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/httpkit"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/llm"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/prompts"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/session"

	_ "modernc.org/sqlite" // SQLite driver for the turn archive
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the lifesim command. All OS-level
// dependencies are injected as parameters: ctx controls the process
// lifetime (cancelling it triggers graceful shutdown), stdout/stderr
// receive program output, and args is os.Args[1:]. We parse arguments
// by hand rather than using the flag package to avoid global state that
// interferes with parallel tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServe starts the HTTP API server and blocks until shutdown.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting lifesim",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Reconfigure the logger now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	{
		level, _ := config.ParseLogLevel(cfg.LogLevel) // validated by Load
		logger = newLogger(stdout, level)
	}

	if cfgPath == "" {
		logger.Info("no config file found, using defaults and environment")
	} else {
		logger.Info("config loaded", "path", cfgPath)
	}
	logger.Info("game settings",
		"port", cfg.Listen.Port,
		"session_duration_sec", cfg.Session.DurationSec,
		"gateway_attempts", cfg.Gateway.MaxAttempts,
		"archive_enabled", cfg.Archive.Enabled,
	)

	// --- Session store ---
	// All game state is in memory. The sweeper evicts sessions idle
	// longer than the TTL; a TTL of zero disables eviction entirely.
	store := session.NewStore()
	if idleTTL := time.Duration(cfg.Session.IdleTTL); idleTTL > 0 {
		go store.RunSweeper(ctx, idleTTL, time.Hour, logger)
	}

	// --- Model gateway ---
	// Clients are built per request because the API key arrives with
	// each turn. The retry policy and HTTP timeout come from config.
	retry := llm.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Gateway.MaxAttempts
	httpTimeout := time.Duration(cfg.Gateway.RequestTimeoutSec) * time.Second
	schema := prompts.ResponseSchema()

	factory := func(apiType, apiKey string, l *slog.Logger) (llm.Client, error) {
		hc := httpkit.NewClient(httpkit.WithTimeout(httpTimeout))
		switch apiType {
		case "gpt":
			c := llm.NewOpenAIClient(apiKey, l)
			c.SetRetryPolicy(retry)
			c.SetHTTPClient(hc)
			return c, nil
		case "gemini":
			c := llm.NewGeminiClient(apiKey, schema, l)
			c.SetRetryPolicy(retry)
			c.SetHTTPClient(hc)
			return c, nil
		default:
			return nil, fmt.Errorf("unsupported api type: %s", apiType)
		}
	}

	duration := time.Duration(cfg.Session.DurationSec) * time.Second
	ctrl := game.NewController(store, factory, duration, logger)

	// --- Turn archive ---
	// Optional SQLite transcript of every completed model turn. Write
	// failures are logged and dropped; the archive never blocks a turn.
	if cfg.Archive.Enabled {
		arc, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("open turn archive %s: %w", cfg.Archive.Path, err)
		}
		defer arc.Close()
		logger.Info("turn archive opened", "path", cfg.Archive.Path)

		ctrl.AddObserver(func(ctx context.Context, rec game.TurnRecord) {
			err := arc.RecordTurn(ctx, archive.Turn{
				UserID:    rec.UserID,
				APIType:   rec.APIType,
				Message:   rec.Message,
				Narrative: rec.Reply.Reply.Narrative,
				Raw:       rec.Raw,
				GameOver:  rec.Reply.IsEnd,
			})
			if err != nil {
				logger.Error("archive write failed", "user_id", rec.UserID, "error", err)
			}
		})
	}

	// --- HTTP API ---
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, ctrl, logger)
	ctrl.AddObserver(server.ObserveTurn)

	// --- Signal handling and graceful shutdown ---
	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("lifesim stopped")
	return nil
}

// defaultConfigYAML is written by "lifesim init". It documents every
// setting with its default value commented out.
const defaultConfigYAML = `# lifesim configuration
#
# Every setting can also be supplied as an environment variable with the
# LIFESIM_ prefix, e.g. LIFESIM_LISTEN_PORT=9000.

listen:
  # address: ""        # bind address, empty = all interfaces
  port: 8787

session:
  # Playable time budget of one game session in seconds. Once elapsed,
  # every subsequent turn is narrated as the story's ending.
  duration_sec: 300
  # Sessions idle longer than this are evicted. Zero disables eviction.
  idle_ttl: 24h

gateway:
  # Upstream attempt budget per turn and per-request HTTP timeout.
  max_attempts: 3
  request_timeout_sec: 90

archive:
  # Optional SQLite transcript of every model turn (diagnostic only).
  enabled: false
  path: lifesim-archive.db

# trace, debug, info, warn, or error
log_level: info
`

// runInit writes a default lifesim.yaml into dir. It refuses to
// overwrite an existing file.
func runInit(stdout io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "lifesim.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.RuntimeInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Lifesim - LLM-narrated alternative-reality life simulation")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: lifesim [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Write a default lifesim.yaml (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./lifesim.yaml, ~/.config/lifesim/lifesim.yaml, /etc/lifesim/lifesim.yaml")
	return nil
}

// newLogger creates a structured text logger writing to w at the given
// level. All log output goes through slog; this helper standardizes the
// handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}
