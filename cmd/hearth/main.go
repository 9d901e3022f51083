// Hearth is a voice-assistant brain for smart home control.
//
// It exposes an HTTP and WebSocket API that accepts natural-language
// commands (English or Portuguese), resolves them against the smart-home
// inventory via LLM tool calling, and dispatches device control through
// the upstream hub API. Configuration is loaded from a single YAML file
// discovered automatically (see [config.FindConfig]).
//
// Usage:
//
//	hearth serve             Start the API server
//	hearth ask <message>     Process a single message (for testing)
//	hearth version           Print version and build information
//	hearth -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hearthd/hearth/internal/api"
	"github.com/hearthd/hearth/internal/buildinfo"
	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/conversation"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/smarthome"
	"github.com/hearthd/hearth/internal/snapshot"
	"github.com/hearthd/hearth/internal/tools"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run], keeping
// os.Exit and os.Args out of the application logic so the lifecycle can
// be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which interferes with
// calling run() concurrently from tests, and the surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
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
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: hearth ask <message>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Hearth - Smart Home Voice Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: hearth [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  ask          Process a single message (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/hearth/config.yaml, /etc/hearth/config.yaml")
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// assistant bundles the constructed application stack.
type assistant struct {
	store        *smarthome.Store
	registry     *tools.Registry
	orchestrator *llm.Orchestrator
	sessions     *conversation.Manager
}

// buildAssistant wires the full stack from configuration: upstream
// client with resilience, cached store, tool registry, context
// snapshots, provider, and the orchestrator on top.
func buildAssistant(cfg *config.Config, logger *slog.Logger) (*assistant, error) {
	client := smarthome.NewClient(cfg.SmartHome, logger)
	store := smarthome.NewStore(client)

	tilt := tools.TiltProfileByName(cfg.SmartHome.TiltProfile)
	registry := tools.NewRegistry(store, tilt, logger)

	provider, err := llm.NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &assistant{
		store:        store,
		registry:     registry,
		orchestrator: llm.NewOrchestrator(provider, registry, snapshot.NewService(client, logger), logger),
		sessions:     conversation.NewManager(cfg.Conversation.MaxHistory, cfg.Conversation.SessionTTL),
	}, nil
}

// runAsk processes a single message without starting the server.
// Useful for smoke tests and debugging.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	app, err := buildAssistant(cfg, logger)
	if err != nil {
		return err
	}

	result, err := app.orchestrator.Chat(ctx, strings.Join(args, " "), nil)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, result.Response)
	for _, a := range result.Actions {
		fmt.Fprintf(stdout, "  action: %v %v\n", a.Device, a.Action)
	}
	return nil
}

// runServe is the primary operating mode: load config, wire the stack,
// start the API server, and block until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Hearth", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"provider", cfg.LLM.Provider,
		"smart_home_url", cfg.SmartHome.URL,
	)

	app, err := buildAssistant(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A dead provider is worth knowing about at startup, but not fatal:
	// a local runtime may still be loading its model.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := app.orchestrator.Ping(pingCtx); err != nil {
		logger.Warn("llm provider not reachable yet", "provider", cfg.LLM.Provider, "error", err)
	}
	cancel()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, app.orchestrator, app.sessions, app.store, app.registry, logger)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
