// Clubplanner is a conversational event-planning assistant for youth
// clubs.
//
// It exposes an HTTP API that turns chat messages into structured event
// records (tasks, budget lines, participants, documents), plus a CLI for
// one-shot turns. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	clubplanner serve                            Start the API server
//	clubplanner init [-seed] [dir]               Write a default config and data directory
//	clubplanner ask -event <id> [-user <name>] <message>
//	clubplanner version                          Print version and build information
//	clubplanner -o json version                  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/yuin/goldmark"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/api"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/buildinfo"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/config"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/events"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/llm"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/places"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/planner"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/rental"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/tools"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/usage"
)

// main constructs the OS-level environment and delegates to [run], so
// the whole lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Structured logs go to stdout; the caller
// prints the returned error to stderr. Arguments are parsed by hand so
// run can be called concurrently from tests without flag package
// globals.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
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
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Subcommand flags and arguments.
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
		opts, err := parseInitArgs(cmdArgs)
		if err != nil {
			return err
		}
		return runInit(ctx, stdout, opts)
	case "ask":
		opts, err := parseAskArgs(cmdArgs)
		if err != nil {
			return err
		}
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, opts)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
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
	// Stable order for humans.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Clubplanner - conversational event planning for youth clubs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: clubplanner [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                      Start the API server")
	fmt.Fprintln(w, "  init [-seed] [dir]         Write a default config.yaml and data directory (default: .)")
	fmt.Fprintln(w, "  ask -event <id> <message>  Run one planning turn and print the reply")
	fmt.Fprintln(w, "  version                    Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/clubplanner/config.yaml, /etc/clubplanner/config.yaml")
	return nil
}

// askOptions are the arguments of the ask command.
type askOptions struct {
	eventID string
	user    string
	message string
}

func parseAskArgs(args []string) (askOptions, error) {
	var opts askOptions
	var words []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-event" && i+1 < len(args):
			opts.eventID = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-event="):
			opts.eventID = strings.TrimPrefix(args[i], "-event=")
		case args[i] == "-user" && i+1 < len(args):
			opts.user = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-user="):
			opts.user = strings.TrimPrefix(args[i], "-user=")
		default:
			words = append(words, args[i])
		}
	}
	opts.message = strings.TrimSpace(strings.Join(words, " "))
	if opts.eventID == "" || opts.message == "" {
		return opts, errors.New("usage: clubplanner ask -event <id> [-user <name>] <message>")
	}
	if opts.user == "" {
		opts.user = "cli"
	}
	return opts, nil
}

// runAsk runs a single turn against the configured stores and prints
// the assistant reply.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, opts askOptions) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout carries only the reply.
	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return err
	}
	logger.Debug("config loaded", "path", cfgPath)

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	reply, err := app.planner.HandleMessage(ctx, planner.Request{
		EventID: opts.eventID,
		User:    opts.user,
		Message: opts.message,
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}
	fmt.Fprintln(stdout, reply.AssistantMessage)
	return nil
}

// runServe loads config, opens the stores, builds the clients and the
// planner, and serves the HTTP API until SIGINT or SIGTERM. In-flight
// requests drain before the stores close.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger(stdout)
	if err != nil {
		return err
	}
	logger.Info("starting clubplanner", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)
	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"data_dir", cfg.DataDir,
		"model", cfg.OpenAI.Model,
		"max_messages_per_event", cfg.Limits.MaxMessagesPerEvent,
		"daily_token_cap", cfg.Limits.DailyTokenCap,
	)

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := api.NewServer(api.Config{
		Address:  cfg.Listen.Address,
		Port:     cfg.Listen.Port,
		Planner:  app.planner,
		Records:  app.records,
		Ledger:   app.ledger,
		Bus:      app.bus,
		Logger:   logger,
		Markdown: goldmark.New(),
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("clubplanner stopped")
	return nil
}

// app holds the long-lived components shared by serve and ask.
type app struct {
	records *store.Store
	ledger  *usage.Store
	bus     *events.Bus
	planner *planner.Planner
}

// newApp opens the stores and wires the planner. The places and model
// clients are optional: without them place tools report that lookups
// are not configured and remote turns fail with planner.ErrRemote.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	records, err := store.Open(filepath.Join(cfg.DataDir, "planner.db"), logger)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	ledger, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"), usage.Limits{
		MaxMessagesPerEvent: cfg.Limits.MaxMessagesPerEvent,
		DailyTokenCap:       cfg.Limits.DailyTokenCap,
	}, logger)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("open usage store: %w", err)
	}

	var lookup places.Lookup
	if cfg.Places.APIKey != "" {
		lookup = places.NewGoogle(places.GoogleConfig{
			APIKey:            cfg.Places.APIKey,
			BaseURL:           cfg.Places.BaseURL,
			GeocodeCacheTTL:   cfg.Places.GeocodeCacheTTL(),
			RequestsPerSecond: cfg.Places.RequestsPerSecond,
		}, logger)
	} else {
		logger.Warn("places API key not set, place and rental-agency searches are disabled")
	}

	var client llm.Client
	if cfg.OpenAI.Configured() {
		client = llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout(), logger)
		logger.Info("remote planning model configured", "model", cfg.OpenAI.Model)
	} else {
		logger.Warn("openai api_key not set, only locally resolved turns will succeed")
	}

	params := rental.Params{
		GasPricePerGallon: cfg.Rental.GasPricePerGallon,
		MPGBus:            cfg.Rental.MPGBus,
		MPGVan:            cfg.Rental.MPGVan,
		MPGDefault:        cfg.Rental.MPGDefault,
		Capacity:          cfg.Rental.Capacity,
	}

	bus := events.New()
	registry := tools.NewRegistry(tools.Config{
		Records: records,
		Places:  lookup,
		Rental:  params,
		Defaults: tools.PlaceDefaults{
			RadiusKm:   cfg.Places.DefaultRadiusKm,
			MaxResults: cfg.Places.MaxResults,
			MinRating:  cfg.Places.MinRating,
		},
		Bus:    bus,
		Logger: logger,
	})

	p := planner.New(planner.Config{
		Records:         records,
		Ledger:          ledger,
		Tools:           registry,
		Client:          client,
		Model:           cfg.OpenAI.Model,
		MaxOutputTokens: cfg.OpenAI.MaxOutputTokens,
		Rental:          params,
		Bus:             bus,
		Logger:          logger,
	})

	return &app{records: records, ledger: ledger, bus: bus, planner: p}, nil
}

// Close releases the stores.
func (a *app) Close() {
	a.ledger.Close()
	a.records.Close()
}

// loadConfig finds and loads the config file.
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
