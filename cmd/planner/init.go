package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/config"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
)

// initOptions are the arguments of the init command.
type initOptions struct {
	dir  string
	seed bool
}

func parseInitArgs(args []string) (initOptions, error) {
	opts := initOptions{dir: "."}
	for _, a := range args {
		switch {
		case a == "-seed" || a == "--seed":
			opts.seed = true
		case strings.HasPrefix(a, "-"):
			return opts, fmt.Errorf("unknown init flag: %s", a)
		default:
			opts.dir = a
		}
	}
	return opts, nil
}

// runInit writes a default config.yaml and creates the data directory.
// Existing files are never overwritten. With seed, a sample
// organization and camp event are created so ask has something to
// talk about.
func runInit(ctx context.Context, w io.Writer, opts initOptions) error {
	fmt.Fprintf(w, "Initializing clubplanner workspace in %s\n", opts.dir)

	cfg := config.Default()
	dataDir := filepath.Join(opts.dir, cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDir, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", dataDir)

	// The file holds API keys; it stays owner-only.
	cfg.OpenAI.APIKey = "${OPENAI_API_KEY}"
	cfg.Places.APIKey = "${GOOGLE_MAPS_API_KEY}"
	content, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("render default config: %w", err)
	}
	configPath := filepath.Join(opts.dir, "config.yaml")
	if err := writeIfMissing(configPath, content, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	if opts.seed {
		ev, err := seedSample(ctx, filepath.Join(dataDir, "planner.db"))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  ✓ sample event %q (%s)\n", ev.Title, ev.ID)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Set OPENAI_API_KEY and GOOGLE_MAPS_API_KEY, or edit config.yaml, then run: clubplanner serve")
	return nil
}

// seedSample creates a sample organization and a weekend camp event a
// month from now.
func seedSample(ctx context.Context, dbPath string) (*store.Event, error) {
	st, err := store.Open(dbPath, slog.New(slog.DiscardHandler))
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	defer st.Close()

	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 1, 0)
	_, ev, err := st.Seed(ctx, store.SeedSpec{
		OrganizationName:    "Sample Youth Club",
		OrganizationAddress: "100 Main St, Orlando FL 32801",
		EventTitle:          "Weekend Campout",
		EventType:           "camp",
		StartDate:           start,
		EndDate:             start.AddDate(0, 0, 2),
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// writeIfMissing writes content to path only if the file does not
// already exist.
func writeIfMissing(path string, content []byte, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
