// Command codegraph builds and queries a code knowledge graph of a
// repository.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/config"
	"github.com/DeusData/codegraph/internal/meta"
	"github.com/DeusData/codegraph/internal/pipeline"
	"github.com/DeusData/codegraph/internal/store"
)

var version = "dev"

var (
	flagDB      string
	flagGraph   string
	flagDir     string
	flagFormat  string
	flagVerbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "codegraph",
	Short:         "Incremental code knowledge graph",
	Long:          "codegraph parses C++, Go, JavaScript, TypeScript, Python and Rust sources with tree-sitter, resolves calls, inheritance and references across files, and keeps the graph in SQLite up to date with each commit.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(flagVerbose)
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "graph database path (default: .codegraph/<graph>.db under the repo root)")
	rootCmd.PersistentFlags().StringVar(&flagGraph, "graph", "", "graph name (default: codegraph)")
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", "", "repository directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: text|json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// env is the opened state shared by every command.
type env struct {
	root   string
	cfg    *config.Config
	store  *store.Store
	meta   *meta.Store
	engine *pipeline.Engine
}

// resolveRoot returns the absolute repository directory: the explicit
// argument, else -C, else the working directory.
func resolveRoot(arg string) (string, error) {
	dir := arg
	if dir == "" {
		dir = flagDir
	}
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// loadConfig reads the repo config and applies the global flags on top.
func loadConfig(root string) *config.Config {
	cfg := config.LoadConfig(root)
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagGraph != "" {
		cfg.Graph = flagGraph
	}
	return cfg
}

// openEnv opens the graph store and the local metadata store for root and
// builds an update engine over them.
func openEnv(root string) (*env, error) {
	cfg := loadConfig(root)
	dbPath := cfg.EffectiveDBPath(root)
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	e := &env{root: root, cfg: cfg, store: s}

	m, err := meta.Open(cfg.EffectiveMetaDir(root), slog.Default())
	if err != nil {
		// The graph store alone is enough; metadata is rebuilt from it.
		slog.Warn("meta.open", "err", err)
		m = nil
	}
	e.meta = m
	e.engine = pipeline.New(s, m, root)
	e.engine.Ignore = cfg.Ignore
	return e, nil
}

func (e *env) Close() {
	if e.meta != nil {
		if err := e.meta.Close(); err != nil {
			slog.Warn("meta.close", "err", err)
		}
	}
	if err := e.store.Close(); err != nil {
		slog.Warn("store.close", "err", err)
	}
}
