package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/metrics"
	"github.com/DeusData/codegraph/internal/pipeline"
	"github.com/DeusData/codegraph/internal/tools"
	"github.com/DeusData/codegraph/internal/watcher"
)

var (
	flagMetricsAddr string
	flagDebounce    time.Duration
	flagServeWatch  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph to MCP clients over stdio",
	Long:  "Runs an MCP server on stdin/stdout exposing index, search, call tracing, Cypher queries and status as tools. Logs go to stderr.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Update the graph whenever source files change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
	serveCmd.Flags().BoolVar(&flagServeWatch, "watch", false, "also update the graph on file changes")
	serveCmd.Flags().DurationVar(&flagDebounce, "debounce", 0, "quiet period before a watch update (default: config, then 500ms)")

	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 0, "quiet period before an update (default: config, then 500ms)")
	watchCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	rootCmd.AddCommand(serveCmd, watchCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	root, err := resolveRoot("")
	if err != nil {
		return err
	}
	e, err := openEnv(root)
	if err != nil {
		return err
	}
	defer e.Close()

	srv := tools.NewServer(e.store, e.engine, version)
	addr := metricsAddr(e)

	g, ctx := errgroup.WithContext(cmd.Context())
	if addr != "" {
		g.Go(func() error { return metrics.Serve(ctx, addr) })
	}
	if flagServeWatch {
		w := newWatcher(e, func(ctx context.Context) error {
			_, err := srv.Update(ctx, pipeline.Options{Jobs: e.cfg.EffectiveJobs()})
			return err
		})
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error {
		err := srv.MCPServer().Run(ctx, &mcp.StdioTransport{})
		if err != nil && ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		// The client closed stdin; stop the helpers too.
		return context.Canceled
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	root, err := resolveRoot("")
	if err != nil {
		return err
	}
	e, err := openEnv(root)
	if err != nil {
		return err
	}
	defer e.Close()

	update := func(ctx context.Context) error {
		report, err := e.engine.Run(ctx, pipeline.Options{Jobs: e.cfg.EffectiveJobs()})
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	if addr := metricsAddr(e); addr != "" {
		g.Go(func() error { return metrics.Serve(ctx, addr) })
	}
	g.Go(func() error {
		// Bring the graph up to date before waiting for changes.
		if err := update(ctx); err != nil {
			slog.Warn("watch.initial_update", "err", err)
		}
		return newWatcher(e, update).Run(ctx)
	})
	return g.Wait()
}

func newWatcher(e *env, update watcher.UpdateFunc) *watcher.Watcher {
	debounce := flagDebounce
	if debounce <= 0 {
		debounce = e.cfg.EffectiveDebounce()
	}
	langs, _ := e.cfg.EffectiveLanguages()
	opts := &discover.Options{Ignore: e.cfg.Ignore, Languages: langs}
	return watcher.New(e.root, opts, debounce, update)
}

func metricsAddr(e *env) string {
	if flagMetricsAddr != "" {
		return flagMetricsAddr
	}
	return e.cfg.MetricsAddr
}
