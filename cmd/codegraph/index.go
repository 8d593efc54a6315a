package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/pipeline"
)

var (
	flagLanguages string
	flagJobs      int
	flagDryRun    bool
	flagSince     string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the graph of a repository from scratch",
	Long:  "Parses every source file, resolves references and replaces the stored graph. Unchanged symbols keep their IDs.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Apply the changes since the last indexed commit",
	Long:  "Re-parses only added, modified and renamed files, re-resolves the edges that may have moved, and commits the minimal delta. Falls back to a full build when no usable diff base exists.",
	Args:  cobra.NoArgs,
	RunE:  runUpdate,
}

func init() {
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. go,python)")
	indexCmd.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "parallel workers (default: config, then NumCPU)")

	updateCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "report the delta without writing it")
	updateCmd.Flags().StringVar(&flagSince, "since", "", "diff against this git ref instead of the indexed commit")
	updateCmd.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "parallel workers (default: config, then NumCPU)")

	rootCmd.AddCommand(indexCmd, updateCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	root, err := resolveRoot(arg)
	if err != nil {
		return err
	}
	e, err := openEnv(root)
	if err != nil {
		return err
	}
	defer e.Close()

	opts := pipeline.Options{Full: true, Jobs: jobs(e)}
	spec := flagLanguages
	if spec == "" && len(e.cfg.Languages) > 0 {
		spec = strings.Join(e.cfg.Languages, ",")
	}
	if spec != "" {
		known, unknown := lang.ParseLanguages(spec)
		if len(unknown) > 0 {
			return fmt.Errorf("unknown languages: %s", strings.Join(unknown, ", "))
		}
		opts.Languages = known
	}
	return runEngine(cmd, e, opts)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	root, err := resolveRoot("")
	if err != nil {
		return err
	}
	e, err := openEnv(root)
	if err != nil {
		return err
	}
	defer e.Close()

	return runEngine(cmd, e, pipeline.Options{DryRun: flagDryRun, Since: flagSince, Jobs: jobs(e)})
}

func jobs(e *env) int {
	if flagJobs > 0 {
		return flagJobs
	}
	return e.cfg.EffectiveJobs()
}

func runEngine(cmd *cobra.Command, e *env, opts pipeline.Options) error {
	report, err := e.engine.Run(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("run %s aborted: %w", report.RunID, err)
	}
	if flagFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, r *pipeline.Report) {
	verb := "committed"
	if r.DryRun {
		verb = "dry run, nothing written"
	}
	fmt.Fprintf(w, "%s build, %s (generation %d) in %s\n", r.Mode, verb, r.Generation, r.Duration.Round(time.Millisecond))
	if r.FallbackReason != "" {
		fmt.Fprintf(w, "  full rebuild: %s\n", r.FallbackReason)
	}
	if r.Commit != "" {
		fmt.Fprintf(w, "  commit:  %s", shortSHA(r.Commit))
		if r.BaseCommit != "" {
			fmt.Fprintf(w, " (since %s)", shortSHA(r.BaseCommit))
		}
		fmt.Fprintln(w)
	}
	f := r.Files
	fmt.Fprintf(w, "  files:   %d added, %d modified, %d deleted, %d renamed, %d unchanged\n",
		f.Added, f.Modified, f.Deleted, f.Renamed, f.Unchanged)
	d := r.Delta
	fmt.Fprintf(w, "  symbols: +%d ~%d -%d\n", d.NodesAdded, d.NodesUpdated, d.NodesRemoved)
	fmt.Fprintf(w, "  edges:   +%d ~%d -%d\n", d.EdgesAdded, d.EdgesUpdated, d.EdgesRemoved)
	res := r.Resolution
	fmt.Fprintf(w, "  resolution: %d resolved, %d ambiguous, %d unresolved\n", res.Resolved, res.Ambiguous, res.Unresolved)

	for _, a := range r.Ambiguities {
		fmt.Fprintf(w, "  ambiguous: %s\n", a)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
