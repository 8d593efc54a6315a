package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/cypher"
	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/metrics"
	"github.com/DeusData/codegraph/internal/query"
)

var flagFiles bool

var queryCmd = &cobra.Command{
	Use:     "query <cypher>",
	Short:   "Run a read-only Cypher query",
	Long:    "Labels are symbol kinds (Function, Method, Class, Struct, Interface, Enum, Variable, Module) and relationship types are edge kinds (CALLS, INHERITS, IMPLEMENTS, REFERENCES, CONTAINS).",
	Example: `  codegraph query "MATCH (f:Function)-[:CALLS]->(g) WHERE f.name = 'main' RETURN g.qualified_name"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runQuery,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is indexed",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&flagFiles, "files", false, "list every indexed file")
	rootCmd.AddCommand(queryCmd, statusCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	e, err := openQueryEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	exec := &cypher.Executor{Store: e.store}
	res, err := exec.Execute(strings.Join(args, " "))
	metrics.RecordQuery("cypher", err)
	if err != nil {
		return err
	}
	if flagFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	rows := make([][]string, len(res.Rows))
	for i, r := range res.Rows {
		row := make([]string, len(res.Columns))
		for j, c := range res.Columns {
			row[j] = fmt.Sprint(r[c])
		}
		rows[i] = row
	}
	return writeTable(cmd.OutOrStdout(), res.Columns, rows)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	e, err := openQueryEnv()
	if ni := (*notIndexedError)(nil); errors.As(err, &ni) {
		if flagFormat == "json" {
			return writeJSON(w, &query.StatusInfo{Confidence: map[graph.Confidence]int{}})
		}
		fmt.Fprintf(w, "not indexed (database %s)\n", ni.db)
		return nil
	}
	if err != nil {
		return err
	}
	defer e.Close()

	info, err := query.Status(cmd.Context(), e.store, flagFiles)
	if err != nil {
		return err
	}
	if flagFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), info)
	}

	if !info.Indexed {
		fmt.Fprintf(w, "not indexed (database %s)\n", e.cfg.EffectiveDBPath(e.root))
		return nil
	}
	commit := info.Commit
	if commit == "" {
		commit = "(no git)"
	}
	fmt.Fprintf(w, "database:   %s\n", e.cfg.EffectiveDBPath(e.root))
	fmt.Fprintf(w, "commit:     %s\n", commit)
	fmt.Fprintf(w, "schema:     v%d\n", info.SchemaVersion)
	fmt.Fprintf(w, "generation: %d\n", info.Generation)
	fmt.Fprintf(w, "indexed at: %s\n", info.IndexedAt)
	if len(info.Languages) > 0 {
		fmt.Fprintf(w, "languages:  %s\n", strings.Join(info.Languages, ", "))
	}
	fmt.Fprintf(w, "files: %d  symbols: %d  edges: %d\n", info.Files, info.Symbols, info.Edges)
	fmt.Fprintf(w, "calls and references: %d resolved, %d ambiguous, %d unresolved\n\n",
		info.Confidence["resolved"], info.Confidence["ambiguous"], info.Confidence["unresolved"])

	rows := make([][]string, len(info.ByLanguage))
	for i, l := range info.ByLanguage {
		rows[i] = []string{l.Language, fmt.Sprint(l.Files), fmt.Sprint(l.Lines), fmt.Sprint(l.Symbols)}
	}
	if err := writeTable(w, []string{"LANGUAGE", "FILES", "LINES", "SYMBOLS"}, rows); err != nil {
		return err
	}

	if flagFiles {
		fmt.Fprintln(w)
		rows = make([][]string, len(info.FileList))
		for i, f := range info.FileList {
			rows[i] = []string{f.Path, f.Language, fmt.Sprint(f.Lines)}
		}
		return writeTable(w, []string{"PATH", "LANGUAGE", "LINES"}, rows)
	}
	return nil
}
