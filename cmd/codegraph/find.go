package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/query"
	"github.com/DeusData/codegraph/internal/store"
)

var (
	flagKind      string
	flagLanguage  string
	flagLimit     int
	flagDirection string
	flagDepth     int
)

var findCmd = &cobra.Command{
	Use:   "find <pattern>",
	Short: "Find symbols by name glob",
	Long:  "Matches symbol names against a case-sensitive glob: * matches any run of characters, ? exactly one. A pattern containing a dot matches qualified names instead.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFind,
}

var callsCmd = &cobra.Command{
	Use:   "calls <symbol>",
	Short: "Show the call graph around a symbol",
	Long:  "Walks resolved calls breadth-first. The symbol may be an ID, a qualified name, a simple name, or path:name. Each reached symbol is printed once, at its shallowest depth.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalls,
}

func init() {
	findCmd.Flags().StringVarP(&flagKind, "kind", "k", "", "symbol kind filter (function, method, class, struct, interface, enum, variable, module)")
	findCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "language filter (e.g. go, py)")
	findCmd.Flags().IntVarP(&flagLimit, "limit", "n", query.DefaultLimit, "max results, 0 for all")

	callsCmd.Flags().StringVarP(&flagDirection, "direction", "d", "callees", "callers, callees or both")
	callsCmd.Flags().IntVarP(&flagDepth, "depth", "D", query.DefaultDepth, "max depth")

	rootCmd.AddCommand(findCmd, callsCmd)
}

func runFind(cmd *cobra.Command, args []string) error {
	opts := query.FindOptions{Pattern: args[0], Limit: flagLimit}
	if flagKind != "" {
		k, ok := graph.ParseKind(flagKind)
		if !ok {
			return fmt.Errorf("unknown kind %q", flagKind)
		}
		opts.Kinds = []graph.Kind{k}
	}
	if flagLanguage != "" {
		known, unknown := lang.ParseLanguages(flagLanguage)
		if len(unknown) > 0 {
			return fmt.Errorf("unknown language %q", flagLanguage)
		}
		opts.Languages = known
	}

	e, err := openQueryEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	syms, err := query.FindSymbols(cmd.Context(), e.store, opts)
	if err != nil {
		return err
	}
	if flagFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), symbolRows(syms))
	}
	w := cmd.OutOrStdout()
	for _, s := range syms {
		printSymbol(w, s, "")
	}
	if len(syms) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "no symbols match %q\n", opts.Pattern)
	}
	return nil
}

func runCalls(cmd *cobra.Command, args []string) error {
	dir, err := query.ParseDirection(flagDirection)
	if err != nil {
		return err
	}

	e, err := openQueryEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	root, err := query.ResolveSymbol(cmd.Context(), e.store, args[0])
	if err != nil {
		var amb *query.AmbiguousError
		if errors.As(err, &amb) {
			w := cmd.ErrOrStderr()
			fmt.Fprintf(w, "%q matches %d symbols; pass an ID or path:name:\n", amb.Arg, len(amb.Candidates))
			for _, c := range amb.Candidates {
				printSymbol(w, c, "  ")
			}
		}
		return err
	}

	hops, err := query.CallGraph(cmd.Context(), e.store, root.ID, dir, flagDepth)
	if err != nil {
		return err
	}
	if flagFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"root":      symbolRow(root),
			"direction": dir,
			"hops":      hopRows(hops),
		})
	}

	w := cmd.OutOrStdout()
	printSymbol(w, root, "")
	for _, h := range hops {
		printSymbol(w, h.Symbol, strings.Repeat("  ", h.Depth)+fmt.Sprintf("[%d] ", h.Depth))
	}
	return nil
}

// notIndexedError reports a repository without a graph database.
type notIndexedError struct {
	db string
}

func (e *notIndexedError) Error() string {
	return fmt.Sprintf("not indexed (database %s): run codegraph index first", e.db)
}

// openQueryEnv opens the store of the repository of -C read-only. Nothing
// is created on disk when the repository was never indexed.
func openQueryEnv() (*env, error) {
	root, err := resolveRoot("")
	if err != nil {
		return nil, err
	}
	cfg := loadConfig(root)
	dbPath := cfg.EffectiveDBPath(root)
	s, err := store.OpenReadOnly(dbPath)
	if errors.Is(err, store.ErrNoDatabase) {
		return nil, &notIndexedError{db: dbPath}
	}
	if err != nil {
		return nil, err
	}
	return &env{root: root, cfg: cfg, store: s}, nil
}

func printSymbol(w io.Writer, s *graph.Symbol, prefix string) {
	fmt.Fprintf(w, "%s%s:%d\t%s\t%s\n", prefix, s.Path, s.Span.StartLine, s.Kind, s.QualifiedName)
}
