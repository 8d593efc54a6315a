package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/query"
)

func validateFormat(f string) error {
	switch f {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("invalid --format %q: must be text or json", f)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

type symbolJSON struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Path          string `json:"path"`
	Language      string `json:"language"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
}

func symbolRow(s *graph.Symbol) symbolJSON {
	return symbolJSON{
		ID:            s.ID,
		Kind:          string(s.Kind),
		Name:          s.Name,
		QualifiedName: s.QualifiedName,
		Path:          s.Path,
		Language:      s.Language,
		StartLine:     s.Span.StartLine,
		EndLine:       s.Span.EndLine,
	}
}

func symbolRows(syms []*graph.Symbol) []symbolJSON {
	out := make([]symbolJSON, len(syms))
	for i, s := range syms {
		out[i] = symbolRow(s)
	}
	return out
}

type hopJSON struct {
	symbolJSON
	Depth int `json:"depth"`
}

func hopRows(hops []query.Hop) []hopJSON {
	out := make([]hopJSON, len(hops))
	for i, h := range hops {
		out[i] = hopJSON{symbolJSON: symbolRow(h.Symbol), Depth: h.Depth}
	}
	return out
}
