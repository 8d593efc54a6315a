package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codegraph/internal/diag"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/pipeline"
)

func (s *Server) handleIndexRepository(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	opts := pipeline.Options{
		Full:   getBoolArg(args, "full"),
		DryRun: getBoolArg(args, "dry_run"),
		Since:  getStringArg(args, "since"),
	}
	if names := getStringsArg(args, "languages"); len(names) > 0 {
		known, unknown := lang.ParseLanguages(strings.Join(names, ","))
		if len(unknown) > 0 {
			return errResult(fmt.Sprintf("unknown languages: %s", strings.Join(unknown, ", "))), nil
		}
		opts.Languages = known
	}

	report, err := s.Update(ctx, opts)
	if err != nil {
		return errResult(fmt.Sprintf("indexing failed (%s): %v", report.State, err)), nil
	}
	return jsonResult(buildReport(report)), nil
}

func buildReport(r *pipeline.Report) map[string]any {
	out := map[string]any{
		"run_id":     r.RunID,
		"state":      r.State,
		"mode":       r.Mode,
		"dry_run":    r.DryRun,
		"commit":     r.Commit,
		"generation": r.Generation,
		"files":      r.Files,
		"delta":      r.Delta,
		"resolution": r.Resolution,
		"elapsed_ms": r.Duration.Milliseconds(),
	}
	if r.FallbackReason != "" {
		out["fallback_reason"] = r.FallbackReason
	}
	if r.BaseCommit != "" {
		out["base_commit"] = r.BaseCommit
	}
	if len(r.Warnings) > 0 {
		out["warnings"] = diagList(r.Warnings)
	}
	if len(r.Ambiguities) > 0 {
		out["ambiguities"] = diagList(r.Ambiguities)
	}
	return out
}

func diagList(errs []*diag.Error) []map[string]string {
	out := make([]map[string]string, len(errs))
	for i, e := range errs {
		m := map[string]string{"kind": string(e.Kind)}
		if e.Path != "" {
			m["path"] = e.Path
		}
		if e.Commit != "" {
			m["commit"] = e.Commit
		}
		if e.Err != nil {
			m["message"] = e.Err.Error()
		}
		out[i] = m
	}
	return out
}
