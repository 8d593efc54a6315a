// Package gitdiff wraps the git commands the update engine needs: HEAD,
// ancestry, the working-tree file list and rename-aware name-status diffs.
package gitdiff

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrGitNotFound is returned when no git binary is on PATH.
var ErrGitNotFound = errors.New("git not found in PATH")

// Timeout bounds every git invocation.
var Timeout = 30 * time.Second

// Status is the first letter of a name-status line.
type Status string

const (
	Added    Status = "A"
	Modified Status = "M"
	Deleted  Status = "D"
	Renamed  Status = "R"
	Copied   Status = "C"
	TypeChg  Status = "T"
)

// ChangedFile represents a file with a status from git diff --name-status.
type ChangedFile struct {
	Status  Status
	Path    string
	OldPath string // non-empty only for renames and copies
}

// Repo runs git commands in one working tree.
type Repo struct {
	Dir string
}

// Open returns a Repo for dir if git is installed and dir is inside a
// working tree.
func Open(ctx context.Context, dir string) (*Repo, error) {
	r := &Repo{Dir: dir}
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) != "true" {
		return nil, fmt.Errorf("%s: not a git working tree", dir)
	}
	return r, nil
}

// HEAD returns the full commit hash HEAD points at.
func (r *Repo) HEAD(ctx context.Context) (string, error) {
	return r.ResolveRef(ctx, "HEAD")
}

// ResolveRef resolves a ref, tag or abbreviated hash to a full commit hash.
func (r *Repo) ResolveRef(ctx context.Context, ref string) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", ref, err)
	}
	return strings.TrimSpace(out), nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (r *Repo) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	_, err := r.run(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("merge-base %s %s: %w", ancestor, descendant, err)
}

// ListFiles returns tracked and untracked-but-not-ignored files, slash
// separated and relative to the repository root.
func (r *Repo) ListFiles(ctx context.Context) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	out, err := r.run(ctx, "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	seen := make(map[string]bool)
	var paths []string
	for _, p := range strings.Split(out, "\x00") {
		// A file deleted from the working tree but still in the index is
		// listed as cached; callers stat it.
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths, nil
}

// DiffNameStatus lists changes between commit and the working tree, with
// rename detection.
func (r *Repo) DiffNameStatus(ctx context.Context, commit string) ([]ChangedFile, error) {
	out, err := r.run(ctx, "diff", "--name-status", "-M", "--no-color", commit, "--")
	if err != nil {
		return nil, fmt.Errorf("git diff %s: %w", commit, err)
	}
	return ParseNameStatusOutput(out), nil
}

// ParseNameStatusOutput parses the raw output of git diff --name-status.
func ParseNameStatusOutput(output string) []ChangedFile {
	var files []ChangedFile
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		status := Status(parts[0][:1])
		cf := ChangedFile{Status: status, Path: parts[1]}

		// Renames and copies: R100\told\tnew
		if status == Renamed || status == Copied {
			if len(parts) < 3 {
				continue
			}
			cf.OldPath = parts[1]
			cf.Path = parts[2]
		}
		files = append(files, cf)
	}
	return files
}

// run executes a git command and returns stdout.
func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return "", ErrGitNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, gitPath, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Debug("git.exit", "args", args, "err", err, "stderr", strings.TrimSpace(stderr.String()))
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return "", fmt.Errorf("git %s: %s: %w", args[0], msg, err)
			}
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}
