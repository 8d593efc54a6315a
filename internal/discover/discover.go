package discover

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/DeusData/codegraph/internal/lang"
)

// IgnoreFileName is the repo-local ignore file, in .gitignore syntax.
const IgnoreFileName = ".codegraphignore"

// defaultIgnoreDirs are directory names to skip during discovery.
var defaultIgnoreDirs = map[string]bool{
	".cache": true, ".codegraph": true, ".eggs": true, ".git": true,
	".gradle": true, ".hg": true, ".idea": true, ".mypy_cache": true,
	".nox": true, ".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".pytest_cache": true, ".ruff_cache": true, ".svn": true, ".tox": true,
	".venv": true, ".vs": true, ".vscode": true, ".yarn": true,
	"__pycache__": true, "bower_components": true, "build": true,
	"coverage": true, "dist": true, "htmlcov": true, "node_modules": true,
	"site-packages": true, "target": true, "vendor": true, "venv": true,
}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // slash-separated, relative to repo root
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	// Ignore holds extra .gitignore-style lines, e.g. from config.
	Ignore []string
	// Languages restricts discovery. Empty means every supported language.
	Languages []lang.Language
}

// Matcher decides which repo-relative paths are excluded.
type Matcher struct {
	rules []*ignore.GitIgnore
	langs []lang.Language
}

// NewMatcher loads .gitignore and .codegraphignore from root and adds the
// extra patterns in opts.
func NewMatcher(root string, opts *Options) *Matcher {
	m := &Matcher{}
	for _, name := range []string{".gitignore", IgnoreFileName} {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, name)); err == nil {
			m.rules = append(m.rules, gi)
		}
	}
	if opts != nil {
		if len(opts.Ignore) > 0 {
			m.rules = append(m.rules, ignore.CompileIgnoreLines(opts.Ignore...))
		}
		m.langs = opts.Languages
	}
	return m
}

// IgnoredDir reports whether a directory should be skipped entirely.
func (m *Matcher) IgnoredDir(rel string) bool {
	if defaultIgnoreDirs[path.Base(rel)] {
		return true
	}
	return m.matches(rel + "/")
}

// Ignored reports whether a file is excluded by a default directory or an
// ignore rule.
func (m *Matcher) Ignored(rel string) bool {
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if defaultIgnoreDirs[path.Base(dir)] {
			return true
		}
	}
	return m.matches(rel)
}

func (m *Matcher) matches(rel string) bool {
	for _, gi := range m.rules {
		if gi.MatchesPath(rel) {
			return true
		}
	}
	return false
}

// Classify returns the language of rel, or false if it is unsupported or
// filtered out.
func (m *Matcher) Classify(rel string) (lang.Language, bool) {
	l, ok := lang.LanguageForExtension(filepath.Ext(rel))
	if !ok {
		return "", false
	}
	if len(m.langs) > 0 && !slices.Contains(m.langs, l) {
		return "", false
	}
	return l, true
}

// Filter applies ignore rules and the language filter to a list of
// repo-relative paths, such as git ls-files output.
func Filter(root string, rels []string, opts *Options) []FileInfo {
	m := NewMatcher(root, opts)
	var files []FileInfo
	for _, rel := range rels {
		rel = filepath.ToSlash(rel)
		if m.Ignored(rel) {
			continue
		}
		l, ok := m.Classify(rel)
		if !ok {
			continue
		}
		files = append(files, FileInfo{
			Path:     filepath.Join(root, filepath.FromSlash(rel)),
			RelPath:  rel,
			Language: l,
		})
	}
	return files
}

// Discover walks a repository and returns all source files.
func Discover(ctx context.Context, repoPath string, opts *Options) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	// Check cancellation before starting walk
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := NewMatcher(repoPath, opts)
	var files []FileInfo

	err = filepath.WalkDir(repoPath, func(p string, d os.DirEntry, walkErr error) error {
		// Check context cancellation periodically during walk
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(repoPath, p)
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if m.IgnoredDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasSuffix(rel, "~") || m.matches(rel) {
			return nil
		}

		l, ok := m.Classify(rel)
		if ok {
			files = append(files, FileInfo{
				Path:     p,
				RelPath:  rel,
				Language: l,
			})
		}
		return nil
	})

	return files, err
}
