// Package diag defines the error taxonomy shared by the indexing engine.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	UnsupportedLanguage    Kind = "UnsupportedLanguage"
	ParseFailure           Kind = "ParseFailure"
	ResolutionAmbiguous    Kind = "ResolutionAmbiguous"
	DiffUnavailable        Kind = "DiffUnavailable"
	StoreCommitFailure     Kind = "StoreCommitFailure"
	StoreConnectionFailure Kind = "StoreConnectionFailure"
)

// Fatal reports whether a failure of this kind aborts the run.
func (k Kind) Fatal() bool {
	return k == StoreCommitFailure || k == StoreConnectionFailure
}

// Error is a structured diagnostic: kind, affected file or commit, cause.
type Error struct {
	Kind   Kind
	Path   string
	Commit string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Commit != "" {
		fmt.Fprintf(&b, " commit=%s", e.Commit)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a diagnostic of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf builds a diagnostic with a formatted cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithPath returns a copy of e annotated with a file path.
func (e *Error) WithPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}

// WithCommit returns a copy of e annotated with a commit reference.
func (e *Error) WithCommit(commit string) *Error {
	c := *e
	c.Commit = commit
	return &c
}

// KindOf returns the kind of the first diagnostic in err's chain, or "".
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Is reports whether err carries a diagnostic of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
