// Package ident provides validated, canonical wrapper types for filesystem
// paths, remote repository identifiers, and shard-id strings (spec §3/§4.A).
package ident

import (
	"fmt"
	"strings"
)

// ErrorKind enumerates the specific validation failure a caller hit, so
// error handling can switch on kind rather than parse message text.
type ErrorKind string

const (
	ErrMissingNamespace      ErrorKind = "missing_namespace"
	ErrMissingRepoName       ErrorKind = "missing_repo_name"
	ErrTooManySegments       ErrorKind = "too_many_segments"
	ErrInvalidCharacters     ErrorKind = "invalid_characters"
	ErrNamespaceLength       ErrorKind = "namespace_length"
	ErrRepoNameLength        ErrorKind = "repo_name_length"
	ErrLeadingHyphen         ErrorKind = "leading_hyphen"
	ErrTrailingHyphen        ErrorKind = "trailing_hyphen"
	ErrConsecutiveHyphens    ErrorKind = "consecutive_hyphens"
	ErrAllDigits             ErrorKind = "all_digits"
	ErrInvalidStart          ErrorKind = "invalid_start"
	ErrTrailingSeparator     ErrorKind = "trailing_separator"
	ErrInvalidHex            ErrorKind = "invalid_hex"
	ErrRevisionLength        ErrorKind = "revision_length"
	ErrPathTraversal         ErrorKind = "path_traversal"
	ErrDoubleSlash           ErrorKind = "double_slash"
	ErrSegmentLength         ErrorKind = "segment_length"
)

// IdentifierError is returned by every parse function in this package. It
// carries the offending input and, where applicable, the byte position of
// the invalid character so callers can report precise diagnostics.
type IdentifierError struct {
	Kind  ErrorKind
	Input string
	Pos   int // -1 when not applicable
	Msg   string
}

func (e *IdentifierError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s: %s (at position %d in %q)", e.Kind, e.Msg, e.Pos, e.Input)
	}
	return fmt.Sprintf("%s: %s (%q)", e.Kind, e.Msg, e.Input)
}

func newErr(kind ErrorKind, input, msg string, pos int) *IdentifierError {
	return &IdentifierError{Kind: kind, Input: input, Pos: pos, Msg: msg}
}

// ModelIdentifier is the triple (namespace, repo-name, optional revision)
// that names a remote model repository.
type ModelIdentifier struct {
	Namespace string
	RepoName  string
	Revision  string // empty when absent
}

// ParseModelIdentifier validates and parses a "namespace/repo-name[@sha]"
// string per spec §3.
func ParseModelIdentifier(s string) (*ModelIdentifier, error) {
	rest := s
	revision := ""
	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		revision = rest[at+1:]
		rest = rest[:at]
		if err := validateRevision(revision, s); err != nil {
			return nil, err
		}
	}

	segments := strings.Split(rest, "/")
	if len(segments) > 2 {
		return nil, newErr(ErrTooManySegments, s, "expected exactly one '/' separating namespace and repo-name", -1)
	}

	namespace := segments[0]
	if namespace == "" {
		return nil, newErr(ErrMissingNamespace, s, "namespace is empty", -1)
	}
	// Namespace shape is checked even when the repo-name segment is
	// altogether absent, so a bare "a" reports its namespace-length
	// problem rather than masking it behind a missing-repo-name error.
	if err := validateNamespace(namespace, s); err != nil {
		return nil, err
	}

	if len(segments) < 2 {
		return nil, newErr(ErrMissingRepoName, s, "missing repo-name segment", -1)
	}
	repoName := segments[1]
	if repoName == "" {
		return nil, newErr(ErrMissingRepoName, s, "repo-name is empty", -1)
	}
	if err := validateRepoName(repoName, s); err != nil {
		return nil, err
	}

	return &ModelIdentifier{Namespace: namespace, RepoName: repoName, Revision: revision}, nil
}

func validateNamespace(ns, original string) error {
	if len(ns) < 2 || len(ns) > 64 {
		return newErr(ErrNamespaceLength, original, "namespace must be 2-64 characters", -1)
	}
	for i, r := range ns {
		if !isAlnum(r) && r != '-' {
			return newErr(ErrInvalidCharacters, original, "namespace allows only alphanumerics and hyphens", i)
		}
	}
	if ns[0] == '-' {
		return newErr(ErrLeadingHyphen, original, "namespace must not start with a hyphen", 0)
	}
	if ns[len(ns)-1] == '-' {
		return newErr(ErrTrailingHyphen, original, "namespace must not end with a hyphen", len(ns)-1)
	}
	if strings.Contains(ns, "--") {
		return newErr(ErrConsecutiveHyphens, original, "namespace must not contain consecutive hyphens", strings.Index(ns, "--"))
	}
	if isAllDigits(ns) {
		return newErr(ErrAllDigits, original, "namespace must not be all digits", -1)
	}
	return nil
}

func validateRepoName(name, original string) error {
	if len(name) < 1 || len(name) > 96 {
		return newErr(ErrRepoNameLength, original, "repo-name must be 1-96 characters", -1)
	}
	if !isAlnum(rune(name[0])) {
		return newErr(ErrInvalidStart, original, "repo-name must start with an alphanumeric character", 0)
	}
	for i, r := range name {
		if !isAlnum(r) && r != '_' && r != '.' && r != '-' {
			return newErr(ErrInvalidCharacters, original, "repo-name allows only letters, digits, '_', '.', '-'", i)
		}
	}
	last := name[len(name)-1]
	if last == '_' || last == '.' || last == '-' {
		return newErr(ErrTrailingSeparator, original, "repo-name must not end with a separator character", len(name)-1)
	}
	return nil
}

func validateRevision(rev, original string) error {
	for i, r := range rev {
		if !isLowerHex(r) {
			return newErr(ErrInvalidHex, original, "revision must be lowercase hex", i)
		}
	}
	if len(rev) < 7 || len(rev) > 40 {
		return newErr(ErrRevisionLength, original, "revision must be 7-40 hex characters", -1)
	}
	return nil
}

// String renders the canonical printable form "namespace/repo-name[@sha]".
func (m *ModelIdentifier) String() string {
	if m.Revision == "" {
		return m.Namespace + "/" + m.RepoName
	}
	return m.Namespace + "/" + m.RepoName + "@" + m.Revision
}

// RepoRelativePath validates a path that is relative to a repository: no
// ".." or "." segments, no "//", each segment at most 255 bytes. Non-ASCII
// is permitted.
type RepoRelativePath struct {
	path string
}

// ParseRepoRelativePath validates p and wraps it.
func ParseRepoRelativePath(p string) (*RepoRelativePath, error) {
	if strings.Contains(p, "//") {
		return nil, newErr(ErrDoubleSlash, p, "path must not contain '//'", strings.Index(p, "//"))
	}
	segments := strings.Split(p, "/")
	for _, seg := range segments {
		if seg == ".." || seg == "." {
			return nil, newErr(ErrPathTraversal, p, "path must not contain '.' or '..' segments", -1)
		}
		if len(seg) > 255 {
			return nil, newErr(ErrSegmentLength, p, "path segment must be at most 255 bytes", -1)
		}
	}
	return &RepoRelativePath{path: p}, nil
}

func (r *RepoRelativePath) String() string { return r.path }

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLowerHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}
