package patch

import (
	"errors"
	"fmt"
)

// StreamError is a stream-fatal error: a corrupt header, an
// unterminated hunk, a count mismatch, bad base85, or an inflate failure.
// The whole session aborts when one occurs.
type StreamError struct {
	Line int // 1-based input line number, 0 if not applicable
	Err  error
}

func (e *StreamError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *StreamError) Unwrap() error { return e.Err }

func streamErrorf(line int, format string, args ...any) *StreamError {
	return &StreamError{Line: line, Err: fmt.Errorf(format, args...)}
}

// PatchError is a patch-fatal error: a preimage hash mismatch on
// a binary patch, or no fragment could be located and --reject was not set.
// The session aborts unless the caller has arranged to treat it as a
// recoverable per-patch failure (never true for PatchError itself, which is
// reserved for failures --reject cannot localize).
type PatchError struct {
	OldName string
	NewName string
	Err     error
}

func (e *PatchError) Error() string {
	name := e.NewName
	if name == "" {
		name = e.OldName
	}
	return fmt.Sprintf("patch %s: %s", name, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

func patchErrorf(p *Patch, format string, args ...any) *PatchError {
	return &PatchError{OldName: p.OldName, NewName: p.NewName, Err: fmt.Errorf(format, args...)}
}

// Sentinel errors matched with errors.Is, naming specific failure conditions
// by kind rather than forcing callers to string-match error text.
var (
	// ErrMalformedHeader is returned when a header cannot be parsed: a "@@ -"
	// appears outside any header, "---" lacks a following "+++", both
	// filenames are absent with no diff --git default, or an index line
	// declares invalid hex.
	ErrMalformedHeader = errors.New("malformed patch header")

	// ErrIrreversibleBinary is returned when -R is requested against a
	// binary fragment with no reverse hunk.
	ErrIrreversibleBinary = errors.New("irreversible binary patch: no reverse hunk")

	// ErrPreimageMismatch is returned when a binary patch's preimage does
	// not hash to old_sha1_prefix, or its postimage does not hash to
	// new_sha1_prefix.
	ErrPreimageMismatch = errors.New("preimage does not match expected hash")

	// ErrPathConflict is returned when a patch would create a path that
	// already exists and is not the permitted WAS_DELETED/TO_BE_DELETED
	// sentinel state.
	ErrPathConflict = errors.New("path conflict: file exists")

	// ErrIndexMissing is returned when --index is set but the target path
	// has no index entry.
	ErrIndexMissing = errors.New("no index entry for path")

	// ErrWhitespaceViolation is returned at session end when policy is
	// "error" and at least one violation accumulated.
	ErrWhitespaceViolation = errors.New("whitespace violations detected")
)
