// Package patch implements a unified-diff patch engine: parsing a stream of
// unified-diff text (with optional Git extended headers and binary hunks)
// into structured Patch records, and applying each record against a target
// preimage to produce a postimage.
package patch

import "fmt"

// Tri is a three-state flag: unknown, no, or yes. Used for Patch.IsNew and
// Patch.IsDelete, which start unresolved until the header or preimage lookup
// settles them.
type Tri int

const (
	// Unknown means the flag has not yet been resolved.
	Unknown Tri = iota
	// No is the resolved-false state.
	No
	// Yes is the resolved-true state.
	Yes
)

// String renders the Tri value for diagnostics.
func (t Tri) String() string {
	switch t {
	case No:
		return "no"
	case Yes:
		return "yes"
	default:
		return "unknown"
	}
}

// BinaryMethod identifies how a binary hunk's payload reconstructs its
// postimage.
type BinaryMethod int

const (
	// BinaryNone marks a fragment with no binary payload (a text fragment).
	BinaryNone BinaryMethod = iota
	// BinaryLiteral means the payload is the full postimage, deflated.
	BinaryLiteral
	// BinaryDelta means the payload is a Git pack-style delta against the
	// preimage, deflated.
	BinaryDelta
)

// LineFlag holds per-Line bit flags.
type LineFlag uint8

const (
	// LineCommon marks a context line (present in both pre- and postimage).
	LineCommon LineFlag = 1 << iota
	// LineNoEOL marks a line with no trailing LF (the "\ No newline at end
	// of file" marker applies to it).
	LineNoEOL
)

// Line is one LF-terminated (or EOF-terminated) span of an Image's buffer.
type Line struct {
	// Len is the number of bytes in the line, including its trailing LF
	// unless it is the final line and LineNoEOL is set.
	Len int
	// Hash is the 24-bit whitespace-insensitive hash of the line's non-
	// whitespace bytes (see HashLine).
	Hash uint32
	// Flags holds LineCommon/LineNoEOL.
	Flags LineFlag
}

// IsCommon reports whether the line is marked as unchanged context.
func (l Line) IsCommon() bool { return l.Flags&LineCommon != 0 }

// NoEOL reports whether the line lacks a trailing LF.
func (l Line) NoEOL() bool { return l.Flags&LineNoEOL != 0 }

// FragmentLineOp classifies one raw body line of a fragment.
type FragmentLineOp int

const (
	// OpContext is an unchanged (' ') line.
	OpContext FragmentLineOp = iota
	// OpDelete is a '-' line (preimage only).
	OpDelete
	// OpAdd is a '+' line (postimage only).
	OpAdd
)

// FragmentLine is one line of a text fragment's body, still carrying its
// leading marker byte's meaning and its content bytes (without the marker,
// with the trailing LF if present).
type FragmentLine struct {
	Op      FragmentLineOp
	Content []byte
	NoEOL   bool
}

// Fragment is one "@@ ... @@" hunk.
type Fragment struct {
	OldPos   int // 1-based
	OldLines int
	NewPos   int // 1-based
	NewLines int

	// Leading and Trailing count unchanged context lines at the start and
	// end of the fragment body, used by the matcher's context-floor shrink.
	Leading  int
	Trailing int

	// Lines is the parsed body for a text fragment. Empty for binary
	// fragments.
	Lines []FragmentLine

	// Raw holds the fragment's header + body bytes verbatim, used to
	// reproduce it byte-for-byte in a .rej file.
	Raw []byte

	// Rejected is set when the fragment could not be located in its target
	// image.
	Rejected bool

	// Next chains to another fragment belonging to the same Patch.
	// Patch.Fragments is the normal way to iterate; Next exists for parity
	// with the legacy singly-linked layout.
	Next *FragmentID

	// Binary method and original (inflated) length, set only when this
	// fragment came from a "GIT binary patch" block.
	Method       BinaryMethod
	OrigLen      int
	BinaryData   []byte // decoded (post-base85, post-inflate) delta/literal
	HasReverse   bool
	RevMethod    BinaryMethod
	RevOrigLen   int
	RevBinary    []byte
}

// FragmentID is an opaque handle into a Session's fragment arena.
type FragmentID int

// PatchID is an opaque handle into a Session's patch arena.
type PatchID int

// Patch is one logical file change.
type Patch struct {
	OldName string
	NewName string
	// DefName is the name derived from the "diff --git" header, used as a
	// fallback when neither side gives an unambiguous name.
	DefName string

	OldMode uint32
	NewMode uint32

	IsNew    Tri
	IsDelete Tri
	IsRename bool
	IsCopy   bool
	IsBinary bool
	// IsTopLevelRelative marks a path that should not have leading
	// components stripped by PValue (rooted at the repository top).
	IsTopLevelRelative bool
	InaccurateEOF      bool
	Recount            bool

	// Score is the 0-100 rename/copy similarity index.
	Score int

	// WSRule is the whitespace policy bitmask resolved for this patch's
	// destination path.
	WSRule WSRule

	OldSHA1Prefix string
	NewSHA1Prefix string

	Fragments []FragmentID

	Result []byte

	Next *PatchID

	// Rejected is true when any fragment in Fragments rejected.
	Rejected bool
}

// FileTableEntry is the value type stored in a Session's FileTable.
type FileTableEntry struct {
	Patch PatchID
	// Was and ToBe distinguish sentinel states from a live patch reference.
	// Exactly one of (Patch is valid) / Was / ToBe holds at a time.
	Was bool
	ToBe bool
}

// WasDeleted and ToBeDeleted construct the two FileTable sentinels.
func WasDeleted() FileTableEntry  { return FileTableEntry{Was: true} }
func ToBeDeleted() FileTableEntry { return FileTableEntry{ToBe: true} }

// IsSentinel reports whether the entry is a sentinel rather than a patch
// reference.
func (e FileTableEntry) IsSentinel() bool { return e.Was || e.ToBe }

// String is a debug rendering.
func (e FileTableEntry) String() string {
	switch {
	case e.Was:
		return "WAS_DELETED"
	case e.ToBe:
		return "TO_BE_DELETED"
	default:
		return fmt.Sprintf("patch#%d", e.Patch)
	}
}
