package patch

import (
	"bytes"
	"fmt"
	"io"
)

// ApplyFlags carries the per-run CLI policy that affects fragment
// application.
type ApplyFlags struct {
	Reverse       bool
	NoAdd         bool
	ContextFloor  int
	UnidiffZero   bool
	WSCorrect     bool
	UnidiffRule   WSRule
	InaccurateEOF bool
}

// ApplyFragment locates f within target and splices in its postimage,
// shrinking context from whichever end is larger when the full-context
// match fails, down to flags.ContextFloor. The first attempt anchors the
// fragment at the image's start when it is all context or begins at old
// line 1 or earlier, and at the image's end when it is all context or,
// outside UnidiffZero, has no trailing context; a failed anchored attempt
// is retried once without anchors.
//
// On success it returns a warning string (non-empty when context was
// reduced to match) and leaves f.Rejected false. On failure it sets
// f.Rejected and returns an empty warning and a nil error: rejection is
// fragment-local, not a Go error, so the pipeline can decide
// whether --reject permits continuing.
func ApplyFragment(target *Image, f *Fragment, flags ApplyFlags) (warning string, err error) {
	if f.Method != BinaryNone {
		return "", fmt.Errorf("patch: ApplyFragment called on a binary fragment")
	}

	matchBeginning := f.Leading == len(f.Lines) || f.OldPos <= 1
	matchEnd := f.Trailing == len(f.Lines) || (f.Trailing == 0 && !flags.UnidiffZero)

	shrinkLead, shrinkTrail := 0, 0
	clearedAnchors := false

	for {
		curLeading := f.Leading - shrinkLead
		curTrailing := f.Trailing - shrinkTrail
		if curLeading < 0 {
			curLeading = 0
		}
		if curTrailing < 0 {
			curTrailing = 0
		}

		body := f.Lines[shrinkLead : len(f.Lines)-shrinkTrail]
		preLines, postLines, pairs := replayBody(body, flags.Reverse, flags.NoAdd)
		preBuf := joinLines(preLines)
		postBuf := joinLines(postLines)
		preImg := NewImage(preBuf)

		startLine := f.NewPos - 1 + shrinkLead
		wantBeginning := matchBeginning && shrinkLead == 0 && !clearedAnchors
		wantEnd := matchEnd && shrinkTrail == 0 && !clearedAnchors

		res, ok := Locate(target, preImg, startLine, MatchFlags{
			MatchBeginning: wantBeginning,
			MatchEnd:       wantEnd,
			WSCorrect:      flags.WSCorrect,
		}, flags.UnidiffRule)

		if !ok && (wantBeginning || wantEnd) && !clearedAnchors {
			clearedAnchors = true
			continue
		}

		if ok {
			if res.Corrected != nil {
				applyCorrectedContext(postLines, pairs, res.Corrected)
				postBuf = joinLines(postLines)
			}

			atEOF := res.Pos+len(preImg.Lines) == len(target.Lines)
			if res.Corrected != nil && atEOF {
				postBuf = stripIntroducedTrailingBlanks(postBuf)
			}

			if err := target.UpdateImage(res.Pos, len(preImg.Lines), postBuf); err != nil {
				return "", err
			}

			if shrinkLead > 0 || shrinkTrail > 0 {
				return fmt.Sprintf("fragment matched with reduced context (-%d/-%d lines)", shrinkLead, shrinkTrail), nil
			}
			return "", nil
		}

		if curLeading <= flags.ContextFloor && curTrailing <= flags.ContextFloor {
			f.Rejected = true
			return "", nil
		}

		clearedAnchors = false
		switch {
		case curLeading == curTrailing:
			if curLeading > flags.ContextFloor {
				shrinkLead++
				shrinkTrail++
			}
		case curLeading > curTrailing:
			shrinkLead++
		default:
			shrinkTrail++
		}
	}
}

// replayBody builds the preimage and postimage line lists for a (possibly
// context-shrunk) run of fragment body lines, honoring reverse (swap
// add/delete roles) and noAdd (drop + lines entirely). It also returns the
// index pairs (preIdx, postIdx) of lines that are common context in both,
// the correspondence ApplyFragment needs to propagate whitespace-corrected
// bytes from the preimage into the postimage.
func replayBody(body []FragmentLine, reverse, noAdd bool) (preLines, postLines [][]byte, pairs [][2]int) {
	preOp, postOp := OpDelete, OpAdd
	if reverse {
		preOp, postOp = OpAdd, OpDelete
	}

	for _, l := range body {
		switch {
		case l.Op == OpContext:
			pairs = append(pairs, [2]int{len(preLines), len(postLines)})
			preLines = append(preLines, l.Content)
			postLines = append(postLines, l.Content)
		case l.Op == preOp:
			preLines = append(preLines, l.Content)
		case l.Op == postOp:
			if noAdd && postOp == OpAdd {
				continue
			}
			postLines = append(postLines, l.Content)
		}
	}
	return preLines, postLines, pairs
}

func joinLines(lines [][]byte) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.Write(l)
	}
	return buf.Bytes()
}

func applyCorrectedContext(postLines [][]byte, pairs [][2]int, corrected [][]byte) {
	for _, pr := range pairs {
		preIdx, postIdx := pr[0], pr[1]
		if preIdx < len(corrected) {
			postLines[postIdx] = corrected[preIdx]
		}
	}
}

// stripIntroducedTrailingBlanks drops trailing blank lines left over once
// whitespace correction has been applied at end-of-file.
func stripIntroducedTrailingBlanks(post []byte) []byte {
	img := NewImage(post)
	n := TrailingBlankLines(img)
	for i := 0; i < n; i++ {
		img.RemoveLastLine()
	}
	return img.Buf
}

// ApplyBinaryFragment reconstructs a binary postimage from pre (the current
// preimage bytes) and f's binary hunk. f.BinaryData is already
// base85-decoded and inflated by the fragment parser.
func ApplyBinaryFragment(pre []byte, f *Fragment, reverse bool) ([]byte, error) {
	method, data, origLen := f.Method, f.BinaryData, f.OrigLen
	if reverse {
		if !f.HasReverse {
			return nil, ErrIrreversibleBinary
		}
		method, data, origLen = f.RevMethod, f.RevBinary, f.RevOrigLen
	}

	switch method {
	case BinaryLiteral:
		if len(data) != origLen {
			return nil, fmt.Errorf("patch: literal binary hunk length %d, want %d", len(data), origLen)
		}
		return data, nil
	case BinaryDelta:
		return applyGitDelta(pre, data)
	default:
		return nil, fmt.Errorf("patch: fragment has no binary method")
	}
}

// applyGitDelta replays a Git pack-style delta (copy/add opcodes) against
// base, the same format gitcore/pack.go's object-delta resolution decodes,
// here addressed by hunk rather than by pack offset.
func applyGitDelta(base []byte, delta []byte) ([]byte, error) {
	src := bytes.NewReader(delta)

	srcSize, err := readDeltaVarInt(src)
	if err != nil {
		return nil, fmt.Errorf("patch: delta base size: %w", err)
	}
	if srcSize != int64(len(base)) {
		return nil, fmt.Errorf("patch: delta base size mismatch: expected %d, got %d", srcSize, len(base))
	}

	targetSize, err := readDeltaVarInt(src)
	if err != nil {
		return nil, fmt.Errorf("patch: delta target size: %w", err)
	}

	result := make([]byte, 0, targetSize)

	for {
		var cmd [1]byte
		if _, err := src.Read(cmd[:]); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		switch {
		case cmd[0]&0x80 != 0:
			var offset, size int64
			for i := 0; i < 4; i++ {
				if cmd[0]&(0x01<<i) != 0 {
					var b [1]byte
					if _, err := src.Read(b[:]); err != nil {
						return nil, err
					}
					offset |= int64(b[0]) << (8 * i)
				}
			}
			for i := 0; i < 3; i++ {
				if cmd[0]&(0x10<<i) != 0 {
					var b [1]byte
					if _, err := src.Read(b[:]); err != nil {
						return nil, err
					}
					size |= int64(b[0]) << (8 * i)
				}
			}
			if size == 0 {
				size = 0x10000
			}
			if offset+size > int64(len(base)) {
				return nil, fmt.Errorf("patch: delta copy of %d exceeds base size %d", offset+size, len(base))
			}
			result = append(result, base[offset:offset+size]...)

		case cmd[0] != 0:
			size := int(cmd[0] & 0x7F)
			lit := make([]byte, size)
			if _, err := io.ReadFull(src, lit); err != nil {
				return nil, err
			}
			result = append(result, lit...)

		default:
			return nil, fmt.Errorf("patch: invalid delta command 0")
		}
	}

	if int64(len(result)) != targetSize {
		return nil, fmt.Errorf("patch: delta result size mismatch: expected %d, got %d", targetSize, len(result))
	}
	return result, nil
}

func readDeltaVarInt(src *bytes.Reader) (int64, error) {
	var result int64
	var shift uint
	for {
		var b [1]byte
		if _, err := src.Read(b[:]); err != nil {
			return 0, err
		}
		result |= int64(b[0]&0x7F) << shift
		shift += 7
		if b[0]&0x80 == 0 {
			break
		}
	}
	return result, nil
}
