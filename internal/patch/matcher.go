package patch

import "bytes"

// MatchFlags controls how Locate searches.
type MatchFlags struct {
	MatchBeginning bool
	MatchEnd       bool
	WSCorrect      bool
}

// MatchResult reports where a preimage was found, and, if whitespace
// correction was needed to make it match, the corrected bytes.
type MatchResult struct {
	Pos int

	// Corrected is non-nil only when the match succeeded via whitespace
	// normalization rather than an exact byte match. It holds the
	// line-by-line corrected preimage bytes (same line count as pre), which
	// the caller uses to rewrite both this fragment's delete-side lines and,
	// per relocate's documented side effect below, the corresponding
	// common-context lines of the postimage.
	Corrected [][]byte
}

// Locate searches target for pre starting from line (0-based, the
// fragment's new_pos-1), returning the match position or ok=false.
//
// Tie-break: backward candidates are tried before forward candidates at
// the same distance, so when both match, backward wins. This reproduces
// observed legacy tool behavior.
func Locate(target *Image, pre *Image, line int, flags MatchFlags, rule WSRule) (MatchResult, bool) {
	maxStart := len(target.Lines) - len(pre.Lines)
	if maxStart < 0 {
		return MatchResult{}, false
	}

	switch {
	case flags.MatchBeginning:
		line = 0
	case flags.MatchEnd:
		line = maxStart
	}
	if line < 0 {
		line = 0
	}
	if line > maxStart {
		line = maxStart
	}

	for dist := 0; ; dist++ {
		back := line - dist
		fwd := line + dist
		triedAny := false

		if back >= 0 {
			triedAny = true
			if res, ok := tryMatch(target, pre, back, flags, rule); ok {
				return res, true
			}
		}
		if dist != 0 && fwd <= maxStart {
			triedAny = true
			if res, ok := tryMatch(target, pre, fwd, flags, rule); ok {
				return res, true
			}
		}
		if !triedAny {
			return MatchResult{}, false
		}
	}
}

func tryMatch(target *Image, pre *Image, k int, flags MatchFlags, rule WSRule) (MatchResult, bool) {
	for i := range pre.Lines {
		if pre.Lines[i].Hash != target.Lines[k+i].Hash {
			return MatchResult{}, false
		}
	}

	if flags.MatchEnd {
		if target.Len()-target.Offset(k) != pre.Len() {
			return MatchResult{}, false
		}
	}

	start := target.Offset(k)
	end := target.Offset(k + len(pre.Lines))
	segment := target.Buf[start:end]

	if bytes.Equal(pre.Buf, segment) {
		return MatchResult{Pos: k}, true
	}

	if !flags.WSCorrect {
		return MatchResult{}, false
	}

	return relocate(pre, target, k, rule)
}

// relocate compares pre and target's candidate segment line-by-line after
// whitespace normalization. On success it rewrites pre's buffer in place to
// the normalized bytes and returns the corrected per-line bytes.
//
// This mutation is the documented surprising behavior: once whitespace
// correction accepts a match, the *preimage* (and, by the caller's use of
// Corrected, the postimage's common-context lines) carry the fixed bytes
// forward rather than the original ones, even though only the target image
// actually needed correcting to compare equal.
func relocate(pre *Image, target *Image, k int, rule WSRule) (MatchResult, bool) {
	corrected := make([][]byte, len(pre.Lines))
	var fixedBuf bytes.Buffer

	for i := range pre.Lines {
		preLine := pre.LineBytes(i)
		tgtLine := target.LineBytes(k + i)

		preFixed := make([]byte, len(preLine))
		n1 := WSFixCopy(preFixed, preLine, rule)
		preFixed = preFixed[:n1]

		tgtFixed := make([]byte, len(tgtLine))
		n2 := WSFixCopy(tgtFixed, tgtLine, rule)
		tgtFixed = tgtFixed[:n2]

		if !bytes.Equal(preFixed, tgtFixed) {
			return MatchResult{}, false
		}

		corrected[i] = preFixed
		fixedBuf.Write(preFixed)
	}

	if err := pre.UpdateImage(0, len(pre.Lines), fixedBuf.Bytes()); err != nil {
		return MatchResult{}, false
	}

	return MatchResult{Pos: k, Corrected: corrected}, true
}
