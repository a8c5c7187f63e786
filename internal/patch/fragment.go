package patch

import (
	"strconv"
	"strings"
)

// ParseFragmentHeader parses "@@ -a,b +c,d @@[ trailing context]". Either
// ",b" or ",d" may be absent, defaulting to 1. Returns ok=false if line does
// not begin with "@@ -".
func ParseFragmentHeader(line string) (oldPos, oldLines, newPos, newLines int, ok bool) {
	if !strings.HasPrefix(line, "@@ -") {
		return 0, 0, 0, 0, false
	}
	rest := line[len("@@ -"):]
	end := strings.Index(rest, " @@")
	if end < 0 {
		return 0, 0, 0, 0, false
	}
	counts := rest[:end]
	parts := strings.SplitN(counts, " +", 2)
	if len(parts) != 2 {
		return 0, 0, 0, 0, false
	}
	oldPos, oldLines, ok1 := parseRange(parts[0])
	newPos, newLines, ok2 := parseRange(parts[1])
	if !ok1 || !ok2 {
		return 0, 0, 0, 0, false
	}
	return oldPos, oldLines, newPos, newLines, true
}

func parseRange(s string) (pos, n int, ok bool) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		pos, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, false
		}
		return pos, 1, true
	}
	pos, err := strconv.Atoi(s[:comma])
	if err != nil {
		return 0, 0, false
	}
	n, err = strconv.Atoi(s[comma+1:])
	if err != nil {
		return 0, 0, false
	}
	return pos, n, true
}

// ParseFragment parses the body following a recognized "@@ -a,b +c,d @@"
// header at lines[pos]. It consumes body lines until both old and new
// counters reach zero, then absorbs one trailing "\ No newline..." marker
// if present. recount, when true, ignores the header's counts and recomputes
// them from the body.
func ParseFragment(lines []string, pos int, recount bool) (*Fragment, int, error) {
	oldPos, oldLines, newPos, newLines, ok := ParseFragmentHeader(lines[pos])
	if !ok {
		return nil, pos, streamErrorf(pos+1, "%w: malformed fragment header", ErrMalformedHeader)
	}
	if recount {
		// The body's extent comes from its own lines, not the header counts.
		oldLines, newLines = 0, 0
		body := lines[pos+1:]
		for k, l := range body {
			if l == "" && k == len(body)-1 || l != "" && !strings.ContainsRune(" -+\\", rune(l[0])) {
				break
			}
			if l == "" || l[0] == ' ' || l[0] == '-' {
				oldLines++
			}
			if l == "" || l[0] == ' ' || l[0] == '+' {
				newLines++
			}
		}
	}

	f := &Fragment{OldPos: oldPos, OldLines: oldLines, NewPos: newPos, NewLines: newLines}

	i := pos + 1
	remainingOld, remainingNew := oldLines, newLines
	sawChange := false
	bodyStart := i

	for i < len(lines) && (remainingOld > 0 || remainingNew > 0) {
		line := lines[i]
		if line == "" {
			// GNU empty-context line: a blank line with no leading space
			// counts as context on both sides.
			remainingOld--
			remainingNew--
			fl := FragmentLine{Op: OpContext}
			if !sawChange {
				f.Leading++
			}
			f.Trailing++
			f.Lines = append(f.Lines, fl)
			i++
			continue
		}

		switch line[0] {
		case ' ':
			remainingOld--
			remainingNew--
			fl := FragmentLine{Op: OpContext, Content: []byte(line[1:])}
			if !sawChange {
				f.Leading++
			}
			f.Trailing++
			f.Lines = append(f.Lines, fl)
		case '-':
			remainingOld--
			sawChange = true
			f.Trailing = 0
			f.Lines = append(f.Lines, FragmentLine{Op: OpDelete, Content: []byte(line[1:])})
		case '+':
			remainingNew--
			sawChange = true
			f.Trailing = 0
			f.Lines = append(f.Lines, FragmentLine{Op: OpAdd, Content: []byte(line[1:])})
		case '\\':
			if len(line) < 12 || !strings.HasPrefix(line, "\\ ") {
				return nil, pos, streamErrorf(i+1, "%w: malformed no-newline marker", ErrMalformedHeader)
			}
			markLastNoEOL(f)
			i++
			continue
		default:
			return nil, pos, streamErrorf(i+1, "%w: unexpected fragment line %q", ErrMalformedHeader, line)
		}
		i++
	}

	if remainingOld != 0 || remainingNew != 0 {
		return nil, pos, streamErrorf(i+1, "%w: fragment body shorter than header counts", ErrMalformedHeader)
	}

	if i < len(lines) && strings.HasPrefix(lines[i], "\\ ") {
		markLastNoEOL(f)
		i++
	}

	if recount {
		f.OldLines, f.NewLines = recomputeCounts(f.Lines)
	}

	f.Raw = []byte(strings.Join(lines[pos:i], "\n") + "\n")

	_ = bodyStart
	return f, i, nil
}

func markLastNoEOL(f *Fragment) {
	if len(f.Lines) == 0 {
		return
	}
	f.Lines[len(f.Lines)-1].NoEOL = true
}

func recomputeCounts(lines []FragmentLine) (oldLines, newLines int) {
	for _, l := range lines {
		switch l.Op {
		case OpContext:
			oldLines++
			newLines++
		case OpDelete:
			oldLines++
		case OpAdd:
			newLines++
		}
	}
	return oldLines, newLines
}

// binaryHunkHeaderPrefix marks the start of a binary patch block.
const binaryHunkHeaderPrefix = "GIT binary patch"

// ParseBinaryPatch parses the "GIT binary patch" block starting at
// lines[pos] (which must equal binaryHunkHeaderPrefix): a forward hunk and
// an optional reverse hunk, each "(literal|delta) <origlen>" followed by
// base85 data lines and a blank terminator.
func ParseBinaryPatch(lines []string, pos int) (*Fragment, int, error) {
	if strings.TrimRight(lines[pos], "\r") != binaryHunkHeaderPrefix {
		return nil, pos, streamErrorf(pos+1, "%w: expected %q", ErrMalformedHeader, binaryHunkHeaderPrefix)
	}
	f := &Fragment{}
	i := pos + 1

	method, origLen, next, err := parseBinaryHunkHeader(lines, i)
	if err != nil {
		return nil, pos, err
	}
	i = next
	data, next, err := collectBase85Lines(lines, i)
	if err != nil {
		return nil, pos, err
	}
	i = next

	raw, err := decodeBase85Block(toByteLines(data))
	if err != nil {
		return nil, pos, streamErrorf(i+1, "%w", err)
	}
	decoded, err := inflateBinaryHunk(raw, origLen)
	if err != nil {
		return nil, pos, streamErrorf(i+1, "%w", err)
	}
	f.Method = method
	f.OrigLen = origLen
	f.BinaryData = decoded

	if i < len(lines) {
		if rmethod, rorigLen, rnext, rerr := parseBinaryHunkHeader(lines, i); rerr == nil && rmethod != BinaryNone {
			rraw, rnext2, rerr2 := collectBase85Lines(lines, rnext)
			if rerr2 != nil {
				return nil, pos, rerr2
			}
			rdata, rerr3 := decodeBase85Block(toByteLines(rraw))
			if rerr3 != nil {
				return nil, pos, streamErrorf(rnext2+1, "%w", rerr3)
			}
			rdecoded, rerr4 := inflateBinaryHunk(rdata, rorigLen)
			if rerr4 != nil {
				return nil, pos, streamErrorf(rnext2+1, "%w", rerr4)
			}
			f.HasReverse = true
			f.RevMethod = rmethod
			f.RevOrigLen = rorigLen
			f.RevBinary = rdecoded
			i = rnext2
		}
	}

	return f, i, nil
}

func parseBinaryHunkHeader(lines []string, pos int) (BinaryMethod, int, int, error) {
	if pos >= len(lines) {
		return BinaryNone, 0, pos, streamErrorf(pos+1, "%w: missing binary hunk header", ErrMalformedHeader)
	}
	line := lines[pos]
	var method BinaryMethod
	var rest string
	switch {
	case strings.HasPrefix(line, "literal "):
		method = BinaryLiteral
		rest = strings.TrimPrefix(line, "literal ")
	case strings.HasPrefix(line, "delta "):
		method = BinaryDelta
		rest = strings.TrimPrefix(line, "delta ")
	default:
		return BinaryNone, 0, pos, nil
	}
	origLen, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return BinaryNone, 0, pos, streamErrorf(pos+1, "%w: bad binary hunk length", ErrMalformedHeader)
	}
	return method, origLen, pos + 1, nil
}

// collectBase85Lines gathers base85 data lines up to and including the
// blank terminator line, returning the data lines (terminator excluded).
func collectBase85Lines(lines []string, pos int) ([]string, int, error) {
	var data []string
	i := pos
	for i < len(lines) {
		if lines[i] == "" {
			return data, i + 1, nil
		}
		data = append(data, lines[i])
		i++
	}
	return nil, i, streamErrorf(i+1, "%w: unterminated binary hunk", ErrMalformedHeader)
}

func toByteLines(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}
