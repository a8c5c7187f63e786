package patch

// LineSpan is one (offset, length) pair produced by walking a buffer as
// LF-terminated lines.
type LineSpan struct {
	Offset int
	Len    int
	NoEOL  bool
}

// WalkLines returns the (offset, length) spans of buf, each ending at and
// including the next '\n' or at EOF. The final span has NoEOL set when buf
// does not end with '\n'.
func WalkLines(buf []byte) []LineSpan {
	if len(buf) == 0 {
		return nil
	}
	spans := make([]LineSpan, 0, 16)
	start := 0
	for start < len(buf) {
		idx := indexByte(buf[start:], '\n')
		if idx < 0 {
			spans = append(spans, LineSpan{Offset: start, Len: len(buf) - start, NoEOL: true})
			break
		}
		spans = append(spans, LineSpan{Offset: start, Len: idx + 1})
		start += idx + 1
	}
	return spans
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// hashMask truncates the rolling hash to 24 bits.
const hashMask = 1<<24 - 1

// isWhitespace reports whether b is a whitespace byte skipped entirely by
// HashLine: space, tab, CR, LF, vertical tab, form feed.
func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	default:
		return false
	}
}

// HashLine computes the whitespace-insensitive 24-bit hash of a line's
// bytes: h = 3*h + b for each non-whitespace byte, skipping whitespace
// entirely rather than normalizing it. Two lines that differ only in
// whitespace placement or amount hash identically only if their non-
// whitespace bytes are identical and in the same order.
func HashLine(b []byte) uint32 {
	var h uint32
	for _, c := range b {
		if isWhitespace(c) {
			continue
		}
		h = 3*h + uint32(c)
	}
	return h & hashMask
}

// BuildLineTable walks buf and returns the Line records covering it
// contiguously.
func BuildLineTable(buf []byte) []Line {
	spans := WalkLines(buf)
	lines := make([]Line, len(spans))
	for i, sp := range spans {
		content := buf[sp.Offset : sp.Offset+sp.Len]
		lines[i] = Line{Len: sp.Len, Hash: HashLine(content)}
		if sp.NoEOL {
			lines[i].Flags |= LineNoEOL
		}
	}
	return lines
}
