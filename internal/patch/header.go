package patch

import (
	"bytes"
	"strconv"
	"strings"
)

// ParseOptions carries the session-wide settings the header parser consults:
// the latched -p value (nil until resolved, then sticky for the rest of the
// stream) and the --directory root prefix.
//
// PValue is a pointer so the first guessed value can be written back and
// reused by every subsequent patch in the stream, matching the historical
// tool's "the p value is detected once" behavior.
type ParseOptions struct {
	PValue *int
	Root   string
}

// headerHandler mutates p in response to one recognized extended-header
// line's remainder (the text after the matched prefix, with no trailing
// newline).
type headerHandler func(p *Patch, rest string)

var extendedHeaders = []struct {
	prefix  string
	handler headerHandler
}{
	{"old mode ", func(p *Patch, rest string) { p.OldMode = parseOctalMode(rest) }},
	{"new mode ", func(p *Patch, rest string) { p.NewMode = parseOctalMode(rest) }},
	{"deleted file mode ", func(p *Patch, rest string) {
		p.OldMode = parseOctalMode(rest)
		p.IsDelete = Yes
	}},
	{"new file mode ", func(p *Patch, rest string) {
		p.NewMode = parseOctalMode(rest)
		p.IsNew = Yes
	}},
	{"copy from ", func(p *Patch, rest string) { p.OldName = unquoteName(rest); p.IsCopy = true }},
	{"copy to ", func(p *Patch, rest string) { p.NewName = unquoteName(rest); p.IsCopy = true }},
	{"rename from ", func(p *Patch, rest string) { p.OldName = unquoteName(rest); p.IsRename = true }},
	{"rename to ", func(p *Patch, rest string) { p.NewName = unquoteName(rest); p.IsRename = true }},
	{"rename old ", func(p *Patch, rest string) { p.OldName = unquoteName(rest); p.IsRename = true }},
	{"rename new ", func(p *Patch, rest string) { p.NewName = unquoteName(rest); p.IsRename = true }},
	{"similarity index ", func(p *Patch, rest string) { p.Score = parseScore(rest) }},
	{"dissimilarity index ", func(p *Patch, rest string) { p.Score = parseScore(rest) }},
}

// ParseHeader recognizes a patch-start at lines[pos] in either git or
// traditional dialect and consumes the header block, returning the
// partially-populated Patch and the index of the first unconsumed line (the
// "@@ -" fragment header, normally). Returns (nil, pos, nil) when lines[pos]
// does not begin a patch at all; the caller should advance past it.
func ParseHeader(lines []string, pos int, opts *ParseOptions) (*Patch, int, error) {
	if pos >= len(lines) {
		return nil, pos, nil
	}

	line := lines[pos]
	switch {
	case strings.HasPrefix(line, "diff --git "):
		return parseGitHeader(lines, pos, opts)
	case strings.HasPrefix(line, "--- "):
		return parseTraditionalHeader(lines, pos, opts)
	default:
		return nil, pos, nil
	}
}

func parseGitHeader(lines []string, pos int, opts *ParseOptions) (*Patch, int, error) {
	rest := strings.TrimPrefix(lines[pos], "diff --git ")
	aRaw, bRaw, ok := splitDiffGitNames(rest)
	if !ok {
		return nil, pos, streamErrorf(pos+1, "diff --git: %w: cannot split filenames", ErrMalformedHeader)
	}

	p := &Patch{}
	a := unquoteName(aRaw)
	b := unquoteName(bRaw)
	if sameAfterPrefix(a, b) {
		p.DefName = stripAB(a)
	}

	i := pos + 1
	for i < len(lines) {
		l := lines[i]
		if strings.HasPrefix(l, "@@ -") {
			break
		}
		if matched := dispatchExtendedHeader(p, l); matched {
			i++
			continue
		}
		if strings.HasPrefix(l, "index ") {
			if err := parseIndexLine(p, strings.TrimPrefix(l, "index ")); err != nil {
				return nil, pos, streamErrorf(i+1, "%w: %s", ErrMalformedHeader, err)
			}
			i++
			continue
		}
		if strings.HasPrefix(l, "--- ") {
			name, err := consumeMinusPlusPair(lines, &i, p, opts)
			if err != nil {
				return nil, pos, err
			}
			_ = name
			continue
		}
		break
	}

	finalizeNames(p, opts, false)
	resolveModes(p)
	return p, i, nil
}

func parseTraditionalHeader(lines []string, pos int, opts *ParseOptions) (*Patch, int, error) {
	if pos+1 >= len(lines) || !strings.HasPrefix(lines[pos+1], "+++ ") {
		return nil, pos, streamErrorf(pos+1, "%w: --- not followed by +++", ErrMalformedHeader)
	}
	p := &Patch{}
	i := pos
	if _, err := consumeMinusPlusPair(lines, &i, p, opts); err != nil {
		return nil, pos, err
	}
	if p.OldName == "" && p.NewName == "" {
		return nil, pos, streamErrorf(pos+1, "%w: no filename on either side", ErrMalformedHeader)
	}
	finalizeNames(p, opts, true)
	resolveModes(p)
	return p, i, nil
}

// consumeMinusPlusPair reads the "--- <a>" line at lines[*i] and the
// following "+++ <b>" line, applying /dev/null creation/deletion semantics
// and advancing *i past both.
func consumeMinusPlusPair(lines []string, i *int, p *Patch, opts *ParseOptions) (string, error) {
	minus := strings.TrimPrefix(lines[*i], "--- ")
	if *i+1 >= len(lines) || !strings.HasPrefix(lines[*i+1], "+++ ") {
		return "", streamErrorf(*i+1, "%w: --- not followed by +++", ErrMalformedHeader)
	}
	plus := strings.TrimPrefix(lines[*i+1], "+++ ")
	*i += 2

	minus = firstField(minus)
	plus = firstField(plus)

	if minus == "/dev/null" {
		p.IsNew = Yes
	} else {
		p.OldName = unquoteName(minus)
	}
	if plus == "/dev/null" {
		p.IsDelete = Yes
	} else {
		p.NewName = unquoteName(plus)
	}
	return p.NewName, nil
}

// firstField strips a trailing tab-separated timestamp ("--- a/x.go\t2024-...")
// that traditional-dialect tools append.
func firstField(s string) string {
	if idx := strings.IndexByte(s, '\t'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func dispatchExtendedHeader(p *Patch, line string) bool {
	for _, h := range extendedHeaders {
		if strings.HasPrefix(line, h.prefix) {
			h.handler(p, strings.TrimPrefix(line, h.prefix))
			return true
		}
	}
	return false
}

func parseIndexLine(p *Patch, rest string) error {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ErrMalformedHeader
	}
	shas := strings.SplitN(fields[0], "..", 2)
	if len(shas) != 2 {
		return ErrMalformedHeader
	}
	if !isHex(shas[0]) || !isHex(shas[1]) {
		return ErrMalformedHeader
	}
	p.OldSHA1Prefix = shas[0]
	p.NewSHA1Prefix = shas[1]
	if len(fields) > 1 {
		p.OldMode = parseOctalMode(fields[1])
		p.NewMode = p.OldMode
	}
	return nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func parseOctalMode(s string) uint32 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 8, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func parseScore(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// unquoteName applies standard C-string unquoting when name is
// double-quoted, otherwise returns it unchanged, then collapses runs of '/'.
func unquoteName(name string) string {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		if u, ok := unquoteCStyle(name); ok {
			name = u
		}
	}
	return collapseSlashes(name)
}

func unquoteCStyle(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s, false
	}
	inner := s[1 : len(s)-1]
	var buf bytes.Buffer
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' || i+1 >= len(inner) {
			buf.WriteByte(c)
			continue
		}
		i++
		switch inner[i] {
		case 'n':
			buf.WriteByte('\n')
		case 't':
			buf.WriteByte('\t')
		case 'r':
			buf.WriteByte('\r')
		case '\\':
			buf.WriteByte('\\')
		case '"':
			buf.WriteByte('"')
		default:
			if inner[i] >= '0' && inner[i] <= '7' {
				val := 0
				n := 0
				for n < 3 && i < len(inner) && inner[i] >= '0' && inner[i] <= '7' {
					val = val*8 + int(inner[i]-'0')
					i++
					n++
				}
				i--
				buf.WriteByte(byte(val))
			} else {
				buf.WriteByte(inner[i])
			}
		}
	}
	return buf.String(), true
}

func collapseSlashes(name string) string {
	if !strings.Contains(name, "//") {
		return name
	}
	var buf bytes.Buffer
	prevSlash := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		buf.WriteByte(c)
	}
	return buf.String()
}

// splitDiffGitNames splits the text following "diff --git " into its two
// filenames. A quoted first name has an unambiguous end; otherwise the split
// point is the last " b/" occurrence, which matches the common case where
// names are free of embedded " b/" substrings.
func splitDiffGitNames(rest string) (a, b string, ok bool) {
	if rest == "" {
		return "", "", false
	}
	if rest[0] == '"' {
		end := scanQuoted(rest)
		if end < 0 {
			return "", "", false
		}
		a = rest[:end]
		remainder := strings.TrimPrefix(rest[end:], " ")
		return a, remainder, remainder != ""
	}
	if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		return rest[:idx], rest[idx+1:], true
	}
	idx := strings.IndexByte(rest, ' ')
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// scanQuoted returns the index just past the closing quote of a C-quoted
// string starting at s[0] == '"', or -1 if unterminated.
func scanQuoted(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			return i + 1
		}
	}
	return -1
}

// stripAB strips one leading "a/" or "b/" component, the convention a
// "diff --git" def_name is shown with.
func stripAB(name string) string {
	if len(name) > 2 && (name[:2] == "a/" || name[:2] == "b/") {
		return name[2:]
	}
	return name
}

func sameAfterPrefix(a, b string) bool {
	return stripAB(a) == stripAB(b)
}

// finalizeNames applies p-value stripping, --directory root prepending, and
// the unambiguous-name / suffix-preference rules once all header lines are
// consumed. traditional selects which dialect's p-value resolution rule
// applies (see resolvePValue).
func finalizeNames(p *Patch, opts *ParseOptions, traditional bool) {
	p.DefName = stripAB(p.DefName)

	pval := resolvePValue(p, opts, traditional)

	if p.OldName != "" {
		p.OldName = applyPValue(p.OldName, pval, opts.Root)
	}
	if p.NewName != "" {
		p.NewName = applyPValue(p.NewName, pval, opts.Root)
	}
	if p.DefName != "" {
		p.DefName = applyPValue(p.DefName, pval, opts.Root)
	}

	if p.OldName == "" && p.NewName != "" && p.DefName != "" {
		p.OldName = p.DefName
	}
	if p.NewName == "" && p.OldName != "" && p.DefName != "" {
		p.NewName = p.DefName
	}

	switch {
	case p.OldName == p.NewName && p.OldName != "":
		// unambiguous
	case p.OldName != "" && p.NewName != "":
		if isSuffixedVariant(p.NewName, p.OldName) {
			p.NewName = p.OldName
		} else if isSuffixedVariant(p.OldName, p.NewName) {
			p.OldName = p.NewName
		}
	}

	if p.NewName == "" {
		p.NewName = p.DefName
	}
	if p.OldName == "" {
		p.OldName = p.DefName
	}
}

// isSuffixedVariant reports whether longer is shorter with a trailing
// ".orig" or "~" backup suffix appended, the case where the shorter name is
// preferred.
func isSuffixedVariant(longer, shorter string) bool {
	if !strings.HasPrefix(longer, shorter) {
		return false
	}
	suffix := longer[len(shorter):]
	return suffix == ".orig" || suffix == "~"
}

// resolvePValue returns the p-value to strip leading path components with.
// An explicit -p (or a value already latched by an earlier patch in the
// stream) always wins. Absent that, guessPValue is only ever consulted from
// the traditional dialect: git-dialect "---"/"+++" lines always carry the
// standard a/ b/ prefix, so git-dialect patches latch p=1 without guessing,
// rather than risk guessPValue misreading a rename's raw a/old, b/new names
// as an inconsistent path depth.
func resolvePValue(p *Patch, opts *ParseOptions, traditional bool) int {
	if opts.PValue != nil {
		return *opts.PValue
	}
	if !traditional {
		guessed := 1
		opts.PValue = &guessed
		return guessed
	}
	guessed := guessPValue(p.OldName, p.NewName)
	opts.PValue = &guessed
	return guessed
}

// guessPValue picks the smallest p that yields the same stripped suffix on
// both sides, preferring p=0 when a name has no slash at all. When only one
// side names a file (the other is /dev/null), that name gets p=1 if it
// contains a slash and p=0 otherwise.
func guessPValue(oldName, newName string) int {
	if oldName == "" || newName == "" {
		if strings.Contains(oldName+newName, "/") {
			return 1
		}
		return 0
	}
	if !strings.Contains(oldName, "/") && !strings.Contains(newName, "/") {
		return 0
	}
	maxP := strings.Count(oldName, "/")
	if c := strings.Count(newName, "/"); c > maxP {
		maxP = c
	}
	for p := 0; p <= maxP; p++ {
		if stripPathComponents(oldName, p) == stripPathComponents(newName, p) {
			return p
		}
	}
	return 0
}

func stripPathComponents(name string, p int) string {
	for i := 0; i < p; i++ {
		idx := strings.IndexByte(name, '/')
		if idx < 0 {
			return name
		}
		name = name[idx+1:]
	}
	return name
}

func applyPValue(name string, p int, root string) string {
	name = stripPathComponents(name, p)
	if root != "" {
		name = strings.TrimSuffix(root, "/") + "/" + name
	}
	return collapseSlashes(name)
}

// resolveModes fills in OldMode/NewMode defaults: an absent
// old_mode defaults to the preimage's actual mode (left 0 here; the pipeline
// fills it in once it reads the preimage), an absent new_mode defaults to
// old_mode unless the patch is a deletion, and an undeclared new creation
// mode defaults to 100644.
func resolveModes(p *Patch) {
	if p.NewMode == 0 && p.IsDelete != Yes {
		if p.IsNew == Yes {
			p.NewMode = 0100644
		} else {
			p.NewMode = p.OldMode
		}
	}
}
