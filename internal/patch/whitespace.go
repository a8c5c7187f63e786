package patch

import "strings"

// WSClass is a bitmask of whitespace-violation classes.
type WSClass uint8

const (
	// WSTrailingWhitespace flags a line ending in space or tab.
	WSTrailingWhitespace WSClass = 1 << iota
	// WSCRAtEOL flags a stray carriage return before the line terminator.
	WSCRAtEOL
	// WSSpaceBeforeTab flags a space appearing before a tab within a
	// line's leading indent.
	WSSpaceBeforeTab
	// WSIndentWithNonTab flags an indent of 8 or more columns built
	// entirely from spaces where a tab could have been used.
	WSIndentWithNonTab
	// WSTabInIndent flags any tab character within a line's indent.
	WSTabInIndent
	// WSBlankAtEOF flags blank lines introduced at end of file.
	WSBlankAtEOF

	wsAllClasses = WSTrailingWhitespace | WSCRAtEOL | WSSpaceBeforeTab |
		WSIndentWithNonTab | WSTabInIndent | WSBlankAtEOF
)

// WSPolicy selects what happens once violations are detected.
type WSPolicy int

const (
	// WSNoWarn ignores violations entirely.
	WSNoWarn WSPolicy = iota
	// WSWarn reports violations to the diagnostic sink but never fails.
	WSWarn
	// WSError collects violations and fails the session at the end.
	WSError
	// WSFix rewrites added and context bytes to remove violations.
	WSFix
)

// WSRule is the whitespace policy resolved for one path: which violation
// classes are checked, and what to do once found.
type WSRule struct {
	Classes WSClass
	Policy  WSPolicy
}

// DefaultWSRule is applied to any path with no more specific repository
// config entry: every class checked, policy warn.
var DefaultWSRule = WSRule{Classes: wsAllClasses, Policy: WSWarn}

// WSRuleEntry pairs one path-glob pattern (PathFilter syntax) with the rule
// that applies to paths it matches.
type WSRuleEntry struct {
	Pattern string
	Rule    WSRule
}

// WSRuleSet resolves the rule for a path from an ordered list of path-glob
// entries, falling back to Default when none match. It is built from the
// repository-wide .patchrules.json sidecar (see internal/gitconfig).
type WSRuleSet struct {
	Entries []WSRuleEntry
	Default WSRule
}

// Resolve returns the first entry whose pattern matches path, or Default.
func (rs WSRuleSet) Resolve(path string) WSRule {
	for _, e := range rs.Entries {
		if matchGlobPath(e.Pattern, path) {
			return e.Rule
		}
	}
	return rs.Default
}

// ParseWSClasses parses a comma-separated list of class names into a
// WSClass bitmask, the vocabulary used by both the --whitespace CLI flag
// and .patchrules.json entries. Unrecognized names are silently ignored.
func ParseWSClasses(s string) WSClass {
	var out WSClass
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(name) {
		case "trailing":
			out |= WSTrailingWhitespace
		case "cr-at-eol":
			out |= WSCRAtEOL
		case "space-before-tab":
			out |= WSSpaceBeforeTab
		case "indent-with-non-tab":
			out |= WSIndentWithNonTab
		case "tab-in-indent":
			out |= WSTabInIndent
		case "blank-at-eof":
			out |= WSBlankAtEOF
		case "all":
			out |= wsAllClasses
		}
	}
	return out
}

// ParseWSPolicy parses a policy name, defaulting to WSWarn for anything
// unrecognized (including the empty string, so a sidecar entry that omits
// "policy" falls back to warn rather than silently disabling checks).
func ParseWSPolicy(s string) WSPolicy {
	switch strings.TrimSpace(s) {
	case "nowarn":
		return WSNoWarn
	case "error":
		return WSError
	case "fix":
		return WSFix
	default:
		return WSWarn
	}
}

// ClassifyLine reports which of rule's enabled violation classes are
// present in an added line's content (content excludes the line
// terminator; a trailing '\r' left over from a CRLF source is still
// present in content and is what WSCRAtEOL detects).
func ClassifyLine(content []byte, rule WSRule) WSClass {
	var found WSClass
	body := content

	if len(body) > 0 && body[len(body)-1] == '\r' {
		found |= WSCRAtEOL
		body = body[:len(body)-1]
	}

	if len(body) > 0 {
		last := body[len(body)-1]
		if last == ' ' || last == '\t' {
			found |= WSTrailingWhitespace
		}
	}

	indentEnd := 0
	for indentEnd < len(body) && (body[indentEnd] == ' ' || body[indentEnd] == '\t') {
		indentEnd++
	}
	indent := body[:indentEnd]

	seenSpace := false
	hasTab := false
	spaceBeforeTab := false
	for _, b := range indent {
		switch b {
		case ' ':
			seenSpace = true
		case '\t':
			hasTab = true
			if seenSpace {
				spaceBeforeTab = true
			}
		}
	}
	if spaceBeforeTab {
		found |= WSSpaceBeforeTab
	}
	if hasTab {
		found |= WSTabInIndent
	}
	if !hasTab && len(indent) >= 8 {
		found |= WSIndentWithNonTab
	}

	return found & rule.Classes
}

// TrailingBlankLines counts consecutive empty-or-whitespace-only lines at
// the end of img, for the WSBlankAtEOF check and for the post-match
// trailing-blank-line strip.
func TrailingBlankLines(img *Image) int {
	n := 0
	for i := len(img.Lines) - 1; i >= 0; i-- {
		l := img.LineBytes(i)
		if !isBlankLine(l) {
			break
		}
		n++
	}
	return n
}

func isBlankLine(line []byte) bool {
	for _, b := range line {
		if !isWhitespace(b) {
			return false
		}
	}
	return true
}

// WSFixCopy rewrites src (one line's bytes, including its terminator) into
// dst according to rule, returning the corrected length. The result is
// always a prefix write into dst and never longer than len(src): trailing
// whitespace and stray CRs are dropped, and indents of 8+ columns built
// from spaces collapse to tabs (strictly shorter), so the operation can
// never expand a line. This is the invariant that makes rewriting context
// lines in place, rather than only added lines, safe.
func WSFixCopy(dst, src []byte, rule WSRule) int {
	eol := len(src)
	hasLF := eol > 0 && src[eol-1] == '\n'
	if hasLF {
		eol--
	}
	body := src[:eol]

	if rule.Classes&WSCRAtEOL != 0 && len(body) > 0 && body[len(body)-1] == '\r' {
		body = body[:len(body)-1]
	}

	if rule.Classes&(WSIndentWithNonTab|WSSpaceBeforeTab) != 0 {
		body = collapseIndent(body, rule)
	}

	if rule.Classes&WSTrailingWhitespace != 0 {
		end := len(body)
		for end > 0 && (body[end-1] == ' ' || body[end-1] == '\t') {
			end--
		}
		body = body[:end]
	}

	n := copy(dst, body)
	if hasLF {
		dst[n] = '\n'
		n++
	}
	return n
}

// collapseIndent rewrites a line's leading indent: every run of 8
// consecutive spaces becomes a single tab (WSIndentWithNonTab), and a
// space immediately preceding a tab is dropped (WSSpaceBeforeTab). Both
// transforms are strictly non-expansive.
func collapseIndent(body []byte, rule WSRule) []byte {
	indentEnd := 0
	for indentEnd < len(body) && (body[indentEnd] == ' ' || body[indentEnd] == '\t') {
		indentEnd++
	}
	indent := body[:indentEnd]
	rest := body[indentEnd:]

	out := make([]byte, 0, len(indent))
	spaces := 0
	for i := 0; i < len(indent); i++ {
		b := indent[i]
		if b == ' ' {
			if rule.Classes&WSIndentWithNonTab != 0 {
				spaces++
				if spaces == 8 {
					out = append(out, '\t')
					spaces = 0
				}
				continue
			}
			out = append(out, ' ')
			continue
		}
		// tab
		if rule.Classes&WSSpaceBeforeTab != 0 {
			spaces = 0 // drop any pending spaces immediately before this tab
		} else {
			for ; spaces > 0; spaces-- {
				out = append(out, ' ')
			}
		}
		out = append(out, '\t')
	}
	for ; spaces > 0; spaces-- {
		out = append(out, ' ')
	}

	result := make([]byte, 0, len(out)+len(rest))
	result = append(result, out...)
	result = append(result, rest...)
	return result
}
