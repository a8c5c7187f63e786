package patch

import "testing"

// TestParseHeader_GitDialectSimpleModification verifies a minimal "diff
// --git" header with an index line resolves both names and the blob shas.
func TestParseHeader_GitDialectSimpleModification(t *testing.T) {
	lines := []string{
		"diff --git a/foo.go b/foo.go",
		"index 1111111..2222222 100644",
		"--- a/foo.go",
		"+++ b/foo.go",
		"@@ -1,1 +1,1 @@",
	}
	opts := &ParseOptions{}
	p, next, err := ParseHeader(lines, 0, opts)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if p.OldName != "foo.go" || p.NewName != "foo.go" {
		t.Errorf("names = %q/%q, want foo.go/foo.go", p.OldName, p.NewName)
	}
	if p.OldSHA1Prefix != "1111111" || p.NewSHA1Prefix != "2222222" {
		t.Errorf("sha prefixes = %q/%q", p.OldSHA1Prefix, p.NewSHA1Prefix)
	}
	if lines[next] != "@@ -1,1 +1,1 @@" {
		t.Errorf("next line = %q, want fragment header", lines[next])
	}
}

// TestParseHeader_GitDialectNewFile verifies "new file mode" sets IsNew and
// the declared mode.
func TestParseHeader_GitDialectNewFile(t *testing.T) {
	lines := []string{
		"diff --git a/new.txt b/new.txt",
		"new file mode 100644",
		"index 0000000..abc1234",
		"--- /dev/null",
		"+++ b/new.txt",
		"@@ -0,0 +1,1 @@",
	}
	p, _, err := ParseHeader(lines, 0, &ParseOptions{})
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if p.IsNew != Yes {
		t.Error("expected IsNew = Yes")
	}
	if p.NewMode != 0100644 {
		t.Errorf("NewMode = %o, want 100644", p.NewMode)
	}
	if p.NewName != "new.txt" {
		t.Errorf("NewName = %q, want new.txt", p.NewName)
	}
}

// TestParseHeader_GitDialectDeletedFile verifies "deleted file mode" sets
// IsDelete and OldMode.
func TestParseHeader_GitDialectDeletedFile(t *testing.T) {
	lines := []string{
		"diff --git a/gone.txt b/gone.txt",
		"deleted file mode 100644",
		"index abc1234..0000000",
		"--- a/gone.txt",
		"+++ /dev/null",
		"@@ -1,1 +0,0 @@",
	}
	p, _, err := ParseHeader(lines, 0, &ParseOptions{})
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if p.IsDelete != Yes {
		t.Error("expected IsDelete = Yes")
	}
	if p.OldMode != 0100644 {
		t.Errorf("OldMode = %o, want 100644", p.OldMode)
	}
}

// TestParseHeader_GitDialectRename verifies rename from/to headers set
// IsRename and both names, without a "---"/"+++" pair present.
func TestParseHeader_GitDialectRename(t *testing.T) {
	lines := []string{
		"diff --git a/old.go b/new.go",
		"similarity index 100%",
		"rename from old.go",
		"rename to new.go",
	}
	p, next, err := ParseHeader(lines, 0, &ParseOptions{})
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if !p.IsRename {
		t.Error("expected IsRename = true")
	}
	if p.OldName != "old.go" || p.NewName != "new.go" {
		t.Errorf("names = %q/%q, want old.go/new.go", p.OldName, p.NewName)
	}
	if p.Score != 100 {
		t.Errorf("Score = %d, want 100", p.Score)
	}
	if next != len(lines) {
		t.Errorf("next = %d, want %d (all header lines consumed)", next, len(lines))
	}
}

// TestParseHeader_GitDialectRenameWithMinusPlusPair verifies that a rename
// header paired with a "---"/"+++" line pair (a rename-plus-modify) resolves
// correct names even with no -p given: the git dialect must latch p=1
// rather than guess, since guessPValue has no way to recognize a genuine
// rename's raw a/old.go, b/new.go pair as path-consistent.
func TestParseHeader_GitDialectRenameWithMinusPlusPair(t *testing.T) {
	lines := []string{
		"diff --git a/old.go b/new.go",
		"similarity index 90%",
		"rename from old.go",
		"rename to new.go",
		"--- a/old.go",
		"+++ b/new.go",
		"@@ -1,1 +1,1 @@",
	}
	p, _, err := ParseHeader(lines, 0, &ParseOptions{})
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if !p.IsRename {
		t.Error("expected IsRename = true")
	}
	if p.OldName != "old.go" || p.NewName != "new.go" {
		t.Errorf("names = %q/%q, want old.go/new.go", p.OldName, p.NewName)
	}
}

// TestParseHeader_TraditionalDialect verifies the "--- a/x" / "+++ b/x"
// two-line form with no "diff --git" line.
func TestParseHeader_TraditionalDialect(t *testing.T) {
	lines := []string{
		"--- a/foo.go\t2024-01-01 00:00:00",
		"+++ b/foo.go\t2024-01-02 00:00:00",
		"@@ -1,1 +1,1 @@",
	}
	p, next, err := ParseHeader(lines, 0, &ParseOptions{})
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if p.OldName != "foo.go" || p.NewName != "foo.go" {
		t.Errorf("names = %q/%q, want foo.go/foo.go (timestamps stripped)", p.OldName, p.NewName)
	}
	if lines[next] != "@@ -1,1 +1,1 @@" {
		t.Errorf("next line = %q, want fragment header", lines[next])
	}
}

// TestParseHeader_TraditionalDialectDevNullCreate verifies /dev/null on the
// minus side marks the patch as a creation.
func TestParseHeader_TraditionalDialectDevNullCreate(t *testing.T) {
	lines := []string{
		"--- /dev/null",
		"+++ b/new.txt",
		"@@ -0,0 +1,1 @@",
	}
	p, _, err := ParseHeader(lines, 0, &ParseOptions{})
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if p.IsNew != Yes {
		t.Error("expected IsNew = Yes")
	}
	if p.NewName != "new.txt" {
		t.Errorf("NewName = %q, want new.txt", p.NewName)
	}
}

// TestParseHeader_NotAPatchStart verifies that an unrelated line returns a
// nil patch without error so the caller can advance past it.
func TestParseHeader_NotAPatchStart(t *testing.T) {
	lines := []string{"this is just a comment line", "@@ -1,1 +1,1 @@"}
	p, next, err := ParseHeader(lines, 0, &ParseOptions{})
	if err != nil {
		t.Fatalf("ParseHeader returned an error for a non-header line: %v", err)
	}
	if p != nil {
		t.Error("expected nil patch for a non-header line")
	}
	if next != 0 {
		t.Errorf("next = %d, want 0 (unchanged)", next)
	}
}

// TestParseHeader_MissingPlusLine verifies that a lone "--- a/x" with no
// following "+++" line is a malformed-header error.
func TestParseHeader_MissingPlusLine(t *testing.T) {
	lines := []string{"--- a/foo.go", "@@ -1,1 +1,1 @@"}
	_, _, err := ParseHeader(lines, 0, &ParseOptions{})
	if err == nil {
		t.Error("expected error for --- without a following +++, got nil")
	}
}

// TestGuessPValue_StandardGitPrefixes verifies that a/ b/ prefixed names
// guess p=1.
func TestGuessPValue_StandardGitPrefixes(t *testing.T) {
	if got := guessPValue("a/foo.go", "b/foo.go"); got != 1 {
		t.Errorf("guessPValue = %d, want 1", got)
	}
}

// TestGuessPValue_NoSlashPrefersZero verifies that names with no slash at
// all guess p=0.
func TestGuessPValue_NoSlashPrefersZero(t *testing.T) {
	if got := guessPValue("foo.go", "foo.go"); got != 0 {
		t.Errorf("guessPValue = %d, want 0", got)
	}
}

// TestUnquoteName_CStyleEscapes verifies that a double-quoted, C-escaped
// filename decodes its escapes.
func TestUnquoteName_CStyleEscapes(t *testing.T) {
	got := unquoteName(`"a/with\ttab.go"`)
	want := "a/with\ttab.go"
	if got != want {
		t.Errorf("unquoteName = %q, want %q", got, want)
	}
}

// TestUnquoteName_PlainNameUnchanged verifies an unquoted name passes
// through unmodified (aside from slash collapsing).
func TestUnquoteName_PlainNameUnchanged(t *testing.T) {
	if got := unquoteName("a/plain.go"); got != "a/plain.go" {
		t.Errorf("unquoteName = %q, want a/plain.go", got)
	}
}

// TestIsSuffixedVariant_OrigSuffix verifies the ".orig" backup-file
// preference rule.
func TestIsSuffixedVariant_OrigSuffix(t *testing.T) {
	if !isSuffixedVariant("foo.go.orig", "foo.go") {
		t.Error("expected foo.go.orig to be recognized as a variant of foo.go")
	}
	if isSuffixedVariant("foo.go", "foo.go.orig") {
		t.Error("did not expect the reverse direction to match")
	}
}
