package patch

import (
	"strings"
	"testing"
)

func newRejectTestSession() *Session {
	return NewSession(newFakeStore(), newFakeIndex(), newFakeTree(), nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})
}

// TestBuildRejectFile_NameAndHeader verifies the synthetic header line and
// the derived ".rej" filename.
func TestBuildRejectFile_NameAndHeader(t *testing.T) {
	sess := newRejectTestSession()
	rejected := &Fragment{Rejected: true, Raw: []byte("@@ -1,1 +1,1 @@\n-old\n+new\n")}
	accepted := &Fragment{Rejected: false, Raw: []byte("@@ -5,1 +5,1 @@\n-a\n+b\n")}
	id0, id1 := sess.NewFragmentID(rejected), sess.NewFragmentID(accepted)

	p := &Patch{NewName: "foo.go", Fragments: []FragmentID{id0, id1}}
	name, content := BuildRejectFile(p, sess.FragmentByID)

	if name != "foo.go.rej" {
		t.Errorf("name = %q, want foo.go.rej", name)
	}
	if !strings.HasPrefix(string(content), "diff a/foo.go b/foo.go  (rejected hunks)\n") {
		t.Errorf("content missing expected header: %q", content)
	}
}

// TestBuildRejectFile_OnlyIncludesRejectedFragments verifies that accepted
// fragments are not written into the .rej body.
func TestBuildRejectFile_OnlyIncludesRejectedFragments(t *testing.T) {
	sess := newRejectTestSession()
	rejected := &Fragment{Rejected: true, Raw: []byte("@@ -1,1 +1,1 @@\n-old\n+new\n")}
	accepted := &Fragment{Rejected: false, Raw: []byte("@@ -9,1 +9,1 @@\n-x\n+y\n")}
	id0, id1 := sess.NewFragmentID(rejected), sess.NewFragmentID(accepted)

	p := &Patch{NewName: "bar.go", Fragments: []FragmentID{id0, id1}}
	_, content := BuildRejectFile(p, sess.FragmentByID)

	if strings.Contains(string(content), "-x\n+y\n") {
		t.Error("accepted fragment's body leaked into the reject file")
	}
	if !strings.Contains(string(content), "-old\n+new\n") {
		t.Error("rejected fragment's body missing from the reject file")
	}
}

// TestBuildRejectFile_FallsBackToOldName verifies that an empty NewName (a
// pure deletion) falls back to OldName for the synthetic name.
func TestBuildRejectFile_FallsBackToOldName(t *testing.T) {
	sess := newRejectTestSession()
	rejected := &Fragment{Rejected: true, Raw: []byte("@@ -1,1 +0,0 @@\n-gone\n")}
	id := sess.NewFragmentID(rejected)

	p := &Patch{OldName: "deleted.go", Fragments: []FragmentID{id}}
	name, _ := BuildRejectFile(p, sess.FragmentByID)

	if name != "deleted.go.rej" {
		t.Errorf("name = %q, want deleted.go.rej", name)
	}
}

// TestBuildRejectFile_TruncatesLongNames verifies the PATH_MAX-5 truncation
// rule applied before appending ".rej".
func TestBuildRejectFile_TruncatesLongNames(t *testing.T) {
	sess := newRejectTestSession()
	rejected := &Fragment{Rejected: true, Raw: []byte("@@ -1,1 +1,1 @@\n-a\n+b\n")}
	id := sess.NewFragmentID(rejected)

	longName := strings.Repeat("x", pathMax+100)
	p := &Patch{NewName: longName, Fragments: []FragmentID{id}}
	name, _ := BuildRejectFile(p, sess.FragmentByID)

	want := (pathMax - 5) + len(".rej")
	if len(name) != want {
		t.Errorf("len(name) = %d, want %d (pathMax-5 + len(\".rej\"))", len(name), want)
	}
}
