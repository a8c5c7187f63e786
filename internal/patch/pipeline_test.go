package patch

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeStore struct {
	blobs map[[20]byte][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{blobs: make(map[[20]byte][]byte)} }

func (s *fakeStore) ReadBlob(hash [20]byte) ([]byte, error) {
	if b, ok := s.blobs[hash]; ok {
		return b, nil
	}
	return nil, errors.New("blob not found")
}

func (s *fakeStore) HashBlob(content []byte) [20]byte {
	var h [20]byte
	copy(h[:], content)
	return h
}

type fakeIndex struct {
	entries map[string]IndexEntry
}

func newFakeIndex() *fakeIndex { return &fakeIndex{entries: make(map[string]IndexEntry)} }

func (i *fakeIndex) Lookup(path string) (IndexEntry, bool) {
	e, ok := i.entries[path]
	return e, ok
}

func (i *fakeIndex) StageFile(path string, mode uint32, hash [20]byte) error {
	i.entries[path] = IndexEntry{Path: path, Mode: mode, Hash: hash}
	return nil
}

func (i *fakeIndex) StageRemove(path string) error {
	delete(i.entries, path)
	return nil
}

func (i *fakeIndex) WriteTo(path string) error {
	return nil
}

type fakeTree struct {
	files map[string][]byte
}

func newFakeTree() *fakeTree { return &fakeTree{files: make(map[string][]byte)} }

func (t *fakeTree) Stat(path string) (uint32, bool, error) {
	content, ok := t.files[path]
	if !ok {
		return 0, false, nil
	}
	_ = content
	return 0100644, true, nil
}

func (t *fakeTree) ReadFile(path string) ([]byte, error) {
	content, ok := t.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return content, nil
}

func (t *fakeTree) ReadSymlink(path string) (string, error) {
	return "", errors.New("not a symlink")
}

func (t *fakeTree) WriteFile(path string, mode uint32, content []byte) error {
	t.files[path] = content
	return nil
}

func (t *fakeTree) Remove(path string) error {
	delete(t.files, path)
	return nil
}

// TestSession_Run_SingleFragmentModification verifies an end-to-end run
// against a working tree preimage produces the expected postimage and a
// zero-rejection result.
func TestSession_Run_SingleFragmentModification(t *testing.T) {
	tree := newFakeTree()
	tree.files["foo.go"] = []byte("a\nb\nc\n")

	var diag bytes.Buffer
	sess := NewSession(newFakeStore(), newFakeIndex(), tree, nil, &diag, ApplyFlags{UnidiffRule: DefaultWSRule})

	f := &Fragment{
		OldPos: 2, OldLines: 1, NewPos: 2, NewLines: 1,
		Lines: []FragmentLine{deleteLine("b\n"), addLine("B\n")},
	}
	p := &Patch{OldName: "foo.go", NewName: "foo.go", Fragments: []FragmentID{sess.NewFragmentID(f)}}

	results, err := sess.Run([]*Patch{p})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if string(p.Result) != "a\nB\nc\n" {
		t.Errorf("p.Result = %q, want %q", p.Result, "a\nB\nc\n")
	}
	if results[0].Additions != 1 || results[0].Deletions != 1 {
		t.Errorf("Additions/Deletions = %d/%d, want 1/1", results[0].Additions, results[0].Deletions)
	}
}

// TestSession_Run_PureCreationHasEmptyPreimage verifies that a patch marked
// IsNew resolves an empty preimage regardless of collaborator state.
func TestSession_Run_PureCreationHasEmptyPreimage(t *testing.T) {
	sess := NewSession(newFakeStore(), newFakeIndex(), newFakeTree(), nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})

	f := &Fragment{
		OldPos: 0, OldLines: 0, NewPos: 1, NewLines: 1,
		Lines: []FragmentLine{addLine("hello\n")},
	}
	p := &Patch{NewName: "new.go", IsNew: Yes, Fragments: []FragmentID{sess.NewFragmentID(f)}}

	results, err := sess.Run([]*Patch{p})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(results[0].Patch.Result) != "hello\n" {
		t.Errorf("Result = %q, want %q", results[0].Patch.Result, "hello\n")
	}
}

// TestSession_Run_CachedModeReadsFromIndex verifies that Cached=true routes
// preimage resolution through the Index/ObjectStore pair instead of the
// working tree.
func TestSession_Run_CachedModeReadsFromIndex(t *testing.T) {
	store := newFakeStore()
	pre := []byte("x\ny\n")
	hash := store.HashBlob(pre)
	store.blobs[hash] = pre

	idx := newFakeIndex()
	idx.entries["f.go"] = IndexEntry{Path: "f.go", Mode: 0100644, Hash: hash}

	sess := NewSession(store, idx, newFakeTree(), nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})
	sess.Cached = true

	f := &Fragment{
		OldPos: 1, OldLines: 1, NewPos: 1, NewLines: 1,
		Lines: []FragmentLine{deleteLine("x\n"), addLine("X\n")},
	}
	p := &Patch{OldName: "f.go", NewName: "f.go", Fragments: []FragmentID{sess.NewFragmentID(f)}}

	results, err := sess.Run([]*Patch{p})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(results[0].Patch.Result) != "X\ny\n" {
		t.Errorf("Result = %q, want %q", results[0].Patch.Result, "X\ny\n")
	}
}

// TestSession_Run_CachedModeMissingEntryErrors verifies that --cached
// --index with no matching index entry is a hard error.
func TestSession_Run_CachedModeMissingEntryErrors(t *testing.T) {
	sess := NewSession(newFakeStore(), newFakeIndex(), newFakeTree(), nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})
	sess.Cached = true
	sess.UseIndex = true

	f := &Fragment{OldPos: 1, OldLines: 1, NewPos: 1, NewLines: 1, Lines: []FragmentLine{deleteLine("a\n"), addLine("b\n")}}
	p := &Patch{OldName: "missing.go", NewName: "missing.go", Fragments: []FragmentID{sess.NewFragmentID(f)}}

	_, err := sess.Run([]*Patch{p})
	if !errors.Is(err, ErrIndexMissing) {
		t.Errorf("err = %v, want ErrIndexMissing", err)
	}
}

// TestSession_Run_SecondPatchSeesFirstPatchResult verifies that
// resolvePreimage's file-table precedence lets a second patch in the same
// session build on the first patch's in-memory result rather than the
// (stale) working tree content.
func TestSession_Run_SecondPatchSeesFirstPatchResult(t *testing.T) {
	tree := newFakeTree()
	tree.files["shared.go"] = []byte("a\nb\n")

	sess := NewSession(newFakeStore(), newFakeIndex(), tree, nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})

	f1 := &Fragment{OldPos: 2, OldLines: 1, NewPos: 2, NewLines: 1, Lines: []FragmentLine{deleteLine("b\n"), addLine("B\n")}}
	p1 := &Patch{OldName: "shared.go", NewName: "shared.go", Fragments: []FragmentID{sess.NewFragmentID(f1)}}

	f2 := &Fragment{OldPos: 2, OldLines: 1, NewPos: 2, NewLines: 1, Lines: []FragmentLine{deleteLine("B\n"), addLine("BB\n")}}
	p2 := &Patch{OldName: "shared.go", NewName: "shared.go", Fragments: []FragmentID{sess.NewFragmentID(f2)}}

	results, err := sess.Run([]*Patch{p1, p2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(results[1].Patch.Result) != "a\nBB\n" {
		t.Errorf("second patch Result = %q, want %q", results[1].Patch.Result, "a\nBB\n")
	}
}

// TestSession_Run_DeleteThenCreateSamePath verifies that deleting a path and
// creating a new file at the same path within one stream is permitted via
// the TO_BE_DELETED/WAS_DELETED sentinel handling, rather than erroring as
// a path conflict.
func TestSession_Run_DeleteThenCreateSamePath(t *testing.T) {
	tree := newFakeTree()
	tree.files["x.go"] = []byte("old content\n")

	sess := NewSession(newFakeStore(), newFakeIndex(), tree, nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})

	fdel := &Fragment{OldPos: 1, OldLines: 1, NewPos: 0, NewLines: 0, Lines: []FragmentLine{deleteLine("old content\n")}}
	pdel := &Patch{OldName: "x.go", NewName: "", IsDelete: Yes, Fragments: []FragmentID{sess.NewFragmentID(fdel)}}

	fnew := &Fragment{OldPos: 0, OldLines: 0, NewPos: 1, NewLines: 1, Lines: []FragmentLine{addLine("new content\n")}}
	pnew := &Patch{OldName: "", NewName: "x.go", IsNew: Yes, Fragments: []FragmentID{sess.NewFragmentID(fnew)}}

	results, err := sess.Run([]*Patch{pdel, pnew})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(results[1].Patch.Result) != "new content\n" {
		t.Errorf("second patch Result = %q, want %q", results[1].Patch.Result, "new content\n")
	}
}

// TestSession_Run_RejectWithoutFlagAborts verifies that a fragment rejection
// aborts the run with a PatchError when Reject is not set.
func TestSession_Run_RejectWithoutFlagAborts(t *testing.T) {
	tree := newFakeTree()
	tree.files["foo.go"] = []byte("a\nb\nc\n")

	sess := NewSession(newFakeStore(), newFakeIndex(), tree, nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})

	f := &Fragment{
		OldPos: 1, OldLines: 1, NewPos: 1, NewLines: 1,
		Lines: []FragmentLine{deleteLine("zzz\n"), addLine("ZZZ\n")},
	}
	p := &Patch{OldName: "foo.go", NewName: "foo.go", Fragments: []FragmentID{sess.NewFragmentID(f)}}

	_, err := sess.Run([]*Patch{p})
	if err == nil {
		t.Fatal("expected an error when a fragment is rejected and Reject is false")
	}
	var patchErr *PatchError
	if !errors.As(err, &patchErr) {
		t.Errorf("err = %v, want a *PatchError", err)
	}
}

// TestSession_Run_RejectWithFlagContinues verifies that with Reject set, a
// rejected fragment does not abort the run, and the result is flagged.
func TestSession_Run_RejectWithFlagContinues(t *testing.T) {
	tree := newFakeTree()
	tree.files["foo.go"] = []byte("a\nb\nc\n")

	sess := NewSession(newFakeStore(), newFakeIndex(), tree, nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})
	sess.Reject = true

	f := &Fragment{
		OldPos: 1, OldLines: 1, NewPos: 1, NewLines: 1,
		Lines: []FragmentLine{deleteLine("zzz\n"), addLine("ZZZ\n")},
	}
	p := &Patch{OldName: "foo.go", NewName: "foo.go", Fragments: []FragmentID{sess.NewFragmentID(f)}}
	results, err := sess.Run([]*Patch{p})
	if err != nil {
		t.Fatalf("Run failed unexpectedly: %v", err)
	}
	if !results[0].Rejected {
		t.Error("expected result to be flagged Rejected")
	}
}

// TestParseStream_MultiplePatchesWithFragments verifies that ParseStream
// splits a two-file unified diff stream into two patches, each carrying
// its own registered fragment.
func TestParseStream_MultiplePatchesWithFragments(t *testing.T) {
	raw := "diff --git a/one.go b/one.go\n" +
		"index 1111111..2222222 100644\n" +
		"--- a/one.go\n" +
		"+++ b/one.go\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-old1\n" +
		"+new1\n" +
		"diff --git a/two.go b/two.go\n" +
		"index 3333333..4444444 100644\n" +
		"--- a/two.go\n" +
		"+++ b/two.go\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-old2\n" +
		"+new2\n"

	lines := splitNoTrailingEmpty(raw)
	sess := NewSession(newFakeStore(), newFakeIndex(), newFakeTree(), nil, nil, ApplyFlags{UnidiffRule: DefaultWSRule})
	patches, err := sess.ParseStream(lines, &ParseOptions{}, false)
	if err != nil {
		t.Fatalf("ParseStream failed: %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("len(patches) = %d, want 2", len(patches))
	}
	if patches[0].NewName != "one.go" || patches[1].NewName != "two.go" {
		t.Errorf("names = %q/%q, want one.go/two.go", patches[0].NewName, patches[1].NewName)
	}
	if len(patches[0].Fragments) != 1 || len(patches[1].Fragments) != 1 {
		t.Error("expected exactly one fragment registered per patch")
	}
}

func splitNoTrailingEmpty(raw string) []string {
	lines := []string{}
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			lines = append(lines, raw[start:i])
			start = i + 1
		}
	}
	if start < len(raw) {
		lines = append(lines, raw[start:])
	}
	return lines
}

// TestAcquireIndexLock_SucceedsOnFirstTry verifies the happy path: create
// succeeds immediately and no retries occur.
func TestAcquireIndexLock_SucceedsOnFirstTry(t *testing.T) {
	var calls, removeCalls int32
	release, err := AcquireIndexLock(context.Background(), func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, func() error {
		atomic.AddInt32(&removeCalls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("AcquireIndexLock failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	if err := release(); err != nil {
		t.Errorf("release() = %v, want nil", err)
	}
	if removeCalls != 1 {
		t.Errorf("remove called %d times, want 1 (release must actually remove the lock)", removeCalls)
	}
}

// TestAcquireIndexLock_RetriesThenSucceeds verifies that a transient
// create failure is retried and eventually succeeds.
func TestAcquireIndexLock_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	_, err := AcquireIndexLock(context.Background(), func() error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return errors.New("lock held")
		}
		return nil
	}, func() error { return nil })
	if err != nil {
		t.Fatalf("AcquireIndexLock failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("create called %d times, want 3", calls)
	}
}

// TestSession_Run_WSRulesOverridePerPath verifies that when a WSRuleSet is
// loaded, a path-specific entry with WSError policy fails the run even
// though the session's flat --whitespace flag is just warn.
func TestSession_Run_WSRulesOverridePerPath(t *testing.T) {
	tree := newFakeTree()
	tree.files["strict.go"] = []byte("a\n")

	sess := NewSession(newFakeStore(), newFakeIndex(), tree, nil, nil, ApplyFlags{UnidiffRule: WSRule{Policy: WSWarn}})

	f := &Fragment{
		OldPos: 1, OldLines: 1, NewPos: 1, NewLines: 1,
		Lines: []FragmentLine{deleteLine("a\n"), addLine("a ")},
	}
	p := &Patch{OldName: "strict.go", NewName: "strict.go", Fragments: []FragmentID{sess.NewFragmentID(f)}}

	sess.WSRules = WSRuleSet{
		Entries: []WSRuleEntry{
			{Pattern: "*.go", Rule: WSRule{Classes: WSTrailingWhitespace, Policy: WSError}},
		},
		Default: WSRule{Policy: WSWarn},
	}

	_, err := sess.Run([]*Patch{p})
	if err == nil {
		t.Fatal("expected a whitespace violation error from the per-path WSError rule")
	}
	if !errors.Is(err, ErrWhitespaceViolation) {
		t.Errorf("err = %v, want it to wrap ErrWhitespaceViolation", err)
	}
}

// TestSession_Run_WSRulesLeaveFlatFlagInEffectWhenUnset verifies that an
// empty WSRules (no sidecar loaded) falls back to the flat flag and never
// fails on a path that would otherwise match a glob entry.
func TestSession_Run_WSRulesLeaveFlatFlagInEffectWhenUnset(t *testing.T) {
	tree := newFakeTree()
	tree.files["strict.go"] = []byte("a\n")

	sess := NewSession(newFakeStore(), newFakeIndex(), tree, nil, nil, ApplyFlags{UnidiffRule: WSRule{Policy: WSWarn}})

	f := &Fragment{
		OldPos: 1, OldLines: 1, NewPos: 1, NewLines: 1,
		Lines: []FragmentLine{deleteLine("a\n"), addLine("a ")},
	}
	p := &Patch{OldName: "strict.go", NewName: "strict.go", Fragments: []FragmentID{sess.NewFragmentID(f)}}

	if _, err := sess.Run([]*Patch{p}); err != nil {
		t.Errorf("Run failed: %v, want nil (flat flag is warn-only)", err)
	}
}
