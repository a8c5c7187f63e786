package gitconfig

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoad_FlatKeyLookup verifies that a bare section with a simple key
// resolves as "section.name".
func TestLoad_FlatKeyLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	content := "[core]\n\trepositoryformatversion = 0\n\tbare = false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v, ok := store.Get("core.bare")
	if !ok || v != "false" {
		t.Errorf("Get(core.bare) = (%q, %v), want (false, true)", v, ok)
	}
}

// TestLoad_SubsectionKey verifies `[section "subsection"]` resolves as
// "section.subsection.name".
func TestLoad_SubsectionKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	content := "[branch \"main\"]\n\tremote = origin\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v, ok := store.Get("branch.main.remote")
	if !ok || v != "origin" {
		t.Errorf("Get(branch.main.remote) = (%q, %v), want (origin, true)", v, ok)
	}
}

// TestLoad_MissingFileYieldsEmptyStore verifies a nonexistent config path is
// not an error and simply has no keys.
func TestLoad_MissingFileYieldsEmptyStore(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := store.Get("core.bare"); ok {
		t.Error("expected no entries in a store built from a missing file")
	}
}

// TestLoad_SkipsCommentsAndBlankLines verifies '#'/';' comment lines and
// blank lines don't interfere with parsing.
func TestLoad_SkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	content := "# a comment\n\n[core]\n; another comment\n\tbare = true\n\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v, ok := store.Get("core.bare")
	if !ok || v != "true" {
		t.Errorf("Get(core.bare) = (%q, %v), want (true, true)", v, ok)
	}
}

// TestGet_KeyLookupIsCaseInsensitive verifies key matching lowercases both
// the stored name and the lookup key.
func TestGet_KeyLookupIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	content := "[Core]\n\tBare = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v, ok := store.Get("CORE.BARE")
	if !ok || v != "true" {
		t.Errorf("Get(CORE.BARE) = (%q, %v), want (true, true)", v, ok)
	}
}

// TestLoad_KeyOutsideAnySectionIsIgnored verifies a "name = value" line
// appearing before any section header is dropped rather than panicking.
func TestLoad_KeyOutsideAnySectionIsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	content := "orphan = value\n[core]\n\tbare = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := store.Get("orphan"); ok {
		t.Error("expected the pre-section key to be ignored")
	}
}
