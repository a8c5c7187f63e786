package gitindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rybkr/gitvista/internal/gitcore"
)

func testHash(b byte) [20]byte {
	var h [20]byte
	for i := range h {
		h[i] = b
	}
	return h
}

// TestWriter_StageFileThenLookup verifies a staged entry round-trips
// through Lookup.
func TestWriter_StageFileThenLookup(t *testing.T) {
	w := NewWriter()
	hash := testHash(0xAB)
	if err := w.StageFile("foo.go", 0100644, hash); err != nil {
		t.Fatalf("StageFile failed: %v", err)
	}

	entry, ok := w.Lookup("foo.go")
	if !ok {
		t.Fatal("expected Lookup to find the staged entry")
	}
	if entry.Mode != 0100644 || entry.Hash != hash {
		t.Errorf("entry = %+v, want mode=100644 hash=%x", entry, hash)
	}
}

// TestWriter_StageRemove verifies a removed path is no longer found by
// Lookup.
func TestWriter_StageRemove(t *testing.T) {
	w := NewWriter()
	_ = w.StageFile("gone.go", 0100644, testHash(1))
	if err := w.StageRemove("gone.go"); err != nil {
		t.Fatalf("StageRemove failed: %v", err)
	}
	if _, ok := w.Lookup("gone.go"); ok {
		t.Error("expected the removed path to be absent")
	}
}

// TestWriter_StageFileOverwritesExisting verifies staging the same path
// twice keeps only the latest mode/hash.
func TestWriter_StageFileOverwritesExisting(t *testing.T) {
	w := NewWriter()
	_ = w.StageFile("f.go", 0100644, testHash(1))
	_ = w.StageFile("f.go", 0100755, testHash(2))

	entry, ok := w.Lookup("f.go")
	if !ok {
		t.Fatal("expected entry to be present")
	}
	if entry.Mode != 0100755 || entry.Hash != testHash(2) {
		t.Errorf("entry = %+v, want the second staged mode/hash", entry)
	}
}

// TestLoadFromCore_PreloadsExistingEntries verifies LoadFromCore copies
// every stage-0 entry from a parsed gitcore.Index into the Writer.
func TestLoadFromCore_PreloadsExistingEntries(t *testing.T) {
	idx := &gitcore.Index{
		ByPath: map[string]*gitcore.IndexEntry{
			"a.go": {Mode: 0100644, Hash: gitcore.Hash("0102030405060708090a0b0c0d0e0f1011121314")},
		},
	}

	w, err := LoadFromCore(idx)
	if err != nil {
		t.Fatalf("LoadFromCore failed: %v", err)
	}
	entry, ok := w.Lookup("a.go")
	if !ok {
		t.Fatal("expected preloaded entry to be present")
	}
	if entry.Mode != 0100644 {
		t.Errorf("Mode = %o, want 100644", entry.Mode)
	}
	want := [20]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14}
	if entry.Hash != want {
		t.Errorf("Hash = %x, want %x", entry.Hash, want)
	}
}

// TestLoadFromCore_RejectsMalformedHash verifies a non-hex or wrong-length
// stored hash surfaces as an error rather than a silent zero hash.
func TestLoadFromCore_RejectsMalformedHash(t *testing.T) {
	idx := &gitcore.Index{
		ByPath: map[string]*gitcore.IndexEntry{
			"bad.go": {Mode: 0100644, Hash: gitcore.Hash("not-hex")},
		},
	}
	if _, err := LoadFromCore(idx); err == nil {
		t.Error("expected an error for a malformed hash")
	}
}

// TestWriter_WriteTo_ProducesDIRCHeader verifies the encoded index file
// starts with the "DIRC" magic, version 2, and the correct entry count.
func TestWriter_WriteTo_ProducesDIRCHeader(t *testing.T) {
	w := NewWriter()
	_ = w.StageFile("b.go", 0100644, testHash(1))
	_ = w.StageFile("a.go", 0100644, testHash(2))

	path := filepath.Join(t.TempDir(), "index")
	if err := w.WriteTo(path); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) < 12 {
		t.Fatalf("encoded index too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "DIRC" {
		t.Errorf("magic = %q, want DIRC", data[0:4])
	}
	version := uint32(data[4])<<24 | uint32(data[5])<<16 | uint32(data[6])<<8 | uint32(data[7])
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
	count := uint32(data[8])<<24 | uint32(data[9])<<16 | uint32(data[10])<<8 | uint32(data[11])
	if count != 2 {
		t.Errorf("entry count = %d, want 2", count)
	}
}

// TestWriter_WriteTo_EntriesArePathSorted verifies entries are written in
// ascending path order regardless of staging order.
func TestWriter_WriteTo_EntriesArePathSorted(t *testing.T) {
	w := NewWriter()
	_ = w.StageFile("z.go", 0100644, testHash(1))
	_ = w.StageFile("a.go", 0100644, testHash(2))

	path := filepath.Join(t.TempDir(), "index")
	if err := w.WriteTo(path); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	idxA := indexOf(data, []byte("a.go"))
	idxZ := indexOf(data, []byte("z.go"))
	if idxA < 0 || idxZ < 0 {
		t.Fatalf("expected both path names to appear in the encoded index")
	}
	if idxA > idxZ {
		t.Error("expected a.go to be written before z.go")
	}
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
