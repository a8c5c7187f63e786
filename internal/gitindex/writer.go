// Package gitindex adds a write-back half to gitcore's read-only .git/index
// parser: staging file adds/removes and re-encoding the DIRC v2 format,
// mirroring the field layout internal/gitcore/index.go decodes.
package gitindex

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"crypto/sha1" //nolint:gosec // Git's index checksum and object ids are SHA-1

	"github.com/rybkr/gitvista/internal/gitcore"
	"github.com/rybkr/gitvista/internal/patch"
)

const (
	indexMagic          = "DIRC"
	indexVersion        = 2
	indexFixedEntrySize = 62
	indexEntryAlignment = 8
)

type stagedEntry struct {
	mode uint32
	hash [20]byte
}

// Writer is a mutable in-memory index: staged (path, mode, hash) entries
// that can be written back to .git/index. It implements patch.Index.
type Writer struct {
	entries map[string]stagedEntry
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{entries: make(map[string]stagedEntry)}
}

// LoadFromCore preloads a Writer with every stage-0 entry from a
// gitcore.Index already parsed by gitcore.ReadIndex.
func LoadFromCore(idx *gitcore.Index) (*Writer, error) {
	w := NewWriter()
	for path, e := range idx.ByPath {
		hash, err := hashToBytes(string(e.Hash))
		if err != nil {
			return nil, fmt.Errorf("gitindex: loading %s: %w", path, err)
		}
		w.entries[path] = stagedEntry{mode: e.Mode, hash: hash}
	}
	return w, nil
}

func hashToBytes(hexHash string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(hexHash)
	if err != nil || len(raw) != 20 {
		return out, fmt.Errorf("invalid hash %q", hexHash)
	}
	copy(out[:], raw)
	return out, nil
}

// Lookup implements patch.Index.
func (w *Writer) Lookup(path string) (patch.IndexEntry, bool) {
	e, ok := w.entries[path]
	if !ok {
		return patch.IndexEntry{}, false
	}
	return patch.IndexEntry{Path: path, Mode: e.mode, Hash: e.hash}, true
}

// StageFile implements patch.Index: records path at mode/hash, overwriting
// any existing entry for the same path.
func (w *Writer) StageFile(path string, mode uint32, hash [20]byte) error {
	w.entries[path] = stagedEntry{mode: mode, hash: hash}
	return nil
}

// StageRemove implements patch.Index.
func (w *Writer) StageRemove(path string) error {
	delete(w.entries, path)
	return nil
}

// WriteTo encodes the staged entries as a DIRC v2 file and writes it to
// path. Entries are written in path-sorted order, as Git requires.
func (w *Writer) WriteTo(path string) error {
	paths := make([]string, 0, len(w.entries))
	for p := range w.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf []byte
	buf = append(buf, indexMagic...)
	buf = appendUint32(buf, indexVersion)
	buf = appendUint32(buf, uint32(len(paths)))

	for _, p := range paths {
		e := w.entries[p]
		buf = appendIndexEntry(buf, p, e)
	}

	sum := sha1.Sum(buf) //nolint:gosec // Git index trailer checksum is SHA-1 by format
	buf = append(buf, sum[:]...)

	//nolint:gosec // G306: index file permissions match Git's own 0644 convention
	return os.WriteFile(path, buf, 0o644)
}

func appendIndexEntry(buf []byte, path string, e stagedEntry) []byte {
	start := len(buf)
	var fixed [indexFixedEntrySize]byte
	// ctime/mtime/dev/inode/uid/gid/file_size are left zero: this writer
	// does not track on-disk stat metadata, only the staged (path, mode,
	// hash) triple.
	binary.BigEndian.PutUint32(fixed[24:28], e.mode)
	copy(fixed[40:60], e.hash[:])
	// flags: low 12 bits are the name length, capped at 0xFFF.
	nameLen := len(path)
	if nameLen > 0xFFF {
		nameLen = 0xFFF
	}
	binary.BigEndian.PutUint16(fixed[60:62], uint16(nameLen))

	buf = append(buf, fixed[:]...)
	buf = append(buf, path...)
	buf = append(buf, 0)

	total := len(buf) - start
	padded := (total + indexEntryAlignment - 1) &^ (indexEntryAlignment - 1)
	for len(buf)-start < padded {
		buf = append(buf, 0)
	}
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
