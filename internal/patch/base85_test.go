package patch

import (
	"bytes"
	"compress/zlib"
	"testing"
)

// encodeBase85Line is a minimal test-only encoder mirroring decodeBase85Line's
// format: one length byte followed by 5-character groups for every (padded)
// 4-byte chunk of data.
func encodeBase85Line(data []byte) []byte {
	n := len(data)
	var lenChar byte
	switch {
	case n >= 1 && n <= 26:
		lenChar = byte('A' + n - 1)
	case n >= 27 && n <= 52:
		lenChar = byte('a' + n - 27)
	default:
		panic("encodeBase85Line: length out of range")
	}

	padded := make([]byte, n)
	copy(padded, data)
	for len(padded)%4 != 0 {
		padded = append(padded, 0)
	}

	out := []byte{lenChar}
	for i := 0; i < len(padded); i += 4 {
		var val uint32
		for j := 0; j < 4; j++ {
			val = val<<8 | uint32(padded[i+j])
		}
		var group [5]byte
		for j := 4; j >= 0; j-- {
			group[j] = base85Alphabet[val%85]
			val /= 85
		}
		out = append(out, group[:]...)
	}
	return out
}

// TestDecodeBase85Line_RoundTrip verifies that encoding and then decoding a
// payload recovers the original bytes, across several lengths straddling
// group and length-byte boundaries.
func TestDecodeBase85Line_RoundTrip(t *testing.T) {
	for _, n := range []int{1, 3, 4, 5, 8, 26, 27, 52} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*7 + 1)
		}
		line := encodeBase85Line(data)
		got, err := decodeBase85Line(line)
		if err != nil {
			t.Fatalf("n=%d: decodeBase85Line failed: %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("n=%d: got %v, want %v", n, got, data)
		}
	}
}

// TestDecodeBase85Line_InvalidLengthChar verifies that a length byte outside
// 'A'-'Z'/'a'-'z' is rejected.
func TestDecodeBase85Line_InvalidLengthChar(t *testing.T) {
	line := append([]byte{'0'}, bytes.Repeat([]byte{'0'}, 5)...)
	if _, err := decodeBase85Line(line); err == nil {
		t.Error("expected error for invalid length character, got nil")
	}
}

// TestDecodeBase85Line_TooShort verifies that lines shorter than 7 bytes are
// rejected outright.
func TestDecodeBase85Line_TooShort(t *testing.T) {
	if _, err := decodeBase85Line([]byte("Az")); err == nil {
		t.Error("expected error for too-short line, got nil")
	}
}

// TestDecodeBase85Line_BadModulo verifies that a line whose length is not
// 2 (mod 5) is rejected.
func TestDecodeBase85Line_BadModulo(t *testing.T) {
	line := make([]byte, 10) // 10 % 5 == 0, not 2
	for i := range line {
		line[i] = '0'
	}
	if _, err := decodeBase85Line(line); err == nil {
		t.Error("expected error for bad modulo length, got nil")
	}
}

// TestDecodeBase85Line_InvalidCharacter verifies that a non-alphabet byte in
// the body is rejected.
func TestDecodeBase85Line_InvalidCharacter(t *testing.T) {
	line := encodeBase85Line([]byte{1, 2, 3, 4})
	line[1] = ' ' // space is not in the base85 alphabet
	if _, err := decodeBase85Line(line); err == nil {
		t.Error("expected error for invalid base85 character, got nil")
	}
}

// TestDecodeBase85Block_Concatenates verifies that multiple data lines
// decode and concatenate in order.
func TestDecodeBase85Block_Concatenates(t *testing.T) {
	a := []byte("hello world this is a test payload of bytes")
	b := []byte("more trailing bytes here")

	lines := [][]byte{encodeBase85Line(a), encodeBase85Line(b)}
	got, err := decodeBase85Block(lines)
	if err != nil {
		t.Fatalf("decodeBase85Block failed: %v", err)
	}
	want := append(append([]byte{}, a...), b...)
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestInflateBinaryHunk_RoundTrip verifies that a zlib-compressed payload
// inflates back to its original bytes when the length matches.
func TestInflateBinaryHunk_RoundTrip(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog, repeated for bulk: " +
		"the quick brown fox jumps over the lazy dog")

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(original); err != nil {
		t.Fatalf("zlib write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close failed: %v", err)
	}

	got, err := inflateBinaryHunk(buf.Bytes(), len(original))
	if err != nil {
		t.Fatalf("inflateBinaryHunk failed: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("got %q, want %q", got, original)
	}
}

// TestInflateBinaryHunk_LengthMismatch verifies that a declared length not
// matching the inflated output is rejected.
func TestInflateBinaryHunk_LengthMismatch(t *testing.T) {
	original := []byte("short payload")

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(original)
	_ = w.Close()

	if _, err := inflateBinaryHunk(buf.Bytes(), len(original)+5); err == nil {
		t.Error("expected error for length mismatch, got nil")
	}
}
