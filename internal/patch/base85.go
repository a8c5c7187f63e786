package patch

import (
	"bytes"
	"fmt"

	"github.com/rybkr/gitvista/internal/gitcore"
)

// base85Alphabet is the GNU patch base85 character table. Index i decodes to
// value i; the table has no relation to RFC 1924 or Ascii85, which use
// different orderings.
const base85Alphabet = "0123456789" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"!#$%&()*+-;<=>?@^_`{|}~"

var base85Decode [256]int8

func init() {
	for i := range base85Decode {
		base85Decode[i] = -1
	}
	for i := 0; i < len(base85Alphabet); i++ {
		base85Decode[base85Alphabet[i]] = int8(i)
	}
}

// decodeBase85Line decodes one data line of a binary hunk: a length byte
// ('A'..'Z' => 1..26 bytes, 'a'..'z' => 27..52 bytes) followed by groups of
// 5 base85 characters each decoding to 4 bytes.
//
// line must not include its trailing LF. It must have length >= 7 and
// length (mod 5) == 2 to be well-formed: 1 length byte + N groups of 5,
// with the final group possibly padded but always present as a full group
// in this encoding.
func decodeBase85Line(line []byte) ([]byte, error) {
	if len(line) < 7 || len(line)%5 != 2 {
		return nil, fmt.Errorf("patch: malformed base85 line length %d", len(line))
	}

	lenChar := line[0]
	var declared int
	switch {
	case lenChar >= 'A' && lenChar <= 'Z':
		declared = int(lenChar-'A') + 1
	case lenChar >= 'a' && lenChar <= 'z':
		declared = int(lenChar-'a') + 27
	default:
		return nil, fmt.Errorf("patch: invalid base85 length char %q", lenChar)
	}

	body := line[1:]
	maxByteLength := 4 * (len(body) / 5)
	if !(maxByteLength-3 < declared && declared <= maxByteLength) {
		return nil, fmt.Errorf("patch: base85 length %d out of range for group size %d", declared, maxByteLength)
	}

	out := make([]byte, 0, maxByteLength)
	for i := 0; i < len(body); i += 5 {
		group := body[i : i+5]
		var val uint32
		for _, c := range group {
			d := base85Decode[c]
			if d < 0 {
				return nil, fmt.Errorf("patch: invalid base85 character %q", c)
			}
			val = val*85 + uint32(d)
		}
		out = append(out, byte(val>>24), byte(val>>16), byte(val>>8), byte(val))
	}
	if len(out) > declared {
		out = out[:declared]
	}
	return out, nil
}

// decodeBase85Block decodes the sequence of data lines in a binary hunk
// (terminated by a blank line, which the caller consumes separately) into
// the concatenated raw (still-deflated) bytes.
func decodeBase85Block(lines [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	for _, line := range lines {
		chunk, err := decodeBase85Line(line)
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

// inflateBinaryHunk zlib-inflates a binary hunk's base85-decoded payload and
// verifies the result is exactly origLen bytes: a successful inflation must
// produce exactly the length declared in the hunk header.
func inflateBinaryHunk(deflated []byte, origLen int) ([]byte, error) {
	out, err := gitcore.InflateLimited(bytes.NewReader(deflated))
	if err != nil {
		return nil, fmt.Errorf("patch: inflate binary hunk: %w", err)
	}
	if len(out) != origLen {
		return nil, fmt.Errorf("patch: inflated binary hunk length %d, want %d", len(out), origLen)
	}
	return out, nil
}
