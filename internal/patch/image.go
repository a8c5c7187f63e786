package patch

import "fmt"

// Image is a contiguous byte buffer plus an ordered line table covering it.
// The sum of Lines[i].Len always equals len(Buf).
type Image struct {
	Buf   []byte
	Lines []Line
}

// NewImage builds an Image by walking buf into its line table.
func NewImage(buf []byte) *Image {
	return &Image{Buf: buf, Lines: BuildLineTable(buf)}
}

// Offset returns the byte offset of the start of logical line i (i may
// equal len(Lines) to mean end-of-buffer).
func (img *Image) Offset(i int) int {
	off := 0
	for j := 0; j < i && j < len(img.Lines); j++ {
		off += img.Lines[j].Len
	}
	return off
}

// LineBytes returns the raw bytes of logical line i, including its
// trailing LF unless it is the final line and has no EOL.
func (img *Image) LineBytes(i int) []byte {
	start := img.Offset(i)
	return img.Buf[start : start+img.Lines[i].Len]
}

// RemoveFirstLine advances the buffer's start past its first line.
func (img *Image) RemoveFirstLine() {
	if len(img.Lines) == 0 {
		return
	}
	img.Buf = img.Buf[img.Lines[0].Len:]
	img.Lines = img.Lines[1:]
}

// RemoveLastLine shrinks the buffer's end to drop its last line.
func (img *Image) RemoveLastLine() {
	if len(img.Lines) == 0 {
		return
	}
	last := img.Lines[len(img.Lines)-1]
	img.Buf = img.Buf[:len(img.Buf)-last.Len]
	img.Lines = img.Lines[:len(img.Lines)-1]
}

// UpdateImage replaces the preCount lines starting at logical line pos with
// post (a fully LF-terminated-or-not byte run), rebuilding the line table
// for the spliced span and preserving the line-sum invariant over the whole
// image.
func (img *Image) UpdateImage(pos, preCount int, post []byte) error {
	if pos < 0 || preCount < 0 || pos+preCount > len(img.Lines) {
		return fmt.Errorf("patch: update_image: pos=%d preCount=%d out of range (have %d lines)", pos, preCount, len(img.Lines))
	}

	startOff := img.Offset(pos)
	endOff := img.Offset(pos + preCount)

	newBuf := make([]byte, 0, len(img.Buf)-(endOff-startOff)+len(post))
	newBuf = append(newBuf, img.Buf[:startOff]...)
	newBuf = append(newBuf, post...)
	newBuf = append(newBuf, img.Buf[endOff:]...)

	postLines := BuildLineTable(post)

	newLines := make([]Line, 0, len(img.Lines)-preCount+len(postLines))
	newLines = append(newLines, img.Lines[:pos]...)
	newLines = append(newLines, postLines...)
	newLines = append(newLines, img.Lines[pos+preCount:]...)

	img.Buf = newBuf
	img.Lines = newLines
	return nil
}

// Len reports the byte length of the image's buffer.
func (img *Image) Len() int { return len(img.Buf) }
