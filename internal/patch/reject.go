package patch

import (
	"bytes"
	"fmt"
)

// pathMax mirrors the historical tool's PATH_MAX-based truncation of a
// ".rej" file's synthetic header name.
const pathMax = 4096

// BuildRejectFile renders the ".rej" contents for a patch with at least one
// rejected fragment: a synthetic "diff a/<name> b/<name>
// (rejected hunks)" header, followed by each rejected fragment's original
// bytes verbatim. The returned name is p.NewName (falling back to OldName)
// with ".rej" appended, truncated to PATH_MAX-5 first if necessary.
func BuildRejectFile(p *Patch, fragmentByID func(FragmentID) *Fragment) (name string, content []byte) {
	base := p.NewName
	if base == "" {
		base = p.OldName
	}
	if len(base) > pathMax-5 {
		base = base[:pathMax-5]
	}
	name = base + ".rej"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "diff a/%s b/%s  (rejected hunks)\n", base, base)
	for _, fid := range p.Fragments {
		f := fragmentByID(fid)
		if !f.Rejected {
			continue
		}
		buf.Write(f.Raw)
	}
	return name, buf.Bytes()
}
