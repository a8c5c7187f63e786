package patch

import (
	"bytes"
	"fmt"

	"github.com/pterm/pterm"
)

// statDisplayName mirrors cmd/gitcli/diff.go's rename rendering ("old =>
// new") for the stat/numstat/summary renderers.
func statDisplayName(p *Patch) string {
	if p.IsRename && p.OldName != p.NewName {
		return p.OldName + " => " + p.NewName
	}
	if p.NewName != "" {
		return p.NewName
	}
	return p.OldName
}

// RenderNumstat writes tab-separated "<added>\t<deleted>\t<name>" lines,
// one per result, "-" in place of counts for binary patches.
func RenderNumstat(results []PatchResult) []byte {
	var buf bytes.Buffer
	for _, r := range results {
		if r.Patch.IsBinary {
			fmt.Fprintf(&buf, "-\t-\t%s\n", statDisplayName(r.Patch))
			continue
		}
		fmt.Fprintf(&buf, "%d\t%d\t%s\n", r.Additions, r.Deletions, statDisplayName(r.Patch))
	}
	return buf.Bytes()
}

// RenderSummary writes create/delete/rename/mode-change lines, the text
// counterpart of cmd/gitcli/diff.go's per-file status line.
func RenderSummary(results []PatchResult) []byte {
	var buf bytes.Buffer
	for _, r := range results {
		p := r.Patch
		switch {
		case p.IsNew == Yes:
			fmt.Fprintf(&buf, " create mode %06o %s\n", p.NewMode, p.NewName)
		case p.IsDelete == Yes:
			fmt.Fprintf(&buf, " delete mode %06o %s\n", p.OldMode, p.OldName)
		case p.IsRename:
			fmt.Fprintf(&buf, " rename %s => %s (%d%%)\n", p.OldName, p.NewName, p.Score)
		case p.IsCopy:
			fmt.Fprintf(&buf, " copy %s => %s (%d%%)\n", p.OldName, p.NewName, p.Score)
		case p.OldMode != p.NewMode && p.OldMode != 0 && p.NewMode != 0:
			fmt.Fprintf(&buf, " mode change %06o => %06o %s\n", p.OldMode, p.NewMode, p.NewName)
		}
	}
	return buf.Bytes()
}

// RenderStat builds the pterm-rendered scaled diffstat: a fixed-width name
// column (mirroring printDiffStat's maxNameLen alignment) followed by a
// horizontal bar chart scaled to the largest single-file change count.
func RenderStat(results []PatchResult) string {
	if len(results) == 0 {
		return ""
	}

	maxNameLen := 0
	maxTotal := 1
	for _, r := range results {
		name := statDisplayName(r.Patch)
		if len(name) > maxNameLen {
			maxNameLen = len(name)
		}
		if total := r.Additions + r.Deletions; total > maxTotal {
			maxTotal = total
		}
	}

	var lines []string
	totalAdd, totalDel := 0, 0
	for _, r := range results {
		name := statDisplayName(r.Patch)
		totalAdd += r.Additions
		totalDel += r.Deletions

		if r.Patch.IsBinary {
			lines = append(lines, fmt.Sprintf(" %-*s | Bin", maxNameLen, name))
			continue
		}

		total := r.Additions + r.Deletions
		scaled := (total*40 + maxTotal/2) / maxTotal
		bar := pterm.Bars{
			{Label: "+", Value: scaledPart(r.Additions, total, scaled)},
			{Label: "-", Value: scaledPart(r.Deletions, total, scaled)},
		}
		rendered, _ := pterm.DefaultBarChart.WithBars(bar).WithHorizontal().WithShowValue(false).Srender()
		lines = append(lines, fmt.Sprintf(" %-*s | %-3d %s", maxNameLen, name, total, rendered))
	}

	summary := fmt.Sprintf(" %d file(s) changed, %d insertion(s)(+), %d deletion(s)(-)\n",
		len(results), totalAdd, totalDel)

	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	buf.WriteString(summary)
	return buf.String()
}

// scaledPart scales one side of an additions/deletions pair proportionally
// into the fragment's allotted bar width.
func scaledPart(side, total, scaled int) int {
	if total == 0 {
		return 0
	}
	return (side*scaled + total/2) / total
}
