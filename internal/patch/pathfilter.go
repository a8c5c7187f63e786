package patch

import (
	"path/filepath"
	"strings"
)

// PathFilter implements --include/--exclude glob matching. A path
// is accepted when it matches at least one include pattern (or there are
// none) and no exclude pattern.
//
// The glob engine itself (matchGlob/matchSegments, "**" zero-or-more-
// components support) is adapted from gitcore/gitignore.go's matcher,
// stripped of negation ('!') and directory-only ('/') scoping, which apply
// to directory tree walks and have no meaning when filtering patch hunks
// by destination path.
type PathFilter struct {
	Include []string
	Exclude []string
}

// Allows reports whether path should be processed.
func (f PathFilter) Allows(path string) bool {
	for _, pat := range f.Exclude {
		if matchGlobPath(pat, path) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pat := range f.Include {
		if matchGlobPath(pat, path) {
			return true
		}
	}
	return false
}

func matchGlobPath(pattern, name string) bool {
	base := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		base = name[idx+1:]
	}
	return matchGlob(pattern, base) || matchGlob(pattern, name)
}

func matchGlob(pattern, name string) bool {
	if !strings.Contains(pattern, "**") {
		matched, _ := filepath.Match(pattern, name)
		return matched
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(patParts, nameParts []string) bool {
	pi, ni := 0, 0
	for pi < len(patParts) && ni < len(nameParts) {
		if patParts[pi] == "**" {
			pi++
			if pi >= len(patParts) {
				return true
			}
			for tryNi := ni; tryNi <= len(nameParts); tryNi++ {
				if matchSegments(patParts[pi:], nameParts[tryNi:]) {
					return true
				}
			}
			return false
		}
		matched, _ := filepath.Match(patParts[pi], nameParts[ni])
		if !matched {
			return false
		}
		pi++
		ni++
	}
	for pi < len(patParts) {
		if patParts[pi] != "**" {
			return false
		}
		pi++
	}
	return ni >= len(nameParts)
}
