// Package gitconfig reads a .git/config INI-style file as a flat key/value
// store, implementing patch.Config.
package gitconfig

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Store is a flat key/value view over a .git/config file: keys are
// "section.subsection.name" (subsection omitted when the section line has
// none), values are the raw trailing text of each "name = value" line.
type Store struct {
	values map[string]string
}

// Load reads path (typically filepath.Join(gitDir, "config")) and returns a
// Store. A missing file is not an error: it yields an empty Store, the same
// convention gitcore.ReadIndex uses for a missing index.
func Load(path string) (*Store, error) {
	//nolint:gosec // G304: path is caller-controlled, the repository's own config file
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{values: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("gitconfig: opening %s: %w", path, err)
	}
	defer f.Close()

	s := &Store{values: map[string]string{}}
	section := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = parseSectionHeader(line[1 : len(line)-1])
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 || section == "" {
			continue
		}
		name := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		s.values[section+"."+strings.ToLower(name)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gitconfig: reading %s: %w", path, err)
	}
	return s, nil
}

// parseSectionHeader turns `section "subsection"` into "section.subsection"
// and a bare `section` into "section".
func parseSectionHeader(header string) string {
	q := strings.IndexByte(header, '"')
	if q < 0 {
		return strings.ToLower(strings.TrimSpace(header))
	}
	name := strings.ToLower(strings.TrimSpace(header[:q]))
	sub := strings.Trim(header[q:], `" `)
	return name + "." + sub
}

// Get implements patch.Config.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[strings.ToLower(key)]
	return v, ok
}
