package gitconfig

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/rybkr/gitvista/internal/patch"
)

// LoadWSRuleSet reads a .patchrules.json sidecar and builds a
// patch.WSRuleSet from it. The expected shape is:
//
//	{
//	  "rules": [
//	    {"pattern": "*.md", "classes": "trailing,blank-at-eof", "policy": "fix"},
//	    {"pattern": "vendor/**", "classes": "all", "policy": "nowarn"}
//	  ],
//	  "default": {"classes": "all", "policy": "warn"}
//	}
//
// A missing file yields patch.DefaultWSRule with no entries, the same
// missing-is-empty convention Load uses for .git/config.
func LoadWSRuleSet(path string) (patch.WSRuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return patch.WSRuleSet{Default: patch.DefaultWSRule}, nil
		}
		return patch.WSRuleSet{}, fmt.Errorf("gitconfig: reading %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return patch.WSRuleSet{}, fmt.Errorf("gitconfig: %s is not valid JSON", path)
	}
	raw := string(data)

	rs := patch.WSRuleSet{Default: patch.DefaultWSRule}

	if def := gjson.Get(raw, "default"); def.Exists() {
		rs.Default = patch.WSRule{
			Classes: patch.ParseWSClasses(def.Get("classes").String()),
			Policy:  patch.ParseWSPolicy(def.Get("policy").String()),
		}
	}

	gjson.Get(raw, "rules").ForEach(func(_, entry gjson.Result) bool {
		rs.Entries = append(rs.Entries, patch.WSRuleEntry{
			Pattern: entry.Get("pattern").String(),
			Rule: patch.WSRule{
				Classes: patch.ParseWSClasses(entry.Get("classes").String()),
				Policy:  patch.ParseWSPolicy(entry.Get("policy").String()),
			},
		})
		return true
	})

	return rs, nil
}
