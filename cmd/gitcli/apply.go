package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rybkr/gitvista/internal/gitcore"
	"github.com/rybkr/gitvista/internal/gitconfig"
	"github.com/rybkr/gitvista/internal/gitindex"
	"github.com/rybkr/gitvista/internal/patch"
	"github.com/rybkr/gitvista/internal/termcolor"
	"github.com/rybkr/gitvista/internal/worktree"
)

type applyOptions struct {
	check        bool
	stat         bool
	numstat      bool
	summary      bool
	useIndex     bool
	cached       bool
	pValue       *int
	contextFloor int
	wsPolicy     string
	reverse      bool
	reject       bool
	unidiffZero  bool
	inaccurate   bool
	recount      bool
	directory    string
	include      []string
	exclude      []string
	noAdd        bool
	nulTerminate bool
	files        []string
}

func runApply(repo *gitcore.Repository, args []string, cw *termcolor.Writer) int {
	opts, err := parseApplyFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage error: %v\n", err)
		return 1
	}

	var rawBuf []byte
	if len(opts.files) == 0 {
		rawBuf, err = readAllStdin()
	} else {
		rawBuf, err = os.ReadFile(opts.files[0]) //nolint:gosec // G304: user-supplied patch file path
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: reading patch: %v\n", err)
		return 128
	}

	lines := strings.Split(string(rawBuf), "\n")
	parseOpts := &patch.ParseOptions{PValue: opts.pValue, Root: opts.directory}

	rule := resolveWSRule(opts.wsPolicy)

	flags := patch.ApplyFlags{
		Reverse:      opts.reverse,
		NoAdd:        opts.noAdd,
		ContextFloor: opts.contextFloor,
		UnidiffZero:  opts.unidiffZero,
		WSCorrect:    true,
		UnidiffRule:  rule,
		InaccurateEOF: opts.inaccurate,
	}

	store, idx, tree, cfg := wireCollaborators(repo, opts)

	sess := patch.NewSession(store, idx, tree, cfg, os.Stderr, flags)
	sess.UseIndex = opts.useIndex
	sess.Cached = opts.cached
	sess.Reject = opts.reject

	patches, err := sess.ParseStream(lines, parseOpts, opts.recount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	filter := patch.PathFilter{Include: opts.include, Exclude: opts.exclude}
	patches = filterPatches(patches, filter)

	if repo != nil {
		rulesPath := filepath.Join(repo.WorkDir(), ".patchrules.json")
		rules, err := gitconfig.LoadWSRuleSet(rulesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		} else {
			sess.WSRules = rules
		}
	}

	if (sess.UseIndex || sess.Cached) && !opts.check {
		release, err := acquireIndexLock(repo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		defer release()
	}

	results, err := sess.Run(patches)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if opts.stat {
		fmt.Print(patch.RenderStat(results))
	}
	if opts.numstat {
		os.Stdout.Write(patch.RenderNumstat(results))
	}
	if opts.summary {
		os.Stdout.Write(patch.RenderSummary(results))
	}

	rejected := writeOutcome(sess, results, tree, idx, store, opts)

	if rejected > 0 {
		return 1
	}

	if (sess.UseIndex || sess.Cached) && !opts.check && idx != nil && repo != nil {
		if err := idx.WriteTo(filepath.Join(repo.GitDir(), "index")); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: writing index: %v\n", err)
			return 128
		}
	}
	return 0
}

func writeOutcome(sess *patch.Session, results []patch.PatchResult, tree patch.WorkingTree, idx patch.Index, store patch.ObjectStore, opts applyOptions) int {
	rejected := 0
	for _, r := range results {
		if r.Rejected {
			rejected++
			name, content := patch.BuildRejectFile(r.Patch, sess.FragmentByID)
			if opts.reject && !opts.check {
				if err := os.WriteFile(name, content, 0o644); err != nil { //nolint:gosec // G306: .rej files follow the tool's own text-output permissions
					fmt.Fprintf(os.Stderr, "warning: writing %s: %v\n", name, err)
				}
			}
			continue
		}
		if opts.check {
			continue
		}
		if tree != nil && !opts.cached {
			if r.Patch.IsDelete == patch.Yes {
				_ = tree.Remove(r.Patch.OldName)
			} else {
				_ = tree.WriteFile(r.Patch.NewName, r.Patch.NewMode, r.Patch.Result)
			}
		}
		if (opts.useIndex || opts.cached) && idx != nil {
			if r.Patch.IsDelete == patch.Yes {
				_ = idx.StageRemove(r.Patch.OldName)
			} else {
				hash := store.HashBlob(r.Patch.Result)
				_ = idx.StageFile(r.Patch.NewName, r.Patch.NewMode, hash)
			}
		}
	}
	return rejected
}

func filterPatches(patches []*patch.Patch, filter patch.PathFilter) []*patch.Patch {
	out := patches[:0]
	for _, p := range patches {
		name := p.NewName
		if name == "" {
			name = p.OldName
		}
		if filter.Allows(name) {
			out = append(out, p)
		}
	}
	return out
}

func resolveWSRule(policy string) patch.WSRule {
	rule := patch.DefaultWSRule
	switch policy {
	case "nowarn":
		rule.Policy = patch.WSNoWarn
	case "warn", "":
		rule.Policy = patch.WSWarn
	case "error", "error-all":
		rule.Policy = patch.WSError
	case "fix":
		rule.Policy = patch.WSFix
	}
	return rule
}

func wireCollaborators(repo *gitcore.Repository, opts applyOptions) (patch.ObjectStore, patch.Index, patch.WorkingTree, patch.Config) {
	var store patch.ObjectStore
	var tree patch.WorkingTree
	var idx patch.Index
	var cfg patch.Config

	if repo != nil {
		store = repo
		tree = worktree.New(repo.WorkDir())

		coreIdx, err := gitcore.ReadIndex(repo.GitDir())
		if err == nil {
			if w, err := gitindex.LoadFromCore(coreIdx); err == nil {
				idx = w
			}
		}
		if cs, err := gitconfig.Load(filepath.Join(repo.GitDir(), "config")); err == nil {
			cfg = cs
		}
	}
	if opts.check {
		tree = nil
	}
	return store, idx, tree, cfg
}

func acquireIndexLock(repo *gitcore.Repository) (func() error, error) {
	lockPath := filepath.Join(repo.GitDir(), "index.lock")
	return patch.AcquireIndexLock(context.Background(), func() error {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		return f.Close()
	}, func() error {
		return os.Remove(lockPath)
	})
}

func readAllStdin() ([]byte, error) {
	return os.ReadFile("/dev/stdin")
}

func parseApplyFlags(args []string) (applyOptions, error) {
	var opts applyOptions
	opts.wsPolicy = "warn"

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--check":
			opts.check = true
		case a == "--stat":
			opts.stat = true
		case a == "--numstat":
			opts.numstat = true
		case a == "--summary":
			opts.summary = true
		case a == "--index":
			opts.useIndex = true
		case a == "--cached":
			opts.cached = true
		case a == "-R" || a == "--reverse":
			opts.reverse = true
		case a == "--reject":
			opts.reject = true
		case a == "--unidiff-zero":
			opts.unidiffZero = true
		case a == "--inaccurate-eof":
			opts.inaccurate = true
		case a == "--recount":
			opts.recount = true
		case a == "--no-add":
			opts.noAdd = true
		case a == "-z":
			opts.nulTerminate = true
		case strings.HasPrefix(a, "-p"):
			n, err := strconv.Atoi(strings.TrimPrefix(a, "-p"))
			if err != nil {
				return opts, fmt.Errorf("invalid -p value: %s", a)
			}
			opts.pValue = &n
		case strings.HasPrefix(a, "-C"):
			n, err := strconv.Atoi(strings.TrimPrefix(a, "-C"))
			if err != nil {
				return opts, fmt.Errorf("invalid -C value: %s", a)
			}
			opts.contextFloor = n
		case strings.HasPrefix(a, "--whitespace="):
			opts.wsPolicy = strings.TrimPrefix(a, "--whitespace=")
		case strings.HasPrefix(a, "--directory="):
			opts.directory = strings.TrimPrefix(a, "--directory=")
		case strings.HasPrefix(a, "--include="):
			opts.include = append(opts.include, strings.TrimPrefix(a, "--include="))
		case strings.HasPrefix(a, "--exclude="):
			opts.exclude = append(opts.exclude, strings.TrimPrefix(a, "--exclude="))
		default:
			opts.files = append(opts.files, a)
		}
	}
	return opts, nil
}
