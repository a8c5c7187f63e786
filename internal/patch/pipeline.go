package patch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/sethvargo/go-retry"
)

// PatchResult is one patch's outcome after a session run, used by the
// numstat/stat/summary renderers so they never disagree about
// insertion/deletion counts.
type PatchResult struct {
	Patch     *Patch
	Additions int
	Deletions int
	Rejected  bool
}

// Session is a single patch-pipeline run: it owns the in-memory file table,
// the arena of parsed patches/fragments, and the external collaborators a
// run resolves preimages and commits results through. Not shared across
// sessions.
type Session struct {
	Store ObjectStore
	Idx   Index
	Tree  WorkingTree
	Cfg   Config
	Diag  io.Writer

	Flags    ApplyFlags
	WSRules  WSRuleSet
	UseIndex bool
	Cached   bool
	Reject   bool

	fileTable map[string]FileTableEntry
	patches   []*Patch
	fragments []*Fragment
	wsErr     error
}

// NewSession builds a Session around its collaborators. diag receives
// warnings (reduced-context matches, truncated .rej names); pass os.Stderr
// in the CLI and a bytes.Buffer in tests.
func NewSession(store ObjectStore, idx Index, tree WorkingTree, cfg Config, diag io.Writer, flags ApplyFlags) *Session {
	return &Session{
		Store:     store,
		Idx:       idx,
		Tree:      tree,
		Cfg:       cfg,
		Diag:      diag,
		Flags:     flags,
		fileTable: make(map[string]FileTableEntry),
	}
}

// Run applies patches in order, resolving each one's preimage by precedence,
// and returns one PatchResult per patch. A stream-fatal or patch-fatal error
// aborts the run immediately; fragment-local rejections (when Reject is set)
// do not.
func (s *Session) Run(patches []*Patch) ([]PatchResult, error) {
	results := make([]PatchResult, 0, len(patches))

	for idx, p := range patches {
		s.patches = append(s.patches, p)

		pre, err := s.resolvePreimage(p)
		if err != nil {
			return results, err
		}

		var post []byte
		if p.IsBinary {
			post, err = s.applyBinaryPatch(p, pre)
			if err != nil {
				return results, err
			}
		} else {
			post, err = s.applyTextPatch(p, pre)
			if err != nil {
				return results, err
			}
		}

		if p.Rejected && !s.Reject {
			return results, patchErrorf(p, "%w: no fragment located", ErrPreimageMismatch)
		}

		p.Result = post
		s.recordFileTable(p, idx)
		// A deletion immediately followed by a creation of the same path is a
		// type-change split: the creation proceeds as a fresh file.
		if p.IsDelete == Yes && idx+1 < len(patches) {
			if next := patches[idx+1]; next.IsNew == Yes && next.NewName == p.OldName {
				s.fileTable[p.OldName] = ToBeDeleted()
			}
		}

		add, del := s.countChanges(p)
		results = append(results, PatchResult{Patch: p, Additions: add, Deletions: del, Rejected: p.Rejected})
	}

	if s.wsErr != nil {
		return results, &StreamError{Err: multierr.Append(ErrWhitespaceViolation, s.wsErr)}
	}

	return results, nil
}

// effectiveFlags resolves the whitespace rule that applies to path: when the
// session has a loaded WSRuleSet (a .patchrules.json sidecar was found),
// per-path glob entries take precedence over the flat --whitespace flag.
func (s *Session) effectiveFlags(path string) ApplyFlags {
	flags := s.Flags
	if len(s.WSRules.Entries) > 0 {
		flags.UnidiffRule = s.WSRules.Resolve(path)
	}
	return flags
}

// resolvePreimage picks the preimage source by precedence: the in-memory
// file table first (a prior patch in this session already touched the
// path), then the index in --cached mode, then the working tree, then an
// empty preimage for a pure creation.
func (s *Session) resolvePreimage(p *Patch) ([]byte, error) {
	path := p.OldName
	if path == "" {
		path = p.NewName
	}

	if entry, ok := s.fileTable[path]; ok {
		switch {
		case entry.Was:
			return nil, patchErrorf(p, "%w: %s", ErrPathConflict, path)
		case entry.ToBe:
			// second half of a type-change split: proceeds as a fresh create.
		default:
			prior := s.patches[entry.Patch]
			if !prior.IsRename && !prior.IsDelete.isYes() {
				return prior.Result, nil
			}
		}
	}

	if p.IsNew == Yes {
		return nil, nil
	}

	if s.Cached {
		if s.Idx == nil {
			return nil, patchErrorf(p, "%w", ErrIndexMissing)
		}
		entry, ok := s.Idx.Lookup(path)
		if !ok {
			if s.UseIndex {
				return nil, patchErrorf(p, "%w: %s", ErrIndexMissing, path)
			}
			return nil, nil
		}
		blob, err := s.Store.ReadBlob(entry.Hash)
		if err != nil {
			return nil, patchErrorf(p, "reading indexed blob for %s: %w", path, err)
		}
		return blob, nil
	}

	if s.Tree == nil {
		return nil, nil
	}
	_, exists, err := s.Tree.Stat(path)
	if err != nil {
		return nil, patchErrorf(p, "stat %s: %w", path, err)
	}
	if !exists {
		return nil, nil
	}
	content, err := s.Tree.ReadFile(path)
	if err != nil {
		return nil, patchErrorf(p, "reading %s: %w", path, err)
	}
	return content, nil
}

func (t Tri) isYes() bool { return t == Yes }

func (s *Session) applyBinaryPatch(p *Patch, pre []byte) ([]byte, error) {
	if p.OldSHA1Prefix != "" {
		got := fmt.Sprintf("%x", s.Store.HashBlob(pre))
		if !hashPrefixMatches(got, p.OldSHA1Prefix) {
			return nil, patchErrorf(p, "%w: preimage hash %s, want prefix %s", ErrPreimageMismatch, got, p.OldSHA1Prefix)
		}
	}

	if len(p.Fragments) == 0 {
		return nil, patchErrorf(p, "binary patch has no fragment")
	}
	f := s.FragmentByID(p.Fragments[0])
	post, err := ApplyBinaryFragment(pre, f, s.Flags.Reverse)
	if err != nil {
		return nil, patchErrorf(p, "applying binary fragment: %w", err)
	}

	if p.NewSHA1Prefix != "" {
		got := fmt.Sprintf("%x", s.Store.HashBlob(post))
		if !hashPrefixMatches(got, p.NewSHA1Prefix) {
			return nil, patchErrorf(p, "%w: postimage hash %s, want prefix %s", ErrPreimageMismatch, got, p.NewSHA1Prefix)
		}
	}
	return post, nil
}

func hashPrefixMatches(full, prefix string) bool {
	if len(full) < len(prefix) {
		return false
	}
	return full[:len(prefix)] == prefix
}

// FragmentByID dereferences a FragmentID through this session's fragment
// arena. Exported so callers outside the package (the .rej writer in
// cmd/gitcli) can resolve a Patch's FragmentIDs without reaching into
// package-private state.
func (s *Session) FragmentByID(id FragmentID) *Fragment {
	return s.fragments[id]
}

// NewFragmentID appends f to this session's fragment arena and returns its
// handle. FragmentID is only ever meaningful relative to the Session that
// minted it; fragments never outlive or cross between sessions.
func (s *Session) NewFragmentID(f *Fragment) FragmentID {
	s.fragments = append(s.fragments, f)
	return FragmentID(len(s.fragments) - 1)
}

func (s *Session) applyTextPatch(p *Patch, pre []byte) ([]byte, error) {
	img := NewImage(pre)
	flags := s.effectiveFlags(displayName(p))

	for i, fid := range p.Fragments {
		f := s.FragmentByID(fid)
		warning, err := ApplyFragment(img, f, flags)
		if err != nil {
			return nil, patchErrorf(p, "applying fragment %d: %w", i+1, err)
		}
		if warning != "" && s.Diag != nil {
			fmt.Fprintf(s.Diag, "%s: %s\n", displayName(p), warning)
		}
		if f.Rejected {
			p.Rejected = true
		}
		if flags.UnidiffRule.Policy == WSError {
			s.collectWSViolations(p, f, flags.UnidiffRule)
		}
	}

	return img.Buf, nil
}

func (s *Session) collectWSViolations(p *Patch, f *Fragment, rule WSRule) {
	for _, l := range f.Lines {
		if l.Op != OpAdd {
			continue
		}
		if v := ClassifyLine(l.Content, rule); v != 0 {
			s.wsErr = multierr.Append(s.wsErr, fmt.Errorf("%s: whitespace violation (class %#x)", displayName(p), v))
		}
	}
}

func displayName(p *Patch) string {
	if p.NewName != "" {
		return p.NewName
	}
	return p.OldName
}

func (s *Session) countChanges(p *Patch) (add, del int) {
	for _, fid := range p.Fragments {
		f := s.FragmentByID(fid)
		for _, l := range f.Lines {
			switch l.Op {
			case OpAdd:
				add++
			case OpDelete:
				del++
			}
		}
	}
	return add, del
}

// recordFileTable updates the session's in-memory FileTable: the new name
// maps to this patch's result, the old name (on rename/delete) is marked
// WAS_DELETED. Run then replaces that mark with TO_BE_DELETED when the next
// patch creates the same path, so the creation is not a path conflict.
func (s *Session) recordFileTable(p *Patch, idx int) {
	if p.IsDelete == Yes || (p.IsRename && p.OldName != p.NewName) {
		if p.OldName != "" {
			s.fileTable[p.OldName] = WasDeleted()
		}
	}
	if p.IsDelete == Yes && p.NewName == "" {
		return
	}
	if p.NewName != "" {
		s.fileTable[p.NewName] = FileTableEntry{Patch: PatchID(idx)}
	}
}

// ParseStream parses a whole unified-diff stream (one or more patches) into
// Patch records, registering each fragment in this session's fragment arena
// and filling Patch.Fragments with the resulting handles. lines must not
// include trailing newlines (split the raw stream on '\n' before calling).
// Fragments registered through one Session are never valid against another.
func (s *Session) ParseStream(lines []string, opts *ParseOptions, recount bool) ([]*Patch, error) {
	var patches []*Patch
	i := 0

	for i < len(lines) {
		p, next, err := ParseHeader(lines, i, opts)
		if err != nil {
			return patches, err
		}
		if p == nil {
			i++
			continue
		}
		i = next

		if i < len(lines) && lines[i] == binaryHunkHeaderPrefix {
			p.IsBinary = true
			f, next, err := ParseBinaryPatch(lines, i)
			if err != nil {
				return patches, err
			}
			p.Fragments = append(p.Fragments, s.NewFragmentID(f))
			i = next
			patches = append(patches, p)
			continue
		}

		for i < len(lines) && strings.HasPrefix(lines[i], "@@ -") {
			f, next, err := ParseFragment(lines, i, recount)
			if err != nil {
				return patches, err
			}
			p.Fragments = append(p.Fragments, s.NewFragmentID(f))
			i = next
		}

		patches = append(patches, p)
	}

	return patches, nil
}

// AcquireIndexLock takes the advisory .git/index.lock for the lifetime of a
// write-back session, retrying with jittered exponential backoff
// via go-retry rather than a hand-rolled sleep loop. create must return
// os.ErrExist (or wrap it) when the lock file already exists. remove is
// called exactly once by the returned release, on every exit path.
func AcquireIndexLock(ctx context.Context, create func() error, remove func() error) (release func() error, err error) {
	backoff := retry.NewExponential(50 * time.Millisecond)
	backoff = retry.WithMaxRetries(8, backoff)
	backoff = retry.WithJitterPercent(20, backoff)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := create(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("patch: acquiring index lock: %w", err)
	}
	return remove, nil
}
