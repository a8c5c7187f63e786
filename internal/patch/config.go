package patch

// Config is the repository-wide key/value collaborator. The concrete
// implementation, internal/gitconfig.Store, reads .git/config.
type Config interface {
	Get(key string) (string, bool)
}

// ObjectStore is the content-addressed blob lookup collaborator.
// *internal/gitcore.Repository satisfies this with its ReadBlob/HashBlob methods.
type ObjectStore interface {
	ReadBlob(hash [20]byte) ([]byte, error)
	HashBlob(content []byte) [20]byte
}

// IndexEntry is one staged (path, mode, hash) record exposed by Index.
type IndexEntry struct {
	Path string
	Mode uint32
	Hash [20]byte
}

// Index is the staged (path, mode, hash) collaborator, with
// mutation for --index/--cached sessions. internal/gitindex implements it.
type Index interface {
	Lookup(path string) (IndexEntry, bool)
	StageFile(path string, mode uint32, hash [20]byte) error
	StageRemove(path string) error
	// WriteTo persists the staged entries back to the on-disk index file at
	// path, in DIRC v2 format. Called once at the end of a successful
	// --index run.
	WriteTo(path string) error
}

// WorkingTree is the filesystem collaborator. internal/worktree
// implements it.
type WorkingTree interface {
	Stat(path string) (mode uint32, exists bool, err error)
	ReadFile(path string) ([]byte, error)
	ReadSymlink(path string) (string, error)
	WriteFile(path string, mode uint32, content []byte) error
	Remove(path string) error
}
