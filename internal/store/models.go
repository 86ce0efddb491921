// Package store persists scan results in a SQLite database: sessions,
// scanned files, duplicate groups, the directory hierarchy with its
// fingerprints and similarity pairs, and the deletion plan.
package store

import "time"

// ScanSession is one invocation of the scan pipeline.
type ScanSession struct {
	ID           int64
	StartedAt    time.Time
	CompletedAt  *time.Time
	Status       string // "running", "completed", "failed"
	RootPaths    []string
	FilesScanned int64
	TotalBytes   int64
}

// ScannedFile is a file discovered during scanning.
type ScannedFile struct {
	ID                int64
	CanonicalPath     string
	FileName          string
	ParentDir         string
	FileSize          int64
	LastModified      time.Time
	PartialHash       *uint64
	ContentHash       *uint64
	LastSeenSessionID *int64
	MarkedDeleted     bool
}

// DuplicateGroup is a set of files sharing content hash and size, scoped to
// the session that discovered them.
type DuplicateGroup struct {
	ID          int64
	SessionID   int64
	ContentHash uint64
	FileSize    int64
	FileCount   int64
	WastedBytes int64
}

// DirectoryNode is one node in the directory hierarchy tree.
type DirectoryNode struct {
	ID        int64
	Path      string
	Name      string
	ParentID  *int64
	TotalSize int64
	FileCount int64
	Depth     int64
}

// DirectoryFingerprint is the content fingerprint of one directory.
type DirectoryFingerprint struct {
	ID                 int64
	DirectoryID        int64
	ContentFingerprint string
	FileHashSet        string // JSON array of sorted int64 hashes
}

// DirectorySimilarity is a pre-computed similarity score between two
// directories, stored with DirAID < DirBID.
type DirectorySimilarity struct {
	ID              int64
	DirAID          int64
	DirBID          int64
	DirAPath        string
	DirBPath        string
	SimilarityScore float64
	SharedBytes     int64
	MatchType       string // "exact", "subset", "threshold"
}

// DeletionPlanEntry records a file marked for deletion, and the outcome
// once the plan is executed.
type DeletionPlanEntry struct {
	ID              int64
	FileID          int64
	MarkedAt        time.Time
	Strategy        *string
	ExecutedAt      *time.Time
	ExecutionResult *string
}
