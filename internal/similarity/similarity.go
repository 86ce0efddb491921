// Package similarity computes pairwise directory similarity from content
// fingerprints using a Jaccard index over each directory's hash set.
//
// # Algorithm
//
//  1. Build an inverted index: content hash → directory ids that contain it.
//  2. Candidate pairs are any two directories sharing at least one hash,
//     except hashes appearing in more than maxPostingList directories —
//     those are noise (READMEs, .gitkeep, empty files) and are skipped.
//  3. For each candidate pair, score Jaccard = |intersection| / |union| and
//     keep pairs at or above the threshold, tagged exact/subset/threshold.
//  4. A separate pass finds directories sharing an identical fingerprint
//     (byte-for-byte equal content) and records them as exact regardless of
//     the Jaccard threshold.
package similarity

import (
	"encoding/json"

	"github.com/foldersweep/dupefind/internal/errs"
	"github.com/foldersweep/dupefind/internal/progress"
	"github.com/foldersweep/dupefind/internal/store"
)

// maxPostingList caps how many directories a single hash may appear in
// before it's treated as noise and excluded from candidate generation.
const maxPostingList = 50

type pairKey struct{ a, b int64 }

// Engine computes directory similarity pairs for one store.
type Engine struct {
	store     *store.Store
	threshold float64
	reporter  progress.Reporter
}

// New creates an Engine that keeps pairs scoring at or above threshold.
func New(s *store.Store, threshold float64, reporter progress.Reporter) *Engine {
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}
	return &Engine{store: s, threshold: threshold, reporter: reporter}
}

// Run computes and persists similarity pairs, returning how many were
// written (Jaccard matches plus exact-fingerprint matches).
func (e *Engine) Run() (int, error) {
	fingerprints, err := e.store.AllFingerprints()
	if err != nil {
		return 0, err
	}

	hashSets := make(map[int64]map[int64]struct{}, len(fingerprints))
	invertedIndex := make(map[int64][]int64)

	for _, fp := range fingerprints {
		var hashes []int64
		if err := json.Unmarshal([]byte(fp.FileHashSet), &hashes); err != nil {
			continue
		}

		set := make(map[int64]struct{}, len(hashes))
		for _, h := range hashes {
			if _, seen := set[h]; seen {
				continue
			}
			set[h] = struct{}{}
			invertedIndex[h] = append(invertedIndex[h], fp.DirectoryID)
		}
		hashSets[fp.DirectoryID] = set
	}

	candidates := make(map[pairKey]struct{})
	for _, dirIDs := range invertedIndex {
		if len(dirIDs) > maxPostingList {
			continue
		}
		for i := 0; i < len(dirIDs); i++ {
			for j := i + 1; j < len(dirIDs); j++ {
				a, b := dirIDs[i], dirIDs[j]
				if a > b {
					a, b = b, a
				}
				candidates[pairKey{a, b}] = struct{}{}
			}
		}
	}

	var written int
	for pair := range candidates {
		setA, setB := hashSets[pair.a], hashSets[pair.b]
		score, sharedBytes, matchType, ok := jaccard(setA, setB)
		if !ok || score < e.threshold {
			continue
		}
		if err := e.store.UpsertDirectorySimilarity(pair.a, pair.b, score, sharedBytes, matchType); err != nil {
			return written, err
		}
		written++
	}

	exactCount, err := e.findExactMatches()
	if err != nil {
		return written, err
	}

	return written + exactCount, nil
}

// jaccard scores two hash sets, reporting the shared hash count as an
// approximation of shared bytes (exact byte accounting would require a
// file-size lookup per shared hash).
func jaccard(a, b map[int64]struct{}) (score float64, sharedBytes int64, matchType string, ok bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, "", false
	}

	var intersection int
	for h := range a {
		if _, in := b[h]; in {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0, 0, "", false
	}

	score = float64(intersection) / float64(union)
	switch {
	case score >= 1.0:
		matchType = "exact"
	case isSubset(a, b) || isSubset(b, a):
		matchType = "subset"
	default:
		matchType = "threshold"
	}

	return score, int64(intersection), matchType, true
}

func isSubset(a, b map[int64]struct{}) bool {
	if len(a) > len(b) {
		return false
	}
	for h := range a {
		if _, in := b[h]; !in {
			return false
		}
	}
	return true
}

// findExactMatches records directories whose content_fingerprint is
// byte-for-byte identical as exact matches, independent of the Jaccard
// pass — a pair whose shared hashes all sit in posting lists longer than
// maxPostingList is never a Jaccard candidate and would otherwise be missed.
func (e *Engine) findExactMatches() (int, error) {
	groups, err := e.store.ExactFingerprintGroups()
	if err != nil {
		return 0, err
	}

	var count int
	for _, dirIDs := range groups {
		for i := 0; i < len(dirIDs); i++ {
			for j := i + 1; j < len(dirIDs); j++ {
				a, b := dirIDs[i], dirIDs[j]
				if a > b {
					a, b = b, a
				}

				node, err := e.store.DirectoryByID(a)
				if err != nil {
					return count, err
				}
				var sharedBytes int64
				if node != nil {
					sharedBytes = node.TotalSize
				}

				if err := e.store.UpsertDirectorySimilarity(a, b, 1.0, sharedBytes, "exact"); err != nil {
					return count, errs.Otherf("record exact match (%d, %d): %v", a, b, err)
				}
				count++
			}
		}
	}
	return count, nil
}
