package watch

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/buildwatch/internal/bundler"
)

// FileState fingerprints one output file.
type FileState struct {
	Hash  uint64
	Bytes int64
}

// Snapshot maps an output path to its fingerprint.
type Snapshot map[string]FileState

// TakeSnapshot hashes the given outputs. resolve maps an esbuild output
// path to a readable file path. Files that cannot be read are skipped.
func TakeSnapshot(outputs []bundler.Output, resolve func(string) string) Snapshot {
	snap := make(Snapshot, len(outputs))

	for _, o := range outputs {
		state, err := hashFile(resolve(o.Path))
		if err != nil {
			continue
		}

		snap[o.Path] = state
	}

	return snap
}

func hashFile(path string) (FileState, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileState{}, err
	}
	defer f.Close()

	h := xxhash.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return FileState{}, err
	}

	return FileState{Hash: h.Sum64(), Bytes: n}, nil
}

// OutputChange describes a single output file difference between two
// consecutive builds.
type OutputChange struct {
	// Kind is one of "added", "removed", or "changed".
	Kind string
	// Path is the output path as esbuild reports it.
	Path string
	// Detail holds the size delta for changed files.
	Detail string
}

// OutputDiff compares two snapshots and returns the changes, ordered by
// path.
func OutputDiff(prev, curr Snapshot) []OutputChange {
	var changes []OutputChange

	for path := range prev {
		if _, ok := curr[path]; !ok {
			changes = append(changes, OutputChange{Kind: "removed", Path: path})
		}
	}

	for path, cs := range curr {
		ps, existed := prev[path]
		if !existed {
			changes = append(changes, OutputChange{Kind: "added", Path: path})
			continue
		}

		if ps.Hash != cs.Hash {
			changes = append(changes, OutputChange{
				Kind:   "changed",
				Path:   path,
				Detail: fmt.Sprintf("%+d bytes", cs.Bytes-ps.Bytes),
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	return changes
}

// OutputDiffSummary returns a human-readable one-line summary.
func OutputDiffSummary(changes []OutputChange) string {
	var added, removed, changed int

	for _, c := range changes {
		switch c.Kind {
		case "added":
			added++
		case "removed":
			removed++
		case "changed":
			changed++
		}
	}

	if added == 0 && removed == 0 && changed == 0 {
		return "no output changes"
	}

	parts := make([]string, 0, 3)

	if added > 0 {
		parts = append(parts, fmt.Sprintf("+%d added", added))
	}

	if removed > 0 {
		parts = append(parts, fmt.Sprintf("-%d removed", removed))
	}

	if changed > 0 {
		parts = append(parts, fmt.Sprintf("~%d changed", changed))
	}

	return strings.Join(parts, ", ")
}
