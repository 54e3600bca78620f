package remotes

import (
	"fmt"
	"sort"

	"github.com/corpusworks/dataset-repo/common"
)

// Descriptor declares one retrievable network artifact.
type Descriptor struct {
	Filename       string   `yaml:"filename"`
	URL            string   `yaml:"url"`
	Checksum       string   `yaml:"checksum"`                  // MD5 of the compressed artifact, not of its contents
	DestinationDir string   `yaml:"destinationDir,omitempty"`  // extraction target, relative to the dataset root
	Restricted     bool     `yaml:"restricted,omitempty"`      // not publicly retrievable; must be acquired manually
	UnpackDirs     []string `yaml:"unpackDirs,omitempty,flow"` // top-level folders to hoist after extraction
}

// Remote is what one retrieval key resolves to: a single artifact, or the
// ordered parts of a split archive that are only decompressible together.
type Remote struct {
	Parts []Descriptor `yaml:"parts"`

	// GroupKey ties several retrieval keys into one atomic unit: selecting
	// any member expands the selection to all of them, and none is
	// extracted until every member is verified on disk.
	GroupKey string `yaml:"groupKey,omitempty"`
}

// Single declares a plain one-file remote.
func Single(d Descriptor) Remote {
	return Remote{Parts: []Descriptor{d}}
}

// MultiPart declares a split archive. Order matters: parts are reassembled
// in the order given here.
func MultiPart(parts ...Descriptor) Remote {
	return Remote{Parts: parts}
}

func (r Remote) restricted() bool {
	for _, p := range r.Parts {
		if p.Restricted {
			return true
		}
	}
	return false
}

// Table maps retrieval keys to remotes for one dataset.
type Table map[string]Remote

// Keys returns every declared retrieval key in lexical order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExpandSelection resolves a caller-supplied subset of retrieval keys,
// pulling in the rest of any group a selected key belongs to. An empty
// selection means everything. Unknown keys are a caller error.
func (t Table) ExpandSelection(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return t.Keys(), nil
	}

	selected := make(map[string]bool)
	for _, k := range keys {
		remote, ok := t[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not one of %v", common.ErrUnknownKey, k, t.Keys())
		}
		selected[k] = true

		if remote.GroupKey == "" {
			continue
		}
		for sibling, other := range t {
			if other.GroupKey == remote.GroupKey {
				selected[sibling] = true
			}
		}
	}

	expanded := make([]string, 0, len(selected))
	for k := range selected {
		expanded = append(expanded, k)
	}
	sort.Strings(expanded)
	return expanded, nil
}

// GroupSiblings returns the other retrieval keys sharing the group of key,
// or nil when the key is not grouped.
func (t Table) GroupSiblings(key string) []string {
	remote, ok := t[key]
	if !ok || remote.GroupKey == "" {
		return nil
	}
	siblings := make([]string, 0)
	for k, other := range t {
		if k != key && other.GroupKey == remote.GroupKey {
			siblings = append(siblings, k)
		}
	}
	sort.Strings(siblings)
	return siblings
}
