package manifest

import (
	"fmt"
	"sort"

	"github.com/corpusworks/dataset-repo/common"
	"github.com/hashicorp/go-multierror"
)

// FileRecord describes one physical file in the dataset tree. The checksum
// is an MD5 hex digest over the file's raw bytes - filesystem metadata never
// participates.
type FileRecord struct {
	RelativePath string `json:"relative_path"`
	Checksum     string `json:"checksum"`
}

// ItemRecord binds role names ("audio", "annotation", ...) to files for one
// item. Roles are sparse: a role an item doesn't have is simply omitted.
type ItemRecord struct {
	Files map[string]FileRecord `json:"files"`
}

// Manifest is the canonical, read-only description of one dataset version.
type Manifest struct {
	Version  string                `json:"version"`
	Items    map[string]ItemRecord `json:"items"`
	Groups   map[string][]string   `json:"groups,omitempty"`
	AuxFiles map[string]FileRecord `json:"aux_files,omitempty"`

	// relative path -> expected checksum, built during validation
	pathIndex map[string]string
}

// validate checks the structural invariants and builds the path index. All
// problems are collected so a maintainer sees every defect in one pass.
func (m *Manifest) validate() error {
	var result *multierror.Error

	if m.Version == "" {
		result = multierror.Append(result, fmt.Errorf("missing mandatory 'version' field"))
	}
	if m.Items == nil {
		result = multierror.Append(result, fmt.Errorf("missing mandatory 'items' mapping"))
	}

	pathIndex := make(map[string]string)
	claim := func(owner string, rec FileRecord) {
		if rec.RelativePath == "" {
			result = multierror.Append(result, fmt.Errorf("%s: empty relative path", owner))
			return
		}
		if existing, ok := pathIndex[rec.RelativePath]; ok && existing != rec.Checksum {
			result = multierror.Append(result, fmt.Errorf(
				"%s: path %q claimed twice with differing checksums", owner, rec.RelativePath))
			return
		}
		pathIndex[rec.RelativePath] = rec.Checksum
	}

	for _, id := range sortedItemIDs(m.Items) {
		item := m.Items[id]
		for _, role := range sortedRoles(item.Files) {
			claim(fmt.Sprintf("item %q role %q", id, role), item.Files[role])
		}
	}
	for _, name := range sortedFileNames(m.AuxFiles) {
		claim(fmt.Sprintf("aux file %q", name), m.AuxFiles[name])
	}

	for groupID, members := range m.Groups {
		for _, id := range members {
			if _, ok := m.Items[id]; !ok {
				result = multierror.Append(result, fmt.Errorf(
					"group %q references unknown item %q", groupID, id))
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidManifest, err)
	}

	m.pathIndex = pathIndex
	return nil
}

// ItemIDs returns the item identifiers in lexical order.
func (m *Manifest) ItemIDs() []string {
	return sortedItemIDs(m.Items)
}

// AuxNames returns the auxiliary file names in lexical order.
func (m *Manifest) AuxNames() []string {
	return sortedFileNames(m.AuxFiles)
}

// ResolvePath returns the dataset-root-relative path of the file bound to
// the given item and role.
func (m *Manifest) ResolvePath(itemID string, role string) (string, error) {
	item, ok := m.Items[itemID]
	if !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownItem, itemID)
	}
	rec, ok := item.Files[role]
	if !ok {
		return "", fmt.Errorf("%w: item %q has no role %q", common.ErrUnknownRole, itemID, role)
	}
	return rec.RelativePath, nil
}

// ExpectedChecksum returns the manifest's digest for a relative path.
func (m *Manifest) ExpectedChecksum(relativePath string) (string, bool) {
	sum, ok := m.pathIndex[relativePath]
	return sum, ok
}

// GroupItems returns the ordered member item ids of a group.
func (m *Manifest) GroupItems(groupID string) ([]string, bool) {
	members, ok := m.Groups[groupID]
	return members, ok
}

// AllFiles returns every file record reachable from the manifest - item
// files first (by item id, then role), then aux files - in a deterministic
// order.
func (m *Manifest) AllFiles() []FileRecord {
	records := make([]FileRecord, 0, len(m.pathIndex))
	for _, id := range sortedItemIDs(m.Items) {
		item := m.Items[id]
		for _, role := range sortedRoles(item.Files) {
			records = append(records, item.Files[role])
		}
	}
	for _, name := range sortedFileNames(m.AuxFiles) {
		records = append(records, m.AuxFiles[name])
	}
	return records
}

func sortedItemIDs(items map[string]ItemRecord) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedRoles(files map[string]FileRecord) []string {
	roles := make([]string, 0, len(files))
	for role := range files {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func sortedFileNames(files map[string]FileRecord) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
