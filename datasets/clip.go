package datasets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/corpusworks/dataset-repo/common"
	"github.com/patrickmn/go-cache"
)

// Clip is the accessor for one item of a dataset. It hands collaborators
// (the per-dataset annotation parsers, which live outside this engine)
// verified paths and byte streams.
type Clip struct {
	ID string

	ds *Dataset
}

// Clip returns the accessor for one item id.
func (d *Dataset) Clip(id string) (*Clip, error) {
	m, err := d.Manifest()
	if err != nil {
		return nil, err
	}
	if _, ok := m.Items[id]; !ok {
		return nil, fmt.Errorf("%w: %q is not a valid item in %s", common.ErrUnknownItem, id, d.def.Name)
	}
	return &Clip{ID: id, ds: d}, nil
}

// ClipIDs returns every item id in the dataset, in lexical order.
func (d *Dataset) ClipIDs() ([]string, error) {
	m, err := d.Manifest()
	if err != nil {
		return nil, err
	}
	return m.ItemIDs(), nil
}

// Roles returns the role names available for this item, in lexical order.
func (c *Clip) Roles() ([]string, error) {
	m, err := c.ds.Manifest()
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0)
	for role := range m.Items[c.ID].Files {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

// Path returns the absolute local path of the file bound to a role.
func (c *Clip) Path(role string) (string, error) {
	m, err := c.ds.Manifest()
	if err != nil {
		return "", err
	}
	rel, err := m.ResolvePath(c.ID, role)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.ds.root, filepath.FromSlash(rel)), nil
}

// Open returns a byte stream for the file bound to a role. The caller
// closes it.
func (c *Clip) Open(role string) (io.ReadCloser, error) {
	p, err := c.Path(role)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// AnnotationParser turns the raw bytes of one role's file into a
// dataset-specific annotation object. Parsers are pure functions of the
// bytes, which is what makes memoization safe.
type AnnotationParser func(r io.Reader) (interface{}, error)

// Annotation parses the file bound to a role, memoizing the result per
// item+role. Concurrent readers of the same entry may both compute on first
// access; parsing is idempotent so either result is fine and one of them is
// kept.
func (c *Clip) Annotation(role string, parse AnnotationParser) (interface{}, error) {
	memoKey := c.ID + "\x00" + role
	if cached, ok := c.ds.memo.Get(memoKey); ok {
		return cached, nil
	}

	f, err := c.Open(role)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := parse(f)
	if err != nil {
		return nil, err
	}
	c.ds.memo.Set(memoKey, parsed, cache.NoExpiration)
	return parsed, nil
}
