package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/corpusworks/dataset-repo/common"
	"github.com/pkg/errors"
)

// Parse reads a manifest document and validates its structural invariants.
// A manifest that fails validation is never partially usable: the returned
// Manifest is nil on any error.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(m); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidManifest, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load parses the manifest stored at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening manifest %s", path)
	}
	defer f.Close()
	return Parse(f)
}
