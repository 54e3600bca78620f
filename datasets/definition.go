package datasets

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/corpusworks/dataset-repo/common"
	"github.com/corpusworks/dataset-repo/common/rcontext"
	"github.com/corpusworks/dataset-repo/remotes"
)

// IndexKey is the reserved retrieval key under which a remote manifest is
// fetched. Dataset definitions must not declare it themselves.
const IndexKey = "index"

// Definition is the declarative description of one dataset. The engine is
// generic; everything dataset-specific lives in this record.
type Definition struct {
	Name    string
	Version string

	// ManifestPath locates the manifest JSON, relative to the dataset
	// root. Defaults to "manifest.json".
	ManifestPath string

	// ManifestRemote, when set, declares where to download the manifest
	// from. It is fetched under IndexKey.
	ManifestRemote *remotes.Descriptor

	// Remotes maps retrieval keys to downloadable artifacts.
	Remotes remotes.Table

	// InfoMessage is logged after a download completes - licensing
	// caveats, manual acquisition steps for restricted parts, etc.
	InfoMessage string
}

func (def Definition) manifestPath() string {
	if def.ManifestPath == "" {
		return "manifest.json"
	}
	return def.ManifestPath
}

var registryLock = &sync.Mutex{}
var registry = make(map[string]Definition)

// Register adds a dataset definition to the process-wide registry. Names
// are unique; registering the same name twice is a programming error.
func Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("dataset definitions need a name")
	}
	if _, ok := def.Remotes[IndexKey]; ok {
		return fmt.Errorf("dataset %q declares the reserved retrieval key %q", def.Name, IndexKey)
	}

	registryLock.Lock()
	defer registryLock.Unlock()
	if _, ok := registry[def.Name]; ok {
		return fmt.Errorf("dataset %q is already registered", def.Name)
	}
	registry[def.Name] = def
	return nil
}

// Lookup returns the registered definition for a dataset name.
func Lookup(name string) (Definition, error) {
	registryLock.Lock()
	defer registryLock.Unlock()
	def, ok := registry[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", common.ErrDatasetNotFound, name)
	}
	return def, nil
}

// List returns the registered dataset names in lexical order.
func List() []string {
	registryLock.Lock()
	defer registryLock.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open instantiates a registered dataset. An empty root places the dataset
// under the configured data directory.
func Open(ctx rcontext.RequestContext, name string, root string) (*Dataset, error) {
	def, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if root == "" {
		root = filepath.Join(ctx.Config.General.DataDirectory, def.Name)
	}
	return New(ctx, def, root), nil
}
