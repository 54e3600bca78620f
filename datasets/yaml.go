package datasets

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corpusworks/dataset-repo/remotes"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type definitionFile struct {
	Name           string              `yaml:"name"`
	Version        string              `yaml:"version"`
	ManifestPath   string              `yaml:"manifest"`
	ManifestRemote *remotes.Descriptor `yaml:"manifestRemote"`
	Remotes        remotes.Table       `yaml:"remotes"`
	InfoMessage    string              `yaml:"info"`
}

// LoadDefinitionFile reads one declarative dataset definition from YAML.
func LoadDefinitionFile(path string) (Definition, error) {
	buffer, err := ioutil.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}

	df := definitionFile{}
	if err := yaml.UnmarshalStrict(buffer, &df); err != nil {
		return Definition{}, fmt.Errorf("parsing dataset definition %s: %v", path, err)
	}
	if df.Name == "" {
		return Definition{}, fmt.Errorf("dataset definition %s has no name", path)
	}

	return Definition{
		Name:           df.Name,
		Version:        df.Version,
		ManifestPath:   df.ManifestPath,
		ManifestRemote: df.ManifestRemote,
		Remotes:        df.Remotes,
		InfoMessage:    df.InfoMessage,
	}, nil
}

// RegisterFromDirectory loads and registers every *.yaml/*.yml definition in
// dir, returning how many were registered.
func RegisterFromDirectory(dir string) (int, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".yaml") && !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	registered := 0
	for _, name := range names {
		def, err := LoadDefinitionFile(filepath.Join(dir, name))
		if err != nil {
			return registered, err
		}
		if err := Register(def); err != nil {
			return registered, err
		}
		logrus.Debugf("Registered dataset %s (version %s)", def.Name, def.Version)
		registered++
	}
	return registered, nil
}
