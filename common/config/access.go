package config

import (
	"io/ioutil"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var Path = "dataset-repo.yaml"

var instance *MainConfig
var singletonLock = &sync.Once{}
var reloadListeners = make([]func(), 0)

func reloadConfig() (*MainConfig, error) {
	c := NewDefaultMainConfig()

	info, err := os.Stat(Path)
	if os.IsNotExist(err) {
		// No config file is fine - everything has a default.
		return &c, nil
	}
	if err != nil {
		return nil, err
	}

	pathsOrdered := make([]string, 0)
	if info.IsDir() {
		logrus.Info("Config is a directory - loading all files over top of each other")

		files, err := ioutil.ReadDir(Path)
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			pathsOrdered = append(pathsOrdered, path.Join(Path, f.Name()))
		}

		sort.Strings(pathsOrdered)
	} else {
		pathsOrdered = append(pathsOrdered, Path)
	}

	for _, p := range pathsOrdered {
		logrus.Info("Loading config file: ", p)
		buffer, err := ioutil.ReadFile(p)
		if err != nil {
			return nil, err
		}

		if err = yaml.Unmarshal(buffer, &c); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

func Get() *MainConfig {
	if instance == nil {
		singletonLock.Do(func() {
			c, err := reloadConfig()
			if err != nil {
				logrus.Fatal(err)
			}
			instance = c
		})
	}
	return instance
}

// OnReload registers a function to be called whenever the config is reloaded
// from disk (see Watch).
func OnReload(fn func()) {
	reloadListeners = append(reloadListeners, fn)
}
