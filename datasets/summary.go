package datasets

import (
	"sort"
)

type KeyStatus string

const (
	KeyDownloaded     KeyStatus = "downloaded"
	KeyAlreadyPresent KeyStatus = "already_present"
	KeyRestricted     KeyStatus = "restricted"
	KeyFailed         KeyStatus = "failed"
)

// KeyResult is the fate of one retrieval key within a download run.
type KeyResult struct {
	Status KeyStatus
	Err    error // set only for KeyFailed
}

// Summary aggregates the per-key outcomes of one Download call. A run never
// aborts on the first failing key; the caller learns the fate of every
// requested key in one pass.
type Summary struct {
	Dataset string
	Results map[string]KeyResult
}

func newSummary(dataset string) *Summary {
	return &Summary{Dataset: dataset, Results: make(map[string]KeyResult)}
}

// Ok reports whether every key reached downloaded/already-present/restricted
// without failures.
func (s *Summary) Ok() bool {
	for _, r := range s.Results {
		if r.Status == KeyFailed {
			return false
		}
	}
	return true
}

// KeysWithStatus returns the retrieval keys that ended in the given status,
// in lexical order.
func (s *Summary) KeysWithStatus(status KeyStatus) []string {
	keys := make([]string, 0)
	for k, r := range s.Results {
		if r.Status == status {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
