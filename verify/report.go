package verify

import (
	"sort"
)

type Status string

const (
	StatusMissing          Status = "missing"
	StatusChecksumMismatch Status = "checksum_mismatch"
)

// Finding is one discrepancy between the manifest and the local tree.
type Finding struct {
	Status   Status
	Expected string // manifest digest
	Actual   string // on-disk digest, empty for missing files
}

// DiscrepancyReport maps dataset-root-relative paths to findings. Paths
// whose files exist and match the manifest do not appear.
type DiscrepancyReport struct {
	Findings map[string]Finding
}

func NewDiscrepancyReport() *DiscrepancyReport {
	return &DiscrepancyReport{Findings: make(map[string]Finding)}
}

// OK reports whether the verified tree matched the manifest completely.
func (r *DiscrepancyReport) OK() bool {
	return len(r.Findings) == 0
}

func (r *DiscrepancyReport) Missing() []string {
	return r.pathsWithStatus(StatusMissing)
}

func (r *DiscrepancyReport) Mismatched() []string {
	return r.pathsWithStatus(StatusChecksumMismatch)
}

func (r *DiscrepancyReport) pathsWithStatus(status Status) []string {
	paths := make([]string, 0)
	for p, f := range r.Findings {
		if f.Status == status {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
