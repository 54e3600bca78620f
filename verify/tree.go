package verify

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/Jeffail/tunny"
	"github.com/corpusworks/dataset-repo/common/rcontext"
	"github.com/corpusworks/dataset-repo/manifest"
	"github.com/hashicorp/go-multierror"
)

type checkResult struct {
	relativePath string
	finding      *Finding
	err          error
}

// VerifyTree checks every file reachable from the manifest (item files and
// aux files) against the local tree rooted at root. Files are digested on a
// bounded worker pool so very large trees don't saturate disk I/O. Missing
// and mismatched files are findings, not errors; only unreadable files (I/O
// access failures) produce an error, and even then the remaining files are
// still checked.
func VerifyTree(ctx rcontext.RequestContext, m *manifest.Manifest, root string) (*DiscrepancyReport, error) {
	workers := ctx.Config.Verification.NumWorkers
	if workers < 1 {
		workers = 1
	}

	pool := tunny.NewFunc(workers, func(payload interface{}) interface{} {
		rec := payload.(manifest.FileRecord)
		return checkFile(rec, root)
	})
	defer pool.Close()

	report := NewDiscrepancyReport()
	var ioErrors *multierror.Error
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, rec := range m.AllFiles() {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(rec manifest.FileRecord) {
			defer wg.Done()
			res := pool.Process(rec).(checkResult)

			mu.Lock()
			defer mu.Unlock()
			if res.err != nil {
				ioErrors = multierror.Append(ioErrors, res.err)
				return
			}
			if res.finding != nil {
				report.Findings[res.relativePath] = *res.finding
			}
		}(rec)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, ioErrors.ErrorOrNil()
}

func checkFile(rec manifest.FileRecord, root string) checkResult {
	localPath := filepath.Join(root, filepath.FromSlash(rec.RelativePath))

	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				relativePath: rec.RelativePath,
				finding:      &Finding{Status: StatusMissing, Expected: rec.Checksum},
			}
		}
		return checkResult{relativePath: rec.RelativePath, err: err}
	}

	actual, err := Digest(localPath)
	if err != nil {
		return checkResult{relativePath: rec.RelativePath, err: err}
	}
	if actual != rec.Checksum {
		return checkResult{
			relativePath: rec.RelativePath,
			finding: &Finding{
				Status:   StatusChecksumMismatch,
				Expected: rec.Checksum,
				Actual:   actual,
			},
		}
	}
	return checkResult{relativePath: rec.RelativePath}
}
