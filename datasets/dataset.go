package datasets

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/corpusworks/dataset-repo/archival"
	"github.com/corpusworks/dataset-repo/common"
	"github.com/corpusworks/dataset-repo/common/rcontext"
	"github.com/corpusworks/dataset-repo/manifest"
	"github.com/corpusworks/dataset-repo/metrics"
	"github.com/corpusworks/dataset-repo/remotes"
	"github.com/corpusworks/dataset-repo/verify"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Dataset is the acquisition orchestrator for one dataset at one local
// root. The manifest is read-only input; the local tree under root is the
// only thing this type mutates.
type Dataset struct {
	def  Definition
	root string
	ctx  rcontext.RequestContext

	manifestLock sync.Mutex
	manifestObj  *manifest.Manifest

	memo *cache.Cache
}

func New(ctx rcontext.RequestContext, def Definition, root string) *Dataset {
	return &Dataset{
		def:  def,
		root: root,
		ctx:  ctx.LogWithFields(logrus.Fields{"dataset": def.Name}),
		memo: cache.New(cache.NoExpiration, 0),
	}
}

// Root returns the dataset's local root directory.
func (d *Dataset) Root() string {
	return d.root
}

// Manifest loads (and caches) the dataset's manifest. For datasets with a
// remote manifest that hasn't been fetched yet, the caller is told to run
// Download first.
func (d *Dataset) Manifest() (*manifest.Manifest, error) {
	d.manifestLock.Lock()
	defer d.manifestLock.Unlock()

	if d.manifestObj != nil {
		return d.manifestObj, nil
	}

	m, err := manifest.Load(filepath.Join(d.root, filepath.FromSlash(d.def.manifestPath())))
	if err != nil {
		if d.def.ManifestRemote != nil {
			return nil, fmt.Errorf("manifest for %s is not available locally (did you run Download?): %v", d.def.Name, err)
		}
		return nil, err
	}
	d.manifestObj = m
	return m, nil
}

func (d *Dataset) invalidateManifest() {
	d.manifestLock.Lock()
	d.manifestObj = nil
	d.manifestLock.Unlock()
}

type DownloadOptions struct {
	// Keys selects a subset of the declared retrieval keys. Empty means
	// everything. Selecting part of a group selects the whole group.
	Keys []string

	// ForceOverwrite re-downloads and re-extracts artifacts even when they
	// are already present and verified.
	ForceOverwrite bool

	// Cleanup deletes the compressed artifacts after extraction. The next
	// Download will have to re-fetch them to prove idempotence.
	Cleanup bool
}

// Download acquires the selected retrieval keys: fetch (with retry),
// verify, extract. Failures are scoped to the key they concern; the
// returned Summary has a terminal status for every expanded key. Re-running
// Download over a complete tree does no network or extraction work and
// reports every key AlreadyPresent.
func (d *Dataset) Download(opts DownloadOptions) (*Summary, error) {
	table := make(remotes.Table, len(d.def.Remotes)+1)
	for k, v := range d.def.Remotes {
		table[k] = v
	}
	if d.def.ManifestRemote != nil {
		table[IndexKey] = remotes.Single(*d.def.ManifestRemote)
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("dataset %s declares nothing to download", d.def.Name)
	}

	fetcher := remotes.NewFetcher(d.ctx, d.def.Name, d.root, table)
	outcomes, err := fetcher.Fetch(opts.Keys, opts.ForceOverwrite)
	if err != nil {
		return nil, err
	}

	summary := newSummary(d.def.Name)
	for key, outcome := range outcomes {
		summary.Results[key] = d.settleKey(table, outcomes, key, outcome, opts)
	}

	if _, ok := outcomes[IndexKey]; ok {
		d.invalidateManifest()
	}

	if d.def.InfoMessage != "" {
		d.ctx.Log.Info(d.def.InfoMessage)
	}

	return summary, nil
}

// settleKey turns a retrieval outcome into a terminal key result,
// materializing verified artifacts when their whole group is ready.
func (d *Dataset) settleKey(table remotes.Table, outcomes map[string]*remotes.Outcome, key string, outcome *remotes.Outcome, opts DownloadOptions) KeyResult {
	switch outcome.State {
	case remotes.Restricted:
		return KeyResult{Status: KeyRestricted}

	case remotes.Verified:
		for _, sibling := range table.GroupSiblings(key) {
			so, ok := outcomes[sibling]
			if ok && so.State == remotes.Restricted {
				// A group with a restricted member is wholly restricted -
				// the public parts are useless without it.
				return KeyResult{Status: KeyRestricted}
			}
			if !ok || so.State != remotes.Verified {
				err := fmt.Errorf("%w: %q is verified but group member %q is not", common.ErrGroupIncomplete, key, sibling)
				return KeyResult{Status: KeyFailed, Err: err}
			}
		}

		if outcome.AlreadyPresent && !opts.ForceOverwrite {
			d.ctx.Log.Debugf("Key %s is already present - skipping extraction", key)
			return KeyResult{Status: KeyAlreadyPresent}
		}

		if err := d.materialize(table[key], outcome, opts); err != nil {
			metrics.FetchFailures.With(prometheus.Labels{"dataset": d.def.Name, "reason": "extraction"}).Inc()
			return KeyResult{Status: KeyFailed, Err: err}
		}
		metrics.ArchivesExtracted.With(prometheus.Labels{"dataset": d.def.Name}).Inc()
		return KeyResult{Status: KeyDownloaded}

	default:
		return KeyResult{Status: KeyFailed, Err: outcome.Err}
	}
}

func (d *Dataset) materialize(remote remotes.Remote, outcome *remotes.Outcome, opts DownloadOptions) error {
	parts := make([]archival.Artifact, 0, len(outcome.Paths))
	unpackDirs := make([]string, 0)
	for i, p := range outcome.Paths {
		parts = append(parts, archival.Artifact{Path: p, Checksum: remote.Parts[i].Checksum})
		unpackDirs = append(unpackDirs, remote.Parts[i].UnpackDirs...)
	}

	destDir := d.root
	if remote.Parts[0].DestinationDir != "" {
		destDir = filepath.Join(d.root, filepath.FromSlash(remote.Parts[0].DestinationDir))
	}

	return archival.Materialize(d.ctx, parts, destDir, archival.Options{
		Cleanup:    opts.Cleanup,
		UnpackDirs: unpackDirs,
	})
}

// Validate compares the local tree against the manifest and reports every
// discrepancy. It mutates nothing and touches no network; missing or
// corrupt files are findings in the report, never errors.
func (d *Dataset) Validate() (*verify.DiscrepancyReport, error) {
	m, err := d.Manifest()
	if err != nil {
		return nil, err
	}

	report, err := verify.VerifyTree(d.ctx, m, d.root)
	if report != nil {
		metrics.FilesVerified.With(prometheus.Labels{"dataset": d.def.Name, "status": "missing"}).Add(float64(len(report.Missing())))
		metrics.FilesVerified.With(prometheus.Labels{"dataset": d.def.Name, "status": "checksum_mismatch"}).Add(float64(len(report.Mismatched())))
	}
	return report, err
}
