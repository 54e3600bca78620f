package remotes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/corpusworks/dataset-repo/common"
	"github.com/corpusworks/dataset-repo/common/rcontext"
	"github.com/corpusworks/dataset-repo/errcache"
	"github.com/corpusworks/dataset-repo/metrics"
	"github.com/corpusworks/dataset-repo/pool"
	"github.com/corpusworks/dataset-repo/verify"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Fetcher resolves retrieval keys to local, checksum-verified artifacts.
type Fetcher struct {
	ctx     rcontext.RequestContext
	dataset string
	root    string
	table   Table
	client  *http.Client
}

func NewFetcher(ctx rcontext.RequestContext, dataset string, root string, table Table) *Fetcher {
	timeout := time.Duration(ctx.Config.Downloads.TimeoutSeconds) * time.Second
	return &Fetcher{
		ctx:     ctx,
		dataset: dataset,
		root:    root,
		table:   table,
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the selected keys (all declared keys when the selection is
// empty), expanding any partially-selected groups. Keys are independent, so
// they are fetched concurrently on the shared download queue; the returned
// map has exactly one terminal Outcome per expanded key, whatever happened
// to the others.
func (f *Fetcher) Fetch(keys []string, force bool) (map[string]*Outcome, error) {
	expanded, err := f.table.ExpandSelection(keys)
	if err != nil {
		return nil, err
	}

	pool.Init()
	errcache.Init()

	outcomes := make(map[string]*Outcome, len(expanded))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, key := range expanded {
		key := key
		wg.Add(1)
		task := func() {
			defer wg.Done()
			outcome := f.fetchKey(key, force)
			mu.Lock()
			outcomes[key] = outcome
			mu.Unlock()
		}
		if err := pool.DownloadQueue.Schedule(task); err != nil {
			wg.Done()
			mu.Lock()
			outcomes[key] = &Outcome{Key: key, State: NetworkFailed, Err: err}
			mu.Unlock()
		}
	}

	wg.Wait()
	return outcomes, nil
}

func (f *Fetcher) fetchKey(key string, force bool) *Outcome {
	log := f.ctx.Log.WithField("key", key)
	remote := f.table[key]

	if remote.restricted() {
		log.Info("Remote is restricted - it must be acquired manually and placed in the dataset root")
		return &Outcome{Key: key, State: Restricted}
	}

	cacheKey := f.dataset + "/" + key
	if err := errcache.DownloadErrors.Get(cacheKey); err != nil {
		log.Debug("Skipping fetch - recent failure is cached: ", err)
		return &Outcome{Key: key, State: NetworkFailed, Err: err}
	}

	outcome := &Outcome{Key: key, State: InProgress, AlreadyPresent: true}
	for _, desc := range remote.Parts {
		if err := f.ctx.Err(); err != nil {
			outcome.State = NetworkFailed
			outcome.Err = fmt.Errorf("%w: %v", common.ErrNetworkFailed, err)
			return outcome
		}

		localPath, present, err := f.fetchPart(log, desc, force)
		if err != nil {
			if errors.Is(err, common.ErrChecksumMismatch) {
				outcome.State = ChecksumMismatch
			} else {
				outcome.State = NetworkFailed
				errcache.DownloadErrors.Set(cacheKey, err)
			}
			outcome.Err = err
			return outcome
		}

		outcome.Paths = append(outcome.Paths, localPath)
		outcome.AlreadyPresent = outcome.AlreadyPresent && present
	}

	outcome.State = Verified
	return outcome
}

// fetchPart brings one descriptor to disk and verifies it. The second
// return is true when the artifact was already present with a matching
// checksum and no network transfer happened.
func (f *Fetcher) fetchPart(log *logrus.Entry, desc Descriptor, force bool) (string, bool, error) {
	destDir := f.root
	if desc.DestinationDir != "" {
		destDir = filepath.Join(f.root, filepath.FromSlash(desc.DestinationDir))
	}
	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		return "", false, fmt.Errorf("%w: %v", common.ErrDestinationNotWritable, err)
	}

	localPath := filepath.Join(destDir, desc.Filename)

	if !force {
		if _, err := os.Stat(localPath); err == nil {
			actual, err := verify.Digest(localPath)
			if err != nil {
				return "", false, err
			}
			if actual == desc.Checksum {
				log.Debugf("%s is already present and verified - not downloading", localPath)
				return localPath, true, nil
			}
			log.Warnf("%s is present but does not match the declared checksum - re-downloading", localPath)
			if err := os.Remove(localPath); err != nil {
				return "", false, err
			}
		}
	}

	tempPath := localPath + ".part"
	if err := f.downloadWithRetry(desc.URL, tempPath); err != nil {
		return "", false, err
	}

	actual, err := verify.Digest(tempPath)
	if err != nil {
		return "", false, err
	}
	if actual != desc.Checksum {
		// Deliberately not retried: a server answering 200 with wrong
		// bytes is usually a stale cache, and hammering it hides that.
		_ = os.Remove(tempPath)
		metrics.ChecksumFailures.With(prometheus.Labels{"dataset": f.dataset, "kind": "artifact"}).Inc()
		return "", false, fmt.Errorf("%w: %s has MD5 %s, expected %s",
			common.ErrChecksumMismatch, desc.Filename, actual, desc.Checksum)
	}

	if err := os.Rename(tempPath, localPath); err != nil {
		return "", false, fmt.Errorf("%w: %v", common.ErrDestinationNotWritable, err)
	}

	if info, err := os.Stat(localPath); err == nil {
		metrics.BytesDownloaded.With(prometheus.Labels{"dataset": f.dataset}).Add(float64(info.Size()))
		log.Infof("Downloaded %s (%s)", desc.Filename, humanize.Bytes(uint64(info.Size())))
	}
	metrics.ArtifactsFetched.With(prometheus.Labels{"dataset": f.dataset}).Inc()

	return localPath, false, nil
}

// downloadWithRetry performs the transfer with exponential backoff on
// transient failures. Timeouts and 5xx responses are retried; anything else
// is permanent.
func (f *Fetcher) downloadWithRetry(url string, tempPath string) error {
	attempts := f.ctx.Config.Downloads.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(attempts-1))
	policyWithCtx := backoff.WithContext(policy, f.ctx.Context)

	op := func() error {
		return f.downloadOnce(url, tempPath)
	}
	notify := func(err error, next time.Duration) {
		metrics.FetchRetries.With(prometheus.Labels{"dataset": f.dataset}).Inc()
		f.ctx.Log.Warnf("Transfer of %s failed (%v) - retrying in %s", url, err, next)
	}

	if err := backoff.RetryNotify(op, policyWithCtx, notify); err != nil {
		metrics.FetchFailures.With(prometheus.Labels{"dataset": f.dataset, "reason": "network"}).Inc()
		return fmt.Errorf("%w: %s: %v", common.ErrNetworkFailed, url, err)
	}
	return nil
}

func (f *Fetcher) downloadOnce(url string, tempPath string) error {
	req, err := http.NewRequestWithContext(f.ctx.Context, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", f.ctx.Config.General.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return err // includes timeouts - retryable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	// Truncate any partial leftovers from a previous attempt.
	out, err := os.Create(tempPath)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", common.ErrDestinationNotWritable, err))
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		// The partial .part file stays on disk; a later attempt
		// truncates it, and nothing ever mistakes it for an artifact.
		return err
	}
	return nil
}
