package errcache

import (
	"sync"
	"time"

	"github.com/corpusworks/dataset-repo/common/config"
)

// DownloadErrors remembers recent fetch failures per retrieval key so that
// tight retry loops don't hammer a mirror that is known to be down.
var DownloadErrors *ErrCache

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		DownloadErrors = NewErrCache(time.Duration(config.Get().Downloads.FailureCacheMinutes) * time.Minute)
	})
}

func AdjustSize() {
	DownloadErrors.Resize(time.Duration(config.Get().Downloads.FailureCacheMinutes) * time.Minute)
}
