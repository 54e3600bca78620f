package pool

import (
	"sync"

	"github.com/corpusworks/dataset-repo/common/config"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

var DownloadQueue *Queue

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		var err error
		if DownloadQueue, err = NewQueue(config.Get().Downloads.NumWorkers, "downloads"); err != nil {
			sentry.CaptureException(err)
			logrus.Error("Error setting up downloads queue")
			logrus.Fatal(err)
		}
	})
}

func AdjustSize() {
	DownloadQueue.pool.Tune(config.Get().Downloads.NumWorkers)
}

func Drain() {
	DownloadQueue.pool.Release()
}
