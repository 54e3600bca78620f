package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var ArtifactsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dataset_artifacts_fetched_total",
}, []string{"dataset"})
var FetchRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dataset_fetch_retries_total",
}, []string{"dataset"})
var FetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dataset_fetch_failures_total",
}, []string{"dataset", "reason"})
var BytesDownloaded = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dataset_bytes_downloaded_total",
}, []string{"dataset"})
var ChecksumFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dataset_checksum_failures_total",
}, []string{"dataset", "kind"})
var ArchivesExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dataset_archives_extracted_total",
}, []string{"dataset"})
var FilesVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dataset_files_verified_total",
}, []string{"dataset", "status"})

func init() {
	prometheus.MustRegister(ArtifactsFetched)
	prometheus.MustRegister(FetchRetries)
	prometheus.MustRegister(FetchFailures)
	prometheus.MustRegister(BytesDownloaded)
	prometheus.MustRegister(ChecksumFailures)
	prometheus.MustRegister(ArchivesExtracted)
	prometheus.MustRegister(FilesVerified)
}
