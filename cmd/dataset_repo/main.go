package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/corpusworks/dataset-repo/common/config"
	"github.com/corpusworks/dataset-repo/common/logging"
	"github.com/corpusworks/dataset-repo/common/rcontext"
	"github.com/corpusworks/dataset-repo/common/version"
	"github.com/corpusworks/dataset-repo/datasets"
	"github.com/corpusworks/dataset-repo/errcache"
	"github.com/corpusworks/dataset-repo/metrics"
	"github.com/corpusworks/dataset-repo/pool"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "dataset-repo.yaml", "The path to the configuration")
	definitionsPath := flag.String("definitions", "", "Directory of dataset definition files (overrides the config)")
	action := flag.String("action", "list", "One of: list, download, validate")
	datasetName := flag.String("dataset", "", "The dataset to operate on")
	rootOverride := flag.String("root", "", "Local root for the dataset (default: <dataDirectory>/<dataset>)")
	keysCsv := flag.String("keys", "", "Comma-separated retrieval keys for a partial download (default: all)")
	force := flag.Bool("force", false, "Re-download and re-extract artifacts even when already present")
	cleanup := flag.Bool("cleanup", false, "Delete compressed artifacts after extraction")
	versionFlag := flag.Bool("version", false, "Prints the version and exits")
	flag.Parse()

	if *versionFlag {
		version.Print(false)
		return // exit 0
	}

	// Override config path with config for Docker users
	configEnv := os.Getenv("REPO_CONFIG")
	if configEnv != "" {
		configPath = &configEnv
	}
	config.Path = *configPath

	general := config.Get().General
	if err := logging.Setup(general.LogDirectory, general.LogColors, general.JsonLogs, general.LogLevel); err != nil {
		panic(err)
	}

	logrus.Info("Starting up...")
	version.Print(true)

	if config.Get().Sentry.Enabled {
		logrus.Info("Setting up Sentry for error reporting...")
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.Get().Sentry.Dsn,
			Environment: config.Get().Sentry.Environment,
			Debug:       config.Get().Sentry.Debug,
		}); err != nil {
			logrus.Fatal(err)
		}
	}

	pool.Init()
	errcache.Init()
	metrics.Init()
	config.OnReload(pool.AdjustSize)
	config.OnReload(errcache.AdjustSize)
	config.OnReload(metrics.Reload)

	if _, err := os.Stat(config.Path); err == nil {
		logrus.Info("Starting config watcher...")
		watcher := config.Watch()
		defer watcher.Close()
	}

	definitionsDir := general.DefinitionsDirectory
	if *definitionsPath != "" {
		definitionsDir = *definitionsPath
	}
	if definitionsDir != "" {
		n, err := datasets.RegisterFromDirectory(definitionsDir)
		if err != nil {
			logrus.Fatal(err)
		}
		logrus.Infof("Registered %d dataset definitions from %s", n, definitionsDir)
	}

	// SIGINT stops issuing new transfers; in-flight ones finish or time
	// out, and partial files are caught by checksum on the next run.
	cctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		logrus.Warn("Stop signal received - cancelling")
		cancel()
	}()

	ctx := rcontext.Initial().WithContext(cctx)

	exitCode := 0
	switch *action {
	case "list":
		for _, name := range datasets.List() {
			logrus.Info(name)
		}
	case "download":
		exitCode = runDownload(ctx, *datasetName, *rootOverride, *keysCsv, *force, *cleanup)
	case "validate":
		exitCode = runValidate(ctx, *datasetName, *rootOverride)
	default:
		logrus.Fatalf("Unknown action %q", *action)
	}

	metrics.Stop()
	pool.Drain()
	os.Exit(exitCode)
}

func openDataset(ctx rcontext.RequestContext, name string, root string) *datasets.Dataset {
	if name == "" {
		logrus.Fatal("No dataset specified - use -dataset")
	}
	ds, err := datasets.Open(ctx, name, root)
	if err != nil {
		logrus.Fatal(err)
	}
	return ds
}

func runDownload(ctx rcontext.RequestContext, name string, root string, keysCsv string, force bool, cleanup bool) int {
	ds := openDataset(ctx, name, root)

	keys := make([]string, 0)
	if keysCsv != "" {
		for _, k := range strings.Split(keysCsv, ",") {
			keys = append(keys, strings.TrimSpace(k))
		}
	}

	summary, err := ds.Download(datasets.DownloadOptions{
		Keys:           keys,
		ForceOverwrite: force,
		Cleanup:        cleanup,
	})
	if err != nil {
		logrus.Fatal(err)
	}

	for _, status := range []datasets.KeyStatus{datasets.KeyDownloaded, datasets.KeyAlreadyPresent, datasets.KeyRestricted} {
		for _, k := range summary.KeysWithStatus(status) {
			logrus.Infof("%s: %s", k, status)
		}
	}
	for _, k := range summary.KeysWithStatus(datasets.KeyFailed) {
		logrus.Errorf("%s: failed: %v", k, summary.Results[k].Err)
	}

	if !summary.Ok() {
		return 1
	}
	return 0
}

func runValidate(ctx rcontext.RequestContext, name string, root string) int {
	ds := openDataset(ctx, name, root)

	report, err := ds.Validate()
	if err != nil {
		logrus.Fatal(err)
	}

	if report.OK() {
		logrus.Infof("%s is valid at %s", name, ds.Root())
		return 0
	}
	for _, p := range report.Missing() {
		logrus.Errorf("missing: %s", p)
	}
	for _, p := range report.Mismatched() {
		f := report.Findings[p]
		logrus.Errorf("checksum mismatch: %s (expected %s, got %s)", p, f.Expected, f.Actual)
	}
	return 1
}
