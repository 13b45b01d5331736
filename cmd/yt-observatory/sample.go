package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/yt-observatory/internal/notify"
	"github.com/pdiddy/yt-observatory/internal/sampler"
	"github.com/pdiddy/yt-observatory/internal/search"
	"github.com/pdiddy/yt-observatory/internal/upload"
	"github.com/pdiddy/yt-observatory/internal/warehouse"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Continuously sample newly published videos",
	Long: `Sample polls the search API for videos published in a rolling window
ending a few minutes ago, keeps only results inside the window, and uploads
them in batches. It runs until interrupted (SIGINT or SIGTERM); errors in one
poll are reported and polling resumes after a short pause.`,
	RunE: runSample,
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wh, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return err
	}
	defer wh.Close()

	s := &sampler.Continuous{
		Config:        cfg.Sample,
		Table:         warehouse.Ref(cfg.Warehouse),
		UploadOptions: upload.OptionsFromConfig(cfg.Upload, ""),
		NewClient: func(ctx context.Context) (search.Client, error) {
			return search.NewYouTubeClient(ctx, cfg.DeveloperKey)
		},
		Searcher: search.NewAdapter(cfg.Sample.PollInterval, logger),
		Uploader: upload.New(wh, logger),
		Notifier: notify.New(cfg.Mailgun, logger),
		Summary:  sampler.NewRunSummary(logCounter),
		Logger:   logger,
	}
	return s.Run(ctx)
}
