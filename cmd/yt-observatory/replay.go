package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/yt-observatory/internal/upload"
	"github.com/pdiddy/yt-observatory/internal/warehouse"
)

var replayCmd = &cobra.Command{
	Use:   "replay [backup-files...]",
	Short: "Upload rows saved in fallback files",
	Long: `Replay reads newline-delimited JSON fallback files written when a chunk
could not be inserted and uploads their rows to the configured table. A file
is left in place unless every chunk from it was inserted and --remove is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().Bool("remove", false, "delete each file after all of its rows are inserted")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.Validate(); err != nil {
		return err
	}
	remove, _ := cmd.Flags().GetBool("remove")

	ctx := cmd.Context()
	wh, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return err
	}
	defer wh.Close()

	u := upload.New(wh, logger)
	ref := warehouse.Ref(cfg.Warehouse)
	opts := upload.OptionsFromConfig(cfg.Upload, "")

	failed := 0
	for _, path := range args {
		rows, err := upload.ReadBackup(path)
		if err != nil {
			logger.Error("skipping backup file", "path", path, "error", err)
			failed++
			continue
		}

		res := u.UploadRows(ctx, warehouse.VideoSchema, rows, ref, opts)
		if !res.OK() {
			logger.Error("replay incomplete", "path", path, "chunks", res.Chunks, "failed", res.Failed, "error", res.LastError)
			failed++
			continue
		}
		logger.Info("replayed backup file", "path", path, "rows", res.Inserted)

		if remove {
			if err := os.Remove(path); err != nil {
				logger.Warn("could not remove replayed file", "path", path, "error", err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d backup file(s) not fully replayed", failed, len(args))
	}
	return nil
}
