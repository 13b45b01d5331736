package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/yt-observatory/internal/sampler"
	"github.com/pdiddy/yt-observatory/internal/search"
	"github.com/pdiddy/yt-observatory/internal/upload"
	"github.com/pdiddy/yt-observatory/internal/warehouse"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [keyword-file]",
	Short: "Search once per keyword and upload the results",
	Long: `Search reads a keyword file (CSV with a header row, or YAML) whose
entries carry a keyword and a study_group, runs one query per keyword, and
uploads every result in one pass. Rows that cannot be inserted are written to
{backup_dir}/{table}_{YYYYMMDD}.json.{chunk}.

Search types: last-hour, top-rated, all-time, today.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int64("search-results", 20, "number of search results to save per keyword (max 50)")
	searchCmd.Flags().String("search-type", string(types.SearchToday), "type of search: last-hour, top-rated, all-time, or today")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if cmd.Flags().Changed("search-results") || cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults, _ = cmd.Flags().GetInt64("search-results")
	}
	if cmd.Flags().Changed("search-type") || cfg.Search.SearchType == "" {
		st, _ := cmd.Flags().GetString("search-type")
		cfg.Search.SearchType = types.SearchType(st)
	}

	// Input problems are fatal before any network call.
	if _, err := types.ParseSearchType(string(cfg.Search.SearchType)); err != nil {
		return err
	}
	entries, err := search.ReadKeywords(args[0])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := search.NewYouTubeClient(ctx, cfg.DeveloperKey)
	if err != nil {
		return err
	}
	wh, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return err
	}
	defer wh.Close()

	k := &sampler.Keyword{
		Config:        cfg.Search,
		Table:         warehouse.Ref(cfg.Warehouse),
		UploadOptions: upload.OptionsFromConfig(cfg.Upload, ""),
		Client:        client,
		Searcher:      search.NewAdapter(cfg.Search.CallInterval, logger),
		Uploader:      upload.New(wh, logger),
		Summary:       sampler.NewRunSummary(logCounter),
		Logger:        logger,
	}
	res, err := k.Run(ctx, entries)
	if err != nil {
		return err
	}
	k.Summary.Report(ctx, nil, logger, sampler.KeywordModule+" run summary")

	if !res.OK() {
		return fmt.Errorf("%d of %d chunks not inserted (%d rows backed up, %d lost): %s",
			res.Failed, res.Chunks, res.BackedUp, res.Lost, res.LastError)
	}
	return nil
}
