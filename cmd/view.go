package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/alDuncanson/dupescope/config"
	"github.com/alDuncanson/dupescope/keyword"
	"github.com/alDuncanson/dupescope/logging"
	"github.com/alDuncanson/dupescope/points"
	"github.com/alDuncanson/dupescope/tui"
	"github.com/alDuncanson/dupescope/viewer"
)

var (
	flagViewCache  string
	flagViewForce  bool
	flagViewQdrant bool
	flagViewExport string
)

var viewCmd = &cobra.Command{
	Use:   "view [dataset.ndjson]",
	Short: "Explore a dataset in the terminal",
	Long: `View projects a dataset the same way project does, reusing its cache, and
opens an interactive terminal viewer with mouse selection, filters, keyword
find, semantic search and a walk through candidate duplicate groups.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&flagViewCache, "cache", "", "projection cache file (default <dataset>.projection.json)")
	viewCmd.Flags().BoolVar(&flagViewForce, "force", false, "recompute even if the cache matches")
	viewCmd.Flags().BoolVar(&flagViewQdrant, "qdrant", false, "read records from the configured Qdrant collection")
	viewCmd.Flags().StringVar(&flagViewExport, "export", "selection.txt", "file receiving the selected urls")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 0 && !flagViewQdrant {
		return cmd.Help()
	}
	if flagViewForce {
		cfg.Projection.Force = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var path string
	if len(args) > 0 {
		path = args[0]
	}
	ds, err := loadDataset(ctx, cfg, path, flagViewQdrant, logger)
	if err != nil {
		return err
	}

	cachePath := ds.cachePath
	if flagViewCache != "" {
		cachePath = flagViewCache
	}
	proj, err := project(ctx, ds, cfg, cachePath, logger)
	if err != nil {
		return err
	}

	// The terminal viewer searches in memory, so it always keeps the vectors.
	pts, err := points.Assemble(ds.records, proj, points.Options{IncludeEmbedding: true})
	if err != nil {
		return err
	}

	clusters, err := clusterRecords(ctx, ds.records, cfg.Groups, logger)
	if err != nil {
		return err
	}

	keywords, err := keyword.Build(pts)
	if err != nil {
		return err
	}
	defer keywords.Close()

	return tui.Run(ctx, tui.Options{
		Title:      ds.title,
		Points:     pts,
		Keywords:   keywords,
		Search:     newSearchClient(cfg.Embedding, logger),
		Groups:     clusters.Groups(),
		Viewer:     viewerOptions(cfg.Viewer),
		ExportPath: flagViewExport,
		Version:    rootCmd.Version,
		Logger:     logger,
	}, cfg.Viewer.LogFile)
}

// newSearchClient prepares semantic search, pre-filling the credential from
// the environment or the dotenv file when one is available.
func newSearchClient(cfg config.EmbeddingConfig, logger *logging.Logger) *viewer.SearchClient {
	client := viewer.NewSearchClient(newEmbedderFactory(cfg, logger), cfg.NeedsCredential())
	if !cfg.NeedsCredential() {
		return client
	}

	credential, err := config.LoadCredential(cfg)
	if err != nil {
		logger.Warn("Could not read credential: %v", err)
		return client
	}
	if credential != "" {
		client.SetCredential(credential)
	}
	return client
}

// terminalRotateSpeed is radians per cell dragged; cells are much coarser
// than pixels.
const terminalRotateSpeed = 0.05

func viewerOptions(cfg config.ViewerConfig) viewer.Options {
	return viewer.Options{
		HitRadius:      cfg.HitRadius,
		ClickThreshold: cfg.ClickThreshold,
		RotateSpeed:    terminalRotateSpeed,
	}
}
