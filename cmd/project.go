package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/alDuncanson/dupescope/config"
	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/logging"
	"github.com/alDuncanson/dupescope/points"
	"github.com/alDuncanson/dupescope/projection"
	"github.com/alDuncanson/dupescope/render"
)

var (
	flagProjectOut        string
	flagProjectCache      string
	flagProjectTitle      string
	flagProjectForce      bool
	flagProjectEmbeddings bool
	flagProjectQdrant     bool
	flagProjectPCA        int
	flagProjectNeighbors  int
	flagProjectMinDist    float64
	flagProjectSeed       int64
)

var projectCmd = &cobra.Command{
	Use:   "project [dataset.ndjson]",
	Short: "Project a dataset and write the self-contained HTML viewer",
	Long: `Project reads embedded issues and pull requests, reduces their embeddings
to 2D and 3D coordinates (PCA, then UMAP) and writes a single HTML file that
explores them in the browser. Projections are cached next to the dataset.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProject,
}

func init() {
	projectCmd.Flags().StringVarP(&flagProjectOut, "out", "o", "dupescope.html", "HTML file to write")
	projectCmd.Flags().StringVar(&flagProjectCache, "cache", "", "projection cache file (default <dataset>.projection.json)")
	projectCmd.Flags().StringVar(&flagProjectTitle, "title", "", "page title (default dataset name)")
	projectCmd.Flags().BoolVar(&flagProjectForce, "force", false, "recompute even if the cache matches")
	projectCmd.Flags().BoolVar(&flagProjectEmbeddings, "include-embeddings", false, "embed raw vectors in the page to enable in-page search")
	projectCmd.Flags().BoolVar(&flagProjectQdrant, "qdrant", false, "read records from the configured Qdrant collection")
	projectCmd.Flags().IntVar(&flagProjectPCA, "pca", 0, "principal components kept before UMAP (prompted when interactive)")
	projectCmd.Flags().IntVar(&flagProjectNeighbors, "n-neighbors", 0, "UMAP neighbourhood size")
	projectCmd.Flags().Float64Var(&flagProjectMinDist, "min-dist", 0, "UMAP minimum distance")
	projectCmd.Flags().Int64Var(&flagProjectSeed, "seed", 0, "UMAP random seed (0 picks one per run)")
	rootCmd.AddCommand(projectCmd)
}

func runProject(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 0 && !flagProjectQdrant {
		return cmd.Help()
	}

	if err := applyProjectionFlags(cmd, cfg); err != nil {
		return err
	}
	if flagProjectEmbeddings {
		cfg.Projection.IncludeEmbeddings = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var path string
	if len(args) > 0 {
		path = args[0]
	}
	ds, err := loadDataset(ctx, cfg, path, flagProjectQdrant, logger)
	if err != nil {
		return err
	}

	cachePath := ds.cachePath
	if flagProjectCache != "" {
		cachePath = flagProjectCache
	}
	if err := choosePCAComponents(cmd, cfg, cachePath, ds, logger); err != nil {
		return err
	}
	proj, err := project(ctx, ds, cfg, cachePath, logger)
	if err != nil {
		return err
	}

	pts, err := points.Assemble(ds.records, proj, points.Options{IncludeEmbedding: cfg.Projection.IncludeEmbeddings})
	if err != nil {
		return err
	}

	title := ds.title
	if flagProjectTitle != "" {
		title = flagProjectTitle
	}
	doc := render.NewDocument(title, pts, pageSearchURL(cfg.Embedding), cfg.Embedding.Model)
	if doc.Search.Enabled && cfg.Embedding.Provider == "huggingface" {
		// The page only speaks the OpenAI embeddings API.
		logger.Warn("In-page search is not available for the huggingface provider; use the terminal viewer")
		doc.Search.Enabled = false
	}
	if err := render.WriteHTML(flagProjectOut, doc); err != nil {
		return err
	}

	logger.Info("Wrote %d points to %s", len(pts), flagProjectOut)
	fmt.Fprintln(cmd.OutOrStdout(), flagProjectOut)
	return nil
}

// applyProjectionFlags lets explicit flags override the config.
func applyProjectionFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	p := &cfg.Projection

	if flags.Changed("pca") {
		p.PCAComponents = flagProjectPCA
	}
	if flags.Changed("n-neighbors") {
		p.NNeighbors = flagProjectNeighbors
	}
	if flags.Changed("min-dist") {
		p.MinDist = flagProjectMinDist
	}
	if flags.Changed("seed") {
		p.Seed = flagProjectSeed
	}
	if flagProjectForce {
		p.Force = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// choosePCAComponents asks for the component count on an interactive run
// that will actually reduce. A reusable cache skips the prompt, and an
// explicit --pca that the cache would ignore is reported.
func choosePCAComponents(cmd *cobra.Command, cfg *config.Config, cachePath string, ds *dataset, logger *logging.Logger) error {
	p := &cfg.Projection
	if cacheReusable(cachePath, p.Force, ds) {
		if cmd.Flags().Changed("pca") {
			logger.Warn("Cached projection at %s ignores --pca %d; pass --force to recompute", cachePath, p.PCAComponents)
		}
		return nil
	}
	if cmd.Flags().Changed("pca") || !stdinIsTerminal() {
		return nil
	}

	n, err := promptPCAComponents(cmd.InOrStdin(), cmd.ErrOrStderr(), p.PCAComponents)
	if err != nil {
		return err
	}
	p.PCAComponents = n
	return nil
}

// cacheReusable reports whether ReduceCached would return the stored
// projection at cachePath for ds.
func cacheReusable(cachePath string, force bool, ds *dataset) bool {
	if force {
		return false
	}
	entry, err := projection.LoadCache(cachePath)
	return err == nil && entry.Matches(dataimport.Vectors(ds.records))
}
