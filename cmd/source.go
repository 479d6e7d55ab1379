package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alDuncanson/dupescope/config"
	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/logging"
	"github.com/alDuncanson/dupescope/projection"
	"github.com/alDuncanson/dupescope/qdrant"
)

var errNoRecords = errors.New("no usable records: every line was malformed or lacked an embedding")

// dataset is a loaded record set plus the names derived from its source.
type dataset struct {
	records   []dataimport.Record
	title     string
	cachePath string
}

// loadDataset reads the NDJSON file at path, or the configured Qdrant
// collection when fromQdrant is set.
func loadDataset(ctx context.Context, cfg *config.Config, path string, fromQdrant bool, logger *logging.Logger) (*dataset, error) {
	var (
		result dataimport.LoadResult
		ds     dataset
		err    error
	)

	if fromQdrant {
		result, err = loadFromQdrant(ctx, cfg.Qdrant)
		ds.title = cfg.Qdrant.Collection
		ds.cachePath = cfg.Qdrant.Collection + ".projection.json"
	} else {
		result, err = dataimport.LoadFile(path)
		ds.title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		ds.cachePath = defaultCachePath(path)
	}
	if err != nil {
		return nil, err
	}

	if result.Skipped > 0 {
		logger.Warn("Skipped %d malformed or embedding-less records", result.Skipped)
	}
	if len(result.Records) == 0 {
		return nil, errNoRecords
	}
	logger.Info("Loaded %d records", len(result.Records))

	ds.records = result.Records
	return &ds, nil
}

func loadFromQdrant(ctx context.Context, cfg config.QdrantConfig) (dataimport.LoadResult, error) {
	client, err := qdrant.NewClient(cfg.Address, cfg.Collection)
	if err != nil {
		return dataimport.LoadResult{}, err
	}
	defer client.Close()

	return client.Records(ctx)
}

// defaultCachePath places the projection cache next to the dataset.
func defaultCachePath(datasetPath string) string {
	return strings.TrimSuffix(datasetPath, filepath.Ext(datasetPath)) + ".projection.json"
}

// reduceConfigFrom maps the configured hyperparameters onto the reducer.
func reduceConfigFrom(p config.ProjectionConfig, progress projection.ProgressFunc) projection.ReduceConfig {
	umap := projection.DefaultUMAPConfig()
	umap.NNeighbors = p.NNeighbors
	umap.MinDist = p.MinDist
	umap.Spread = p.Spread
	umap.NEpochs = p.Epochs
	umap.RandomSeed = p.Seed

	return projection.ReduceConfig{
		PCAComponents: p.PCAComponents,
		UMAP:          umap,
		Progress:      progress,
	}
}

// project reduces ds, reusing the cache at cachePath when it still matches.
func project(ctx context.Context, ds *dataset, cfg *config.Config, cachePath string, logger *logging.Logger) (*projection.Projection, error) {
	progress := newStageProgress(progressWriter())
	defer progress.Finish()

	proj, hit, err := projection.ReduceCached(ctx, cachePath, cfg.Projection.Force,
		dataimport.Vectors(ds.records), reduceConfigFrom(cfg.Projection, progress.Report), logger)
	if err != nil {
		return nil, fmt.Errorf("project %d records: %w", len(ds.records), err)
	}
	if !hit {
		logger.Debug("Projection computed with %d PCA components", cfg.Projection.PCAComponents)
	}
	return proj, nil
}
