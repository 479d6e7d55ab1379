package projection

import (
	"context"
	"errors"
	"fmt"
)

// ErrVectorLengthMismatch is the sentinel matched by *DimensionMismatchError.
var ErrVectorLengthMismatch = errors.New("vector length mismatch")

// DimensionMismatchError reports the first vector whose length differs from
// vector 0. The whole batch is rejected; no record is silently dropped.
type DimensionMismatchError struct {
	Index    int
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector %d has length %d, expected %d", e.Index, e.Got, e.Expected)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrVectorLengthMismatch }

// Projection is the raw reducer output, index-aligned with the input vectors.
type Projection struct {
	Coords2D [][]float64 `json:"coords2d"`
	Coords3D [][]float64 `json:"coords3d"`
}

// Len returns the number of projected records.
func (p *Projection) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Coords2D)
}

// ProgressFunc receives the reducer's current stage and its progress.
type ProgressFunc func(stage string, done, total int)

// ReduceConfig configures one reducer run.
type ReduceConfig struct {
	PCAComponents int
	UMAP          UMAPConfig
	Progress      ProgressFunc // optional
}

// DefaultReduceConfig keeps 50 principal components ahead of UMAP.
func DefaultReduceConfig() ReduceConfig {
	return ReduceConfig{
		PCAComponents: 50,
		UMAP:          DefaultUMAPConfig(),
	}
}

// minimumUMAPSamples is the smallest input with enough neighbours for UMAP.
const minimumUMAPSamples = 3

// Reduce runs PCA followed by independent 2- and 3-component UMAP embeddings.
// Inputs too small for UMAP fall back to the PCA coordinates, zero padded.
func Reduce(ctx context.Context, vectors [][]float32, config ReduceConfig) (*Projection, error) {
	if err := CheckDimensions(vectors); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return &Projection{Coords2D: [][]float64{}, Coords3D: [][]float64{}}, nil
	}

	pcaComponents := config.PCAComponents
	if pcaComponents < 1 {
		pcaComponents = DefaultReduceConfig().PCAComponents
	}

	reduced, err := PCA(toFloat64(vectors), pcaComponents)
	if err != nil {
		return nil, fmt.Errorf("pre-reduction: %w", err)
	}

	if len(vectors) < minimumUMAPSamples {
		return &Projection{
			Coords2D: padColumns(reduced, 2),
			Coords3D: padColumns(reduced, 3),
		}, nil
	}

	embed := func(stage string, components int) ([][]float64, error) {
		var onEpoch EpochFunc
		if config.Progress != nil {
			onEpoch = func(done, total int) { config.Progress(stage, done, total) }
		}
		coords, err := UMAP(ctx, reduced, components, config.UMAP, onEpoch)
		if err != nil {
			return nil, fmt.Errorf("%s projection: %w", stage, err)
		}
		return coords, nil
	}

	coords2D, err := embed("2d", 2)
	if err != nil {
		return nil, err
	}
	coords3D, err := embed("3d", 3)
	if err != nil {
		return nil, err
	}

	return &Projection{Coords2D: coords2D, Coords3D: coords3D}, nil
}

// CheckDimensions verifies every vector has the length of the first one.
func CheckDimensions(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	expected := len(vectors[0])
	if expected == 0 {
		return &DimensionMismatchError{Index: 0, Expected: 1, Got: 0}
	}
	for i, v := range vectors {
		if len(v) != expected {
			return &DimensionMismatchError{Index: i, Expected: expected, Got: len(v)}
		}
	}
	return nil
}

func toFloat64(vectors [][]float32) [][]float64 {
	data := make([][]float64, len(vectors))
	for i, vec := range vectors {
		data[i] = make([]float64, len(vec))
		for j, v := range vec {
			data[i][j] = float64(v)
		}
	}
	return data
}

// padColumns copies the first width columns of rows, filling missing ones with 0.
func padColumns(rows [][]float64, width int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, width)
		copy(out[i], row)
	}
	return out
}
