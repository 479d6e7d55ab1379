package projection

import (
	"context"
	"errors"
	"math"
	"testing"
)

func twoClusters() [][]float64 {
	return [][]float64{
		{0.0, 0.0, 0.0},
		{0.1, 0.1, 0.1},
		{0.2, 0.2, 0.2},
		{10.0, 10.0, 10.0},
		{10.1, 10.1, 10.1},
		{10.2, 10.2, 10.2},
	}
}

func TestUMAP_SmallCluster(t *testing.T) {
	config := DefaultUMAPConfig()
	config.NNeighbors = 2
	config.NEpochs = 50
	config.RandomSeed = 7

	for _, components := range []int{2, 3} {
		result, err := UMAP(context.Background(), twoClusters(), components, config, nil)
		if err != nil {
			t.Fatalf("UMAP(%d): %v", components, err)
		}
		if len(result) != 6 {
			t.Fatalf("expected 6 rows, got %d", len(result))
		}
		for i, row := range result {
			if len(row) != components {
				t.Fatalf("row %d has %d components, expected %d", i, len(row), components)
			}
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("row %d has non-finite value %v", i, v)
				}
			}
		}
	}
}

func TestUMAP_PreservesNeighbourhoods(t *testing.T) {
	config := DefaultUMAPConfig()
	config.NNeighbors = 2
	config.RandomSeed = 42

	result, err := UMAP(context.Background(), twoClusters(), 2, config, nil)
	if err != nil {
		t.Fatalf("UMAP: %v", err)
	}

	var within, across float64
	var withinPairs, acrossPairs int
	for i := range result {
		for j := i + 1; j < len(result); j++ {
			if (i < 3) == (j < 3) {
				within += euclideanDistance(result[i], result[j])
				withinPairs++
			} else {
				across += euclideanDistance(result[i], result[j])
				acrossPairs++
			}
		}
	}
	within /= float64(withinPairs)
	across /= float64(acrossPairs)
	if within >= across {
		t.Errorf("expected same-cluster distance %f < cross-cluster distance %f", within, across)
	}
}

func TestUMAP_ReportsEpochs(t *testing.T) {
	config := DefaultUMAPConfig()
	config.NNeighbors = 2
	config.NEpochs = 10
	config.RandomSeed = 1

	var calls, lastDone, lastTotal int
	_, err := UMAP(context.Background(), twoClusters(), 2, config, func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("UMAP: %v", err)
	}
	if calls != 10 || lastDone != 10 || lastTotal != 10 {
		t.Errorf("expected 10 epoch callbacks ending at 10/10, got %d calls ending at %d/%d", calls, lastDone, lastTotal)
	}
}

func TestUMAP_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := DefaultUMAPConfig()
	config.NNeighbors = 2

	_, err := UMAP(ctx, twoClusters(), 2, config, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNearestNeighbours(t *testing.T) {
	data := [][]float64{
		{0.0, 0.0},
		{1.0, 0.0},
		{2.0, 0.0},
		{3.0, 0.0},
	}

	knn := nearestNeighbours(data, 2)

	if len(knn.indices) != 4 {
		t.Fatalf("expected 4 index sets, got %d", len(knn.indices))
	}
	if knn.indices[0][0] != 1 {
		t.Errorf("point 0's nearest should be 1, got %d", knn.indices[0][0])
	}
	if knn.distances[0][1] != 2.0 {
		t.Errorf("point 0's second neighbour should be 2 away, got %f", knn.distances[0][1])
	}
	for i, row := range knn.indices {
		for _, j := range row {
			if j == i {
				t.Errorf("point %d lists itself as a neighbour", i)
			}
		}
	}
}

func TestSmoothKNNDistances(t *testing.T) {
	distances := [][]float64{
		{1.0, 2.0, 3.0},
		{0.5, 1.5, 2.5},
	}

	sigmas, rhos := smoothKNNDistances(distances, 3)

	if rhos[0] != 1.0 || rhos[1] != 0.5 {
		t.Errorf("rho should be the nearest distance, got %v", rhos)
	}
	for i, sigma := range sigmas {
		if sigma <= 0 {
			t.Errorf("sigma[%d] should be positive, got %f", i, sigma)
		}
	}
}

func TestFuzzySimplicialSetIsSymmetric(t *testing.T) {
	data := [][]float64{{0, 0}, {1, 0}, {0, 1}, {5, 5}}
	knn := nearestNeighbours(data, 2)
	sigmas, rhos := smoothKNNDistances(knn.distances, 2)
	graph := fuzzySimplicialSet(knn, sigmas, rhos, len(data))

	weights := make(map[[2]int]float64)
	for i := range graph.heads {
		weights[[2]int{graph.heads[i], graph.tails[i]}] = graph.weights[i]
	}
	for edge, w := range weights {
		if w <= 0 || w > 1 {
			t.Errorf("edge %v has weight %f outside (0, 1]", edge, w)
		}
		if weights[[2]int{edge[1], edge[0]}] != w {
			t.Errorf("edge %v is not symmetric", edge)
		}
	}
}

func TestFitCurveParameters(t *testing.T) {
	a, b := fitCurveParameters(1.0, 0.1)

	// umap-learn reports a≈1.58, b≈0.90 for these settings; the grid is coarse.
	if a < 1.0 || a > 2.2 {
		t.Errorf("a outside expected range: %f", a)
	}
	if b < 0.7 || b > 1.1 {
		t.Errorf("b outside expected range: %f", b)
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{0.0, 0.0},
		{2.0, 2.0},
		{-2.0, -2.0},
		{5.0, 4.0},
		{-5.0, -4.0},
	}

	for _, tc := range tests {
		if got := clip(tc.input); got != tc.expected {
			t.Errorf("clip(%f) = %f, expected %f", tc.input, got, tc.expected)
		}
	}
}
