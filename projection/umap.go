package projection

// # UMAP (Uniform Manifold Approximation and Projection)
//
// UMAP is a nonlinear reduction that keeps local neighbourhoods intact:
//
//  1. Build a k-nearest-neighbour graph in the input space
//  2. Turn distances into fuzzy membership strengths (a fuzzy simplicial set)
//  3. Initialise a low-dimensional layout (spectral for mid-sized inputs, random otherwise)
//  4. Refine the layout with stochastic gradient descent and negative sampling
//
// Reference: McInnes, L., Healy, J., & Melville, J. (2018). UMAP: Uniform Manifold
// Approximation and Projection for Dimension Reduction. https://arxiv.org/abs/1802.03426

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// UMAPConfig holds hyperparameters for one UMAP run.
type UMAPConfig struct {
	NNeighbors         int     // Number of nearest neighbors (default: 15)
	MinDist            float64 // Minimum distance between embedded points (default: 0.1)
	Spread             float64 // Effective scale of embedded points (default: 1.0)
	NEpochs            int     // Number of optimization epochs (default: 200)
	LearningRate       float64 // Initial learning rate (default: 1.0)
	NegativeSampleRate int     // Negative samples per positive sample (default: 5)
	RandomSeed         int64   // Zero draws a fresh seed, so repeated runs differ
}

// DefaultUMAPConfig returns the hyperparameters used when nothing is configured.
func DefaultUMAPConfig() UMAPConfig {
	return UMAPConfig{
		NNeighbors:         15,
		MinDist:            0.1,
		Spread:             1.0,
		NEpochs:            200,
		LearningRate:       1.0,
		NegativeSampleRate: 5,
	}
}

// spectralInitLimit bounds the dense eigendecomposition used for spectral
// initialisation; above it the O(n³) cost outweighs the benefit.
const (
	spectralInitMinimum = 50
	spectralInitLimit   = 2000
)

// fuzzyGraph is a sparse symmetric graph in coordinate form.
type fuzzyGraph struct {
	heads   []int
	tails   []int
	weights []float64
	size    int
}

type neighbourhoods struct {
	indices   [][]int
	distances [][]float64
}

// EpochFunc is told how many optimization epochs have completed.
type EpochFunc func(done, total int)

// UMAP embeds data into nComponents dimensions. It returns ctx.Err() if the
// context is cancelled between epochs. Callers must ensure len(data) > 2 and
// that every row has the same length.
func UMAP(ctx context.Context, data [][]float64, nComponents int, config UMAPConfig, onEpoch EpochFunc) ([][]float64, error) {
	nSamples := len(data)

	k := config.NNeighbors
	if k >= nSamples {
		k = nSamples - 1
	}

	seed := config.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	knn := nearestNeighbours(data, k)
	sigmas, rhos := smoothKNNDistances(knn.distances, float64(k))
	graph := fuzzySimplicialSet(knn, sigmas, rhos, nSamples)

	a, b := fitCurveParameters(config.Spread, config.MinDist)

	layout := initialLayout(graph, nComponents, rng)

	err := optimizeLayout(ctx, layout, graph, a, b, config, rng, onEpoch)
	if err != nil {
		return nil, err
	}
	return layout, nil
}

// nearestNeighbours finds the k closest rows to every row by brute force.
func nearestNeighbours(data [][]float64, k int) neighbourhoods {
	n := len(data)
	result := neighbourhoods{
		indices:   make([][]int, n),
		distances: make([][]float64, n),
	}

	type candidate struct {
		index    int
		distance float64
	}
	candidates := make([]candidate, 0, n-1)

	for i := 0; i < n; i++ {
		candidates = candidates[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			candidates = append(candidates, candidate{index: j, distance: euclideanDistance(data[i], data[j])})
		}
		sort.Slice(candidates, func(x, y int) bool {
			if candidates[x].distance != candidates[y].distance {
				return candidates[x].distance < candidates[y].distance
			}
			return candidates[x].index < candidates[y].index
		})

		result.indices[i] = make([]int, k)
		result.distances[i] = make([]float64, k)
		for slot := 0; slot < k; slot++ {
			result.indices[i][slot] = candidates[slot].index
			result.distances[i][slot] = candidates[slot].distance
		}
	}

	return result
}

func euclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredEuclidean(a, b))
}

func squaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// smoothKNNDistances finds, per point, rho (distance to the nearest non-identical
// neighbour) and sigma (bandwidth) such that the memberships sum to log2(k).
func smoothKNNDistances(distances [][]float64, k float64) (sigmas, rhos []float64) {
	const (
		iterations    = 64
		tolerance     = 1e-5
		minScaleRatio = 1e-3
	)

	n := len(distances)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	target := math.Log2(k)

	for i, row := range distances {
		for _, d := range row {
			if d > 0 {
				rhos[i] = d
				break
			}
		}

		lo, hi, mid := 0.0, math.Inf(1), 1.0
		for iter := 0; iter < iterations; iter++ {
			membershipSum := 0.0
			for _, d := range row {
				excess := d - rhos[i]
				if excess > 0 {
					membershipSum += math.Exp(-excess / mid)
				} else {
					membershipSum += 1.0
				}
			}

			if math.Abs(membershipSum-target) < tolerance {
				break
			}
			if membershipSum > target {
				hi = mid
				mid = (lo + hi) / 2
			} else {
				lo = mid
				if math.IsInf(hi, 1) {
					mid *= 2
				} else {
					mid = (lo + hi) / 2
				}
			}
		}

		floor := minScaleRatio * mean(row)
		sigmas[i] = math.Max(mid, floor)
	}

	return sigmas, rhos
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// fuzzySimplicialSet builds directed memberships and symmetrizes them with the
// probabilistic union P(A ∪ B) = P(A) + P(B) - P(A)P(B).
func fuzzySimplicialSet(knn neighbourhoods, sigmas, rhos []float64, nSamples int) fuzzyGraph {
	type edge struct{ head, tail int }
	directed := make(map[edge]float64, nSamples*len(knn.indices[0]))

	for i, row := range knn.indices {
		for slot, j := range row {
			excess := knn.distances[i][slot] - rhos[i]
			membership := 1.0
			if excess > 0 && sigmas[i] > 0 {
				membership = math.Exp(-excess / sigmas[i])
			}
			directed[edge{i, j}] = membership
		}
	}

	symmetric := make(map[edge]float64, 2*len(directed))
	for e, forward := range directed {
		backward := directed[edge{e.tail, e.head}]
		union := forward + backward - forward*backward
		if union <= 0 {
			continue
		}
		symmetric[e] = union
		symmetric[edge{e.tail, e.head}] = union
	}

	edges := make([]edge, 0, len(symmetric))
	for e := range symmetric {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(x, y int) bool {
		if edges[x].head != edges[y].head {
			return edges[x].head < edges[y].head
		}
		return edges[x].tail < edges[y].tail
	})

	graph := fuzzyGraph{
		heads:   make([]int, len(edges)),
		tails:   make([]int, len(edges)),
		weights: make([]float64, len(edges)),
		size:    nSamples,
	}
	for idx, e := range edges {
		graph.heads[idx] = e.head
		graph.tails[idx] = e.tail
		graph.weights[idx] = symmetric[e]
	}
	return graph
}

// fitCurveParameters fits a and b in 1 / (1 + a * x^(2b)) to the offset
// exponential implied by spread and minDist, by grid search.
func fitCurveParameters(spread, minDist float64) (a, b float64) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		xs[i] = float64(i) / float64(samples-1) * spread * 3
		if xs[i] < minDist {
			ys[i] = 1.0
		} else {
			ys[i] = math.Exp(-(xs[i] - minDist) / spread)
		}
	}

	bestA, bestB := 1.0, 1.0
	bestError := math.Inf(1)
	for aStep := 1; aStep <= 100; aStep++ {
		candidateA := float64(aStep) * 0.1
		for bStep := 2; bStep <= 40; bStep++ {
			candidateB := float64(bStep) * 0.05
			var sumSquares float64
			for i := range xs {
				diff := 1.0/(1.0+candidateA*math.Pow(xs[i], 2*candidateB)) - ys[i]
				sumSquares += diff * diff
			}
			if sumSquares < bestError {
				bestError = sumSquares
				bestA, bestB = candidateA, candidateB
			}
		}
	}
	return bestA, bestB
}

// initialLayout seeds the optimisation. Spectral initialisation preserves
// global structure for mid-sized inputs; tiny or huge inputs start random.
func initialLayout(graph fuzzyGraph, nComponents int, rng *rand.Rand) [][]float64 {
	if graph.size >= spectralInitMinimum && graph.size <= spectralInitLimit {
		if layout := spectralLayout(graph, nComponents); layout != nil {
			for i := range layout {
				for d := range layout[i] {
					layout[i][d] += (rng.Float64() - 0.5) * 0.0001
				}
			}
			return layout
		}
	}

	layout := make([][]float64, graph.size)
	for i := range layout {
		layout[i] = make([]float64, nComponents)
		for d := range layout[i] {
			layout[i][d] = (rng.Float64() - 0.5) * 20
		}
	}
	return layout
}

// spectralLayout uses the eigenvectors of the normalized graph Laplacian
// L = I - D^(-1/2) A D^(-1/2) with the smallest non-trivial eigenvalues.
func spectralLayout(graph fuzzyGraph, nComponents int) [][]float64 {
	n := graph.size
	if nComponents+1 > n {
		return nil
	}

	degrees := make([]float64, n)
	for idx, head := range graph.heads {
		degrees[head] += graph.weights[idx]
	}

	laplacian := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		laplacian.SetSym(i, i, 1.0)
	}
	for idx, head := range graph.heads {
		tail := graph.tails[idx]
		if head >= tail || degrees[head] == 0 || degrees[tail] == 0 {
			continue
		}
		normalized := graph.weights[idx] / math.Sqrt(degrees[head]*degrees[tail])
		laplacian.SetSym(head, tail, -normalized)
	}

	var eigen mat.EigenSym
	if !eigen.Factorize(laplacian, true) {
		return nil
	}
	var vectors mat.Dense
	eigen.VectorsTo(&vectors)

	// EigenSym returns eigenvalues in ascending order; column 0 is trivial.
	layout := make([][]float64, n)
	for i := range layout {
		layout[i] = make([]float64, nComponents)
		for d := 0; d < nComponents; d++ {
			layout[i][d] = vectors.At(i, d+1)
		}
	}

	for d := 0; d < nComponents; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := range layout {
			lo = math.Min(lo, layout[i][d])
			hi = math.Max(hi, layout[i][d])
		}
		if span := hi - lo; span > 0 {
			for i := range layout {
				layout[i][d] = (layout[i][d] - lo) / span * 10
			}
		}
	}
	return layout
}

// optimizeLayout runs SGD over the graph edges. Each edge is sampled in
// proportion to its weight; every positive sample attracts both endpoints and
// is followed by NegativeSampleRate random repulsions.
func optimizeLayout(
	ctx context.Context,
	layout [][]float64,
	graph fuzzyGraph,
	a, b float64,
	config UMAPConfig,
	rng *rand.Rand,
	onEpoch EpochFunc,
) error {
	nEdges := len(graph.heads)
	nEpochs := config.NEpochs
	if nEdges == 0 || nEpochs <= 0 {
		return nil
	}

	maxWeight := 0.0
	for _, w := range graph.weights {
		maxWeight = math.Max(maxWeight, w)
	}

	epochsPerSample := make([]float64, nEdges)
	nextSample := make([]float64, nEdges)
	for i, w := range graph.weights {
		if w < maxWeight/float64(nEpochs) {
			epochsPerSample[i] = -1
			continue
		}
		epochsPerSample[i] = maxWeight / w
		nextSample[i] = epochsPerSample[i]
	}

	negativeSamples := config.NegativeSampleRate
	if negativeSamples < 1 {
		negativeSamples = 1
	}

	for epoch := 0; epoch < nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		alpha := config.LearningRate * (1.0 - float64(epoch)/float64(nEpochs))

		for i := 0; i < nEdges; i++ {
			if epochsPerSample[i] < 0 || nextSample[i] > float64(epoch+1) {
				continue
			}

			head := layout[graph.heads[i]]
			tail := layout[graph.tails[i]]

			distSq := squaredEuclidean(head, tail)
			if distSq > 0 {
				coefficient := -2.0 * a * b * math.Pow(distSq, b-1.0) / (a*math.Pow(distSq, b) + 1.0)
				for d := range head {
					step := clip(coefficient*(head[d]-tail[d])) * alpha
					head[d] += step
					tail[d] -= step
				}
			}

			for p := 0; p < negativeSamples; p++ {
				other := rng.Intn(graph.size)
				if other == graph.heads[i] {
					continue
				}
				negative := layout[other]
				distSq := squaredEuclidean(head, negative)

				for d := range head {
					grad := 4.0
					if distSq > 0 {
						coefficient := 2.0 * b / ((0.001 + distSq) * (a*math.Pow(distSq, b) + 1.0))
						grad = clip(coefficient * (head[d] - negative[d]))
					}
					head[d] += grad * alpha
				}
			}

			nextSample[i] += epochsPerSample[i]
		}

		if onEpoch != nil {
			onEpoch(epoch+1, nEpochs)
		}
	}

	return nil
}

// clip constrains gradient values to prevent explosive updates.
func clip(val float64) float64 {
	return math.Max(-4.0, math.Min(4.0, val))
}
