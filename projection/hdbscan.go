package projection

import (
	"context"
	"math"
	"slices"
	"sort"
)

// Noise is the label of a record that belongs to no group.
const Noise = -1

// ClusterConfig tunes near-duplicate grouping.
type ClusterConfig struct {
	// MinClusterSize is the smallest group worth reporting.
	MinClusterSize int
	// MinSamples sets how conservative the density estimate is. Zero uses
	// MinClusterSize.
	MinSamples int
	// Normalize scales every vector to unit length first, so distances
	// follow cosine similarity.
	Normalize bool
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		MinClusterSize: 3,
		Normalize:      true,
	}
}

// ClusterResult labels every input row. Labels are Noise or a group id;
// ids are numbered by the smallest row index they contain.
type ClusterResult struct {
	Labels        []int
	Probabilities []float64
}

// Groups lists the members of each group, largest first, ties broken by
// the first member.
func (r ClusterResult) Groups() [][]int {
	byLabel := map[int][]int{}
	for i, label := range r.Labels {
		if label != Noise {
			byLabel[label] = append(byLabel[label], i)
		}
	}

	groups := make([][]int, 0, len(byLabel))
	for _, members := range byLabel {
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})
	return groups
}

// Cluster groups vectors with HDBSCAN: a minimum spanning tree over mutual
// reachability distances is cut where groups are most stable. The result
// is deterministic for a given input.
func Cluster(ctx context.Context, vectors [][]float32, config ClusterConfig) (ClusterResult, error) {
	n := len(vectors)
	if n == 0 {
		return ClusterResult{}, nil
	}
	if err := CheckDimensions(vectors); err != nil {
		return ClusterResult{}, err
	}

	if config.MinClusterSize < 2 {
		config.MinClusterSize = 2
	}
	if config.MinSamples <= 0 {
		config.MinSamples = config.MinClusterSize
	}

	result := ClusterResult{
		Labels:        make([]int, n),
		Probabilities: make([]float64, n),
	}
	for i := range result.Labels {
		result.Labels[i] = Noise
	}
	if n < config.MinClusterSize {
		return result, nil
	}

	data := toFloat64(vectors)
	if config.Normalize {
		normalizeRows(data)
	}

	coreDistances, err := computeCoreDistances(ctx, data, config.MinSamples)
	if err != nil {
		return ClusterResult{}, err
	}
	edges, err := computeMutualReachabilityMST(ctx, data, coreDistances)
	if err != nil {
		return ClusterResult{}, err
	}

	tree := condenseTree(singleLinkageTree(edges, n), config.MinClusterSize, n)
	tree.label(result.Labels, result.Probabilities)
	return result, nil
}

func normalizeRows(data [][]float64) {
	for _, row := range data {
		var norm float64
		for _, v := range row {
			norm += v * v
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for j := range row {
			row[j] /= norm
		}
	}
}

type mstEdge struct {
	From, To int
	Weight   float64
}

type linkageNode struct {
	Left, Right int
	Distance    float64
	Size        int
}

// computeCoreDistances returns, per row, the distance to its minSamples-th
// nearest row counting itself.
func computeCoreDistances(ctx context.Context, data [][]float64, minSamples int) ([]float64, error) {
	n := len(data)
	k := min(minSamples, n) - 1
	coreDistances := make([]float64, n)
	dists := make([]float64, n)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			dists[j] = euclideanDistance(data[i], data[j])
		}
		sort.Float64s(dists)
		coreDistances[i] = dists[k]
	}

	return coreDistances, nil
}

// computeMutualReachabilityMST runs Prim's algorithm over the complete
// mutual reachability graph and returns the tree edges sorted by weight.
func computeMutualReachabilityMST(ctx context.Context, data [][]float64, coreDistances []float64) ([]mstEdge, error) {
	n := len(data)
	if n < 2 {
		return nil, nil
	}

	inTree := make([]bool, n)
	minDist := make([]float64, n)
	minEdge := make([]int, n)
	for i := range minDist {
		minDist[i] = math.Inf(1)
		minEdge[i] = -1
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[current] = true

	for added := 1; added < n; added++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			dist := euclideanDistance(data[current], data[j])
			mrd := math.Max(coreDistances[current], math.Max(coreDistances[j], dist))
			if mrd < minDist[j] {
				minDist[j] = mrd
				minEdge[j] = current
			}
		}

		next := -1
		for j := 0; j < n; j++ {
			if !inTree[j] && (next < 0 || minDist[j] < minDist[next]) {
				next = j
			}
		}

		edges = append(edges, mstEdge{From: minEdge[next], To: next, Weight: minDist[next]})
		inTree[next] = true
		current = next
	}

	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].Weight < edges[j].Weight
	})
	return edges, nil
}

type unionFind struct {
	parent []int
	size   []int
	next   int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := 0; i < n; i++ {
		parent[i] = i
		size[i] = 1
	}
	return &unionFind{parent: parent, size: size, next: n}
}

func (uf *unionFind) find(x int) int {
	root := x
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[x] != root {
		next := uf.parent[x]
		uf.parent[x] = root
		x = next
	}
	return root
}

func (uf *unionFind) union(x, y int) int {
	node := uf.next
	uf.parent[x] = node
	uf.parent[y] = node
	uf.parent[node] = node
	uf.size[node] = uf.size[x] + uf.size[y]
	uf.next++
	return node
}

// singleLinkageTree merges components in edge order. Node n+i of the
// result is the merge made by edge i.
func singleLinkageTree(edges []mstEdge, nSamples int) []linkageNode {
	if len(edges) == 0 {
		return nil
	}

	uf := newUnionFind(nSamples)
	tree := make([]linkageNode, len(edges))

	for i, edge := range edges {
		left := uf.find(edge.From)
		right := uf.find(edge.To)
		uf.union(left, right)

		tree[i] = linkageNode{
			Left:     left,
			Right:    right,
			Distance: edge.Weight,
			Size:     uf.size[left] + uf.size[right],
		}
	}

	return tree
}

// fallenPoint is a row that left its cluster at density lambda.
type fallenPoint struct {
	index  int
	lambda float64
}

type condensedCluster struct {
	parent   int
	birth    float64
	size     int
	children []int
	points   []fallenPoint
}

// condensedTree keeps only splits where both sides reach the minimum
// cluster size. Cluster 0 is the root; children always follow parents.
type condensedTree struct {
	clusters []condensedCluster
	linkage  []linkageNode
	nSamples int
	minSize  int
}

func lambdaFor(distance float64) float64 {
	return 1 / math.Max(distance, 1e-12)
}

func condenseTree(linkage []linkageNode, minClusterSize, nSamples int) *condensedTree {
	tree := &condensedTree{linkage: linkage, nSamples: nSamples, minSize: minClusterSize}
	tree.clusters = append(tree.clusters, condensedCluster{parent: -1, size: nSamples})
	if len(linkage) > 0 {
		tree.walk(nSamples+len(linkage)-1, 0)
	}
	return tree
}

func (t *condensedTree) nodeSize(node int) int {
	if node < t.nSamples {
		return 1
	}
	return t.linkage[node-t.nSamples].Size
}

func (t *condensedTree) walk(node, cluster int) {
	if node < t.nSamples {
		return
	}

	link := t.linkage[node-t.nSamples]
	lambda := lambdaFor(link.Distance)
	leftBig := t.nodeSize(link.Left) >= t.minSize
	rightBig := t.nodeSize(link.Right) >= t.minSize

	switch {
	case leftBig && rightBig:
		for _, child := range []int{link.Left, link.Right} {
			id := len(t.clusters)
			t.clusters = append(t.clusters, condensedCluster{parent: cluster, birth: lambda, size: t.nodeSize(child)})
			t.clusters[cluster].children = append(t.clusters[cluster].children, id)
			t.walk(child, id)
		}
	case leftBig:
		t.fall(link.Right, cluster, lambda)
		t.walk(link.Left, cluster)
	case rightBig:
		t.fall(link.Left, cluster, lambda)
		t.walk(link.Right, cluster)
	default:
		t.fall(link.Left, cluster, lambda)
		t.fall(link.Right, cluster, lambda)
	}
}

// fall records every row under node as leaving cluster at lambda.
func (t *condensedTree) fall(node, cluster int, lambda float64) {
	if node < t.nSamples {
		t.clusters[cluster].points = append(t.clusters[cluster].points, fallenPoint{index: node, lambda: lambda})
		return
	}
	link := t.linkage[node-t.nSamples]
	t.fall(link.Left, cluster, lambda)
	t.fall(link.Right, cluster, lambda)
}

func (t *condensedTree) stability(id int) float64 {
	c := t.clusters[id]
	var s float64
	for _, p := range c.points {
		s += p.lambda - c.birth
	}
	for _, child := range c.children {
		s += float64(t.clusters[child].size) * (t.clusters[child].birth - c.birth)
	}
	return s
}

// selectClusters picks the excess-of-mass clusters: a cluster is kept when
// it is at least as stable as its selected descendants. The root is never
// a candidate.
func (t *condensedTree) selectClusters() []int {
	keep := make([]bool, len(t.clusters))
	best := make([]float64, len(t.clusters))

	for id := len(t.clusters) - 1; id > 0; id-- {
		own := t.stability(id)
		var fromChildren float64
		for _, child := range t.clusters[id].children {
			fromChildren += best[child]
		}
		if len(t.clusters[id].children) == 0 || own >= fromChildren {
			keep[id] = true
			best[id] = own
		} else {
			best[id] = fromChildren
		}
	}

	var selected []int
	var visit func(id int)
	visit = func(id int) {
		for _, child := range t.clusters[id].children {
			if keep[child] {
				selected = append(selected, child)
				continue
			}
			visit(child)
		}
	}
	visit(0)
	return selected
}

func (t *condensedTree) members(id int, out []fallenPoint) []fallenPoint {
	out = append(out, t.clusters[id].points...)
	for _, child := range t.clusters[id].children {
		out = t.members(child, out)
	}
	return out
}

// label fills labels and membership probabilities, numbering groups by
// their smallest row index.
func (t *condensedTree) label(labels []int, probabilities []float64) {
	type group struct {
		first   int
		members []fallenPoint
	}

	var groups []group
	for _, id := range t.selectClusters() {
		members := t.members(id, nil)
		first := members[0].index
		for _, p := range members {
			first = min(first, p.index)
		}
		groups = append(groups, group{first: first, members: members})
	}
	slices.SortFunc(groups, func(a, b group) int { return a.first - b.first })

	for label, g := range groups {
		var maxLambda float64
		for _, p := range g.members {
			maxLambda = math.Max(maxLambda, p.lambda)
		}
		for _, p := range g.members {
			labels[p.index] = label
			probabilities[p.index] = 1
			if maxLambda > 0 {
				probabilities[p.index] = math.Min(p.lambda/maxLambda, 1)
			}
		}
	}
}
