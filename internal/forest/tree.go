package forest

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Node is a decision tree node. Leaves have Feature == -1.
type Node struct {
	Feature     int
	Threshold   float64
	MissingLeft bool // route NaN to the left child
	Left, Right int
	Proba       float64 // fraction of class 1 among the node's training samples
	Samples     int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a binary classification tree stored as a flat node slice; Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

// PredictProba returns the class-1 probability for a single sample.
func (t *Tree) PredictProba(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Proba
		}
		v := x[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.MissingLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v <= n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}

// Depth returns the depth of the tree; a single leaf has depth 0.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// builder grows one tree from a set of sample indices.
type builder struct {
	x           [][]float64
	y           []int
	params      Params
	maxFeatures int
	rng         *rand.Rand
	tree        *Tree
}

// split is a candidate partition of a node's samples.
type split struct {
	feature     int
	threshold   float64
	missingLeft bool
	cost        float64 // weighted Gini impurity of the children
}

func (b *builder) build(samples []int) *Tree {
	b.tree = &Tree{}
	b.grow(samples, 0)
	return b.tree
}

// grow appends the node for samples and its subtree, returning the node index.
func (b *builder) grow(samples []int, depth int) int {
	pos := 0
	for _, s := range samples {
		pos += b.y[s]
	}

	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature: -1,
		Proba:   float64(pos) / float64(len(samples)),
		Samples: len(samples),
	})

	if depth >= b.params.MaxDepth ||
		len(samples) < b.params.MinSamplesSplit ||
		len(samples) < 2*b.params.MinSamplesLeaf ||
		pos == 0 || pos == len(samples) {
		return idx
	}

	best, ok := b.bestSplit(samples)
	if !ok {
		return idx
	}

	var left, right []int
	for _, s := range samples {
		if goesLeft(b.x[s][best.feature], best) {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	n := &b.tree.Nodes[idx]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.MissingLeft = best.missingLeft
	n.Left = l
	n.Right = r
	return idx
}

func goesLeft(v float64, s split) bool {
	if math.IsNaN(v) {
		return s.missingLeft
	}
	return v <= s.threshold
}

// bestSplit draws features in random order and evaluates them until
// maxFeatures non-constant features have been tried.
func (b *builder) bestSplit(samples []int) (split, bool) {
	nFeatures := len(b.x[0])
	order := b.rng.Perm(nFeatures)

	best := split{cost: math.Inf(1)}
	found := false
	tried := 0
	for _, f := range order {
		if tried >= b.maxFeatures {
			break
		}
		s, ok, constant := b.evaluate(samples, f)
		if constant {
			continue
		}
		tried++
		if ok && s.cost < best.cost {
			best = s
			found = true
		}
	}
	return best, found
}

type point struct {
	v float64
	y int
}

// evaluate finds the best threshold on feature f. constant is true when the
// feature cannot separate the samples at all.
func (b *builder) evaluate(samples []int, f int) (best split, ok bool, constant bool) {
	points := make([]point, 0, len(samples))
	missN, missPos := 0, 0
	for _, s := range samples {
		v := b.x[s][f]
		if math.IsNaN(v) {
			missN++
			missPos += b.y[s]
			continue
		}
		points = append(points, point{v, b.y[s]})
	}
	slices.SortFunc(points, func(a, c point) int {
		switch {
		case a.v < c.v:
			return -1
		case a.v > c.v:
			return 1
		}
		return a.y - c.y
	})

	if len(points) == 0 || points[0].v == points[len(points)-1].v {
		// All values equal (or missing): the only possible split is
		// missing versus present.
		if missN == 0 || len(points) == 0 {
			return split{}, false, true
		}
	}

	totalPos := missPos
	for _, p := range points {
		totalPos += p.y
	}
	minLeaf := b.params.MinSamplesLeaf
	best = split{feature: f, cost: math.Inf(1)}

	consider := func(threshold float64, leftN, leftPos int) {
		// Missing values go to whichever side lowers impurity.
		options := []bool{false}
		if missN > 0 {
			options = []bool{true, false}
		}
		for _, missingLeft := range options {
			ln, lp := leftN, leftPos
			if missingLeft {
				ln += missN
				lp += missPos
			}
			rn := len(samples) - ln
			rp := totalPos - lp
			if ln < minLeaf || rn < minLeaf {
				continue
			}
			cost := giniCost(ln, lp) + giniCost(rn, rp)
			if cost < best.cost {
				best.cost = cost
				best.threshold = threshold
				best.missingLeft = missingLeft
				ok = true
			}
		}
	}

	leftN, leftPos := 0, 0
	for i := 0; i < len(points)-1; i++ {
		leftN++
		leftPos += points[i].y
		if points[i].v == points[i+1].v {
			continue
		}
		threshold := points[i].v + (points[i+1].v-points[i].v)/2
		if threshold == points[i+1].v {
			threshold = points[i].v
		}
		consider(threshold, leftN, leftPos)
	}

	if missN > 0 {
		// Every present value on one side, missing values on the other.
		last := points[len(points)-1].v
		consider(last, len(points), totalPos-missPos)
	}

	if ok && missN == 0 {
		// Unseen missing values follow the larger child.
		ln := 0
		for _, p := range points {
			if p.v <= best.threshold {
				ln++
			}
		}
		best.missingLeft = ln >= len(points)-ln
	}

	return best, ok, false
}

// giniCost returns n times the Gini impurity of a node with n samples, pos of class 1.
func giniCost(n, pos int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return float64(n) * 2 * p * (1 - p)
}
