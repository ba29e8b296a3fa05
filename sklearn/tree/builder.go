package tree

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
)

const (
	// featureThreshold: values closer than this are treated as equal.
	featureThreshold = 1e-7
	// epsilon: node impurity at or below this makes a leaf.
	epsilon = 2.220446049250313e-16
)

// Node is one node of a fitted tree. Nodes are stored in depth-first order,
// left subtree first, with the root at index 0.
type Node struct {
	Left      int // -1 for leaves
	Right     int // -1 for leaves
	Feature   int
	Threshold float64

	// Value is the weighted mean target of the samples reaching the node.
	Value float64
	// Impurity is the weighted variance of those targets.
	Impurity float64

	NSamples         int
	WeightedNSamples float64
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

type split struct {
	feature   int
	threshold float64
	pos       int
}

type frame struct {
	start, end int
	depth      int
	parent     int
	isLeft     bool
}

// builder grows a single tree depth-first.
type builder struct {
	data   *Dataset
	weight []float64

	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int

	rng     *rand.Rand
	samples []int
	nodes   []Node
}

func (b *builder) w(i int) float64 {
	if b.weight == nil {
		return 1
	}
	return b.weight[i]
}

func (b *builder) build() []Node {
	n := b.data.NSamples()
	b.samples = make([]int, 0, n)
	for i := 0; i < n; i++ {
		// bootstrap may leave samples with zero weight
		if b.w(i) != 0 {
			b.samples = append(b.samples, i)
		}
	}

	stack := []frame{{start: 0, end: len(b.samples), parent: -1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nNode := f.end - f.start
		wNode, sumY, sumY2 := b.stats(f.start, f.end)
		impurity := sumY2/wNode - (sumY/wNode)*(sumY/wNode)

		isLeaf := f.depth >= b.maxDepth ||
			nNode < b.minSamplesSplit ||
			nNode < 2*b.minSamplesLeaf ||
			impurity <= epsilon

		var sp split
		if !isLeaf {
			var found bool
			sp, found = b.bestSplit(f.start, f.end, wNode, sumY)
			isLeaf = !found
		}

		id := len(b.nodes)
		b.nodes = append(b.nodes, Node{
			Left:             -1,
			Right:            -1,
			Feature:          -1,
			Value:            sumY / wNode,
			Impurity:         impurity,
			NSamples:         nNode,
			WeightedNSamples: wNode,
		})
		if f.parent >= 0 {
			if f.isLeft {
				b.nodes[f.parent].Left = id
			} else {
				b.nodes[f.parent].Right = id
			}
		}

		if isLeaf {
			continue
		}
		b.nodes[id].Feature = sp.feature
		b.nodes[id].Threshold = sp.threshold

		// right first so the left child is popped next
		stack = append(stack,
			frame{start: sp.pos, end: f.end, depth: f.depth + 1, parent: id},
			frame{start: f.start, end: sp.pos, depth: f.depth + 1, parent: id, isLeft: true},
		)
	}
	return b.nodes
}

func (b *builder) stats(start, end int) (w, sumY, sumY2 float64) {
	y := b.data.Y
	for _, i := range b.samples[start:end] {
		wi := b.w(i)
		w += wi
		sumY += wi * y[i]
		sumY2 += wi * y[i] * y[i]
	}
	return w, sumY, sumY2
}

// bestSplit searches up to maxFeatures non-constant features in random order
// and returns the split maximising the squared-error proxy
// sumL²/wL + sumR²/wR. On success samples[start:end] is partitioned so that
// samples[start:pos] go left.
func (b *builder) bestSplit(start, end int, wNode, sumY float64) (split, bool) {
	idx := b.samples[start:end]
	n := len(idx)
	y := b.data.Y

	best := split{pos: -1}
	bestProxy := math.Inf(-1)
	visited := 0

	for _, f := range b.rng.Perm(b.data.NFeatures()) {
		if visited >= b.maxFeatures {
			break
		}
		col := b.data.Cols[f]
		slices.SortFunc(idx, func(a, c int) int { return cmp.Compare(col[a], col[c]) })

		if col[idx[n-1]] <= col[idx[0]]+featureThreshold {
			// constant in this node
			continue
		}
		visited++

		var wLeft, sumLeft float64
		for i := 0; i < n-1; i++ {
			s := idx[i]
			wLeft += b.w(s)
			sumLeft += b.w(s) * y[s]

			if col[idx[i+1]] <= col[s]+featureThreshold {
				continue
			}
			pos := i + 1
			if pos < b.minSamplesLeaf || n-pos < b.minSamplesLeaf {
				continue
			}

			wRight := wNode - wLeft
			sumRight := sumY - sumLeft
			proxy := sumLeft*sumLeft/wLeft + sumRight*sumRight/wRight
			if proxy > bestProxy {
				bestProxy = proxy
				lo, hi := col[s], col[idx[i+1]]
				threshold := lo/2 + hi/2
				if threshold == hi || math.IsInf(threshold, 0) || math.IsNaN(threshold) {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, pos: start + pos}
			}
		}
	}

	if best.pos < 0 {
		return best, false
	}

	// partition by the chosen threshold, which reproduces best.pos
	col := b.data.Cols[best.feature]
	left := slices.DeleteFunc(slices.Clone(idx), func(s int) bool { return col[s] > best.threshold })
	right := slices.DeleteFunc(slices.Clone(idx), func(s int) bool { return col[s] <= best.threshold })
	copy(idx, left)
	copy(idx[len(left):], right)
	best.pos = start + len(left)
	return best, true
}
