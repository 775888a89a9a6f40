package graph

import (
	"errors"
	"math"
)

const (
	pagerankDamping   = 0.85
	pagerankTolerance = 1e-6
	pagerankMaxIters  = 100
)

var ErrNoConvergence = errors.New("pagerank did not converge")

// weightedPagerank computes a weighted centrality score per node index over a
// directed graph given as per-node outgoing adjacency (target index ->
// weight). Scores sum to 1. Returns ErrNoConvergence when the iteration does
// not settle within the iteration budget or the edge mass is degenerate;
// callers substitute the uniform fallback.
func weightedPagerank(n int, out []map[int]float64) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}

	outWeight := make([]float64, n)
	usable := false
	for i, targets := range out {
		for _, w := range targets {
			outWeight[i] += w
		}
		if outWeight[i] > 0 {
			usable = true
		}
	}
	if !usable {
		// all edges carry zero weight, there is no mass to propagate
		return nil, ErrNoConvergence
	}

	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}

	base := (1 - pagerankDamping) / float64(n)
	for iter := 0; iter < pagerankMaxIters; iter++ {
		dangling := 0.0
		for i := range next {
			next[i] = base
		}
		for i, targets := range out {
			if outWeight[i] == 0 {
				dangling += rank[i]
				continue
			}
			for j, w := range targets {
				next[j] += pagerankDamping * rank[i] * w / outWeight[i]
			}
		}
		// dangling mass is spread evenly
		if dangling > 0 {
			share := pagerankDamping * dangling / float64(n)
			for i := range next {
				next[i] += share
			}
		}

		delta := 0.0
		for i := range next {
			if math.IsNaN(next[i]) || math.IsInf(next[i], 0) {
				return nil, ErrNoConvergence
			}
			delta += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if delta < pagerankTolerance {
			return rank, nil
		}
	}
	return nil, ErrNoConvergence
}

// uniformRank is the documented fallback: every node gets 1/n.
func uniformRank(n int) []float64 {
	ranks := make([]float64, n)
	for i := range ranks {
		ranks[i] = 1 / float64(n)
	}
	return ranks
}
