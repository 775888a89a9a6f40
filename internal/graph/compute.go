package graph

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"go.uber.org/zap"
)

// RecomputeOptions narrows the edge set considered by one run. A nil
// MinEdgeWeight considers every edge.
type RecomputeOptions struct {
	MinEdgeWeight *big.Int
}

// ComputeStats is the observability result of one recompute run.
type ComputeStats struct {
	NodesScored     int
	EdgesConsidered int
}

// Engine is the periodic batch side of the graph: it loads the persisted
// node/edge set, runs centrality and community detection in memory, and
// writes the derived attributes back. It is the only writer of pagerank and
// clusterId.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Recompute runs one full centrality + community pass.
func (e *Engine) Recompute(ctx context.Context, opts RecomputeOptions) (ComputeStats, error) {
	nodes, err := e.store.AllNodes()
	if err != nil {
		return ComputeStats{}, fmt.Errorf("failed to load nodes: %w", err)
	}
	edges, err := e.store.EdgesAboveWeight(opts.MinEdgeWeight)
	if err != nil {
		return ComputeStats{}, fmt.Errorf("failed to load edges: %w", err)
	}

	// Build the in-memory directed weighted graph; parallel edges collapse
	// by weight sum. Endpoints missing a node record still participate.
	index := map[string]int{}
	var addresses []string
	idx := func(addr string) int {
		if i, ok := index[addr]; ok {
			return i
		}
		i := len(addresses)
		index[addr] = i
		addresses = append(addresses, addr)
		return i
	}
	for _, n := range nodes {
		idx(n.Address)
	}

	out := make([]map[int]float64, len(addresses))
	grow := func(n int) {
		for len(out) < n {
			out = append(out, nil)
		}
	}
	for _, edge := range edges {
		i, j := idx(edge.From), idx(edge.To)
		grow(len(addresses))
		if out[i] == nil {
			out[i] = map[int]float64{}
		}
		w, _ := new(big.Float).SetInt(edge.WeightInt()).Float64()
		out[i][j] += w
	}
	grow(len(addresses))

	if len(addresses) == 0 || len(edges) == 0 {
		zap.L().Debug("Graph too small, skipping centrality and community detection")
		return ComputeStats{}, nil
	}

	ranks, err := weightedPagerank(len(addresses), out)
	if err != nil {
		if !errors.Is(err, ErrNoConvergence) {
			return ComputeStats{}, fmt.Errorf("pagerank failed: %w", err)
		}
		zap.L().Warn("PageRank did not converge, falling back to uniform scores",
			zap.Int("nodes", len(addresses)))
		ranks = uniformRank(len(addresses))
	}

	communities := louvainCommunities(len(addresses), out)

	for i, addr := range addresses {
		if ctx.Err() != nil {
			return ComputeStats{}, ctx.Err()
		}
		if err := e.store.SetComputedAttrs(addr, ranks[i], strconv.Itoa(communities[i])); err != nil {
			return ComputeStats{}, fmt.Errorf("failed to persist computed attrs: %w", err)
		}
	}

	return ComputeStats{NodesScored: len(addresses), EdgesConsidered: len(edges)}, nil
}
