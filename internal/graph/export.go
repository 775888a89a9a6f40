package graph

import (
	"fmt"
	"strings"

	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
)

// NetworkPayload is the generic node/edge graph shape consumed by
// presentation layers.
type NetworkPayload struct {
	Nodes []NetworkNode `json:"nodes"`
	Edges []NetworkEdge `json:"edges"`
}

type NetworkNode struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	ClusterID string  `json:"clusterId"`
}

type NetworkEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Weight string `json:"weight"`
}

// Exporter serves the read-side query surface of the relationship graph.
type Exporter struct {
	store Store
}

func NewExporter(store Store) *Exporter {
	return &Exporter{store: store}
}

// ExportCluster returns the subgraph spanned by one cluster's members.
func (x *Exporter) ExportCluster(clusterID string) (NetworkPayload, error) {
	nodes, err := x.store.NodesByCluster(clusterID)
	if err != nil {
		return NetworkPayload{}, fmt.Errorf("failed to load cluster %s: %w", clusterID, err)
	}

	members := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		members[n.Address] = struct{}{}
	}

	edges, err := x.store.EdgesTouching(members)
	if err != nil {
		return NetworkPayload{}, fmt.Errorf("failed to load cluster edges: %w", err)
	}
	// keep only edges internal to the cluster
	internal := edges[:0]
	for _, e := range edges {
		if _, ok := members[e.From]; !ok {
			continue
		}
		if _, ok := members[e.To]; !ok {
			continue
		}
		internal = append(internal, e)
	}

	return toPayload(nodes, internal), nil
}

// EgoNetwork extracts the bounded-depth neighborhood of center. Depth 1 is
// every node sharing an edge with center in either direction; depth 2 adds
// the nodes reachable from that set.
func (x *Exporter) EgoNetwork(center string, depth int) (NetworkPayload, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > 2 {
		depth = 2
	}
	center = strings.ToLower(center)

	included := map[string]struct{}{center: {}}

	frontier := map[string]struct{}{center: {}}
	for hop := 0; hop < depth; hop++ {
		edges, err := x.store.EdgesTouching(frontier)
		if err != nil {
			return NetworkPayload{}, fmt.Errorf("failed to expand ego network: %w", err)
		}
		next := map[string]struct{}{}
		for _, e := range edges {
			for _, addr := range []string{e.From, e.To} {
				if _, ok := included[addr]; !ok {
					included[addr] = struct{}{}
					next[addr] = struct{}{}
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	edges, err := x.store.EdgesTouching(included)
	if err != nil {
		return NetworkPayload{}, fmt.Errorf("failed to load ego edges: %w", err)
	}
	internal := edges[:0]
	for _, e := range edges {
		if _, ok := included[e.From]; !ok {
			continue
		}
		if _, ok := included[e.To]; !ok {
			continue
		}
		internal = append(internal, e)
	}

	nodes := make([]models.GraphNode, 0, len(included))
	for addr := range included {
		node, found, err := x.store.GetNode(addr)
		if err != nil {
			return NetworkPayload{}, err
		}
		if !found {
			node = models.GraphNode{Address: addr}
		}
		nodes = append(nodes, node)
	}

	return toPayload(nodes, internal), nil
}

func toPayload(nodes []models.GraphNode, edges []models.GraphEdge) NetworkPayload {
	payload := NetworkPayload{
		Nodes: make([]NetworkNode, 0, len(nodes)),
		Edges: make([]NetworkEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		clusterID := n.ClusterID
		if clusterID == "" {
			clusterID = "unknown"
		}
		payload.Nodes = append(payload.Nodes, NetworkNode{
			ID:        n.Address,
			Score:     n.Pagerank,
			ClusterID: clusterID,
		})
	}
	for _, e := range edges {
		payload.Edges = append(payload.Edges, NetworkEdge{
			ID:     e.From + "-" + e.To,
			Source: e.From,
			Target: e.To,
			Weight: e.Weight,
		})
	}
	return payload
}
