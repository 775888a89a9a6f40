package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
)

/*
DB Indexes Created Here:

1. Node record:
   "graph:node:{address}" => JSON(GraphNode)

2. Edge record, keyed by direction:
   "graph:edge:{from}:{to}" => JSON(GraphEdge)

Edge weight is a raw-token-unit big integer serialized as a decimal string; it
only ever grows. pagerank/clusterId on nodes are written exclusively through
SetComputedAttrs, lastSeen exclusively through the ingest path.
*/

type Store interface {
	IngestTransfer(from, to string, amount *big.Int, ts time.Time) error
	GetNode(address string) (models.GraphNode, bool, error)
	AllNodes() ([]models.GraphNode, error)
	NodesByCluster(clusterID string) ([]models.GraphNode, error)
	EdgesAboveWeight(minWeight *big.Int) ([]models.GraphEdge, error)
	EdgesTouching(addresses map[string]struct{}) ([]models.GraphEdge, error)
	SetComputedAttrs(address string, pagerank float64, clusterID string) error
}

func NewStore(db *badger.DB) Store {
	return &StoreImpl{db: db}
}

type StoreImpl struct {
	db *badger.DB
}

const (
	nodePrefix = "graph:node:"
	edgePrefix = "graph:edge:"
)

func nodeKey(address string) []byte {
	return []byte(nodePrefix + address)
}

func edgeKey(from, to string) []byte {
	return []byte(edgePrefix + from + ":" + to)
}

var ErrInvalidTransfer = errors.New("invalid transfer")

// IngestTransfer upserts both endpoint nodes' lastSeen and accumulates the
// directed edge weight, all inside one transaction. Badger's SSI rejects
// conflicting commits, so the increment is retried rather than lost; the
// whole operation is idempotent-enough for at-least-once replay (lastSeen
// upserts are idempotent, a replayed weight increment is an accepted
// overcount per the ingestion contract).
func (s *StoreImpl) IngestTransfer(from, to string, amount *big.Int, ts time.Time) error {
	if from == "" || to == "" {
		return fmt.Errorf("%w: empty endpoint address", ErrInvalidTransfer)
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: missing or negative amount", ErrInvalidTransfer)
	}
	from = strings.ToLower(from)
	to = strings.ToLower(to)

	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := upsertNodeLastSeen(txn, from, ts); err != nil {
				return err
			}
			if err := upsertNodeLastSeen(txn, to, ts); err != nil {
				return err
			}
			return accumulateEdge(txn, from, to, amount, ts)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

func upsertNodeLastSeen(txn *badger.Txn, address string, ts time.Time) error {
	node := models.GraphNode{Address: address, LastSeen: ts}

	item, err := txn.Get(nodeKey(address))
	if err == nil {
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
		if err != nil {
			return err
		}
		if ts.After(node.LastSeen) {
			node.LastSeen = ts
		}
	} else if err != badger.ErrKeyNotFound {
		return err
	}

	value, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return txn.Set(nodeKey(address), value)
}

func accumulateEdge(txn *badger.Txn, from, to string, amount *big.Int, ts time.Time) error {
	edge := models.GraphEdge{From: from, To: to, Weight: "0", LastSeen: ts}

	item, err := txn.Get(edgeKey(from, to))
	if err == nil {
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &edge)
		})
		if err != nil {
			return err
		}
	} else if err != badger.ErrKeyNotFound {
		return err
	}

	edge.Weight = new(big.Int).Add(edge.WeightInt(), amount).String()
	if ts.After(edge.LastSeen) {
		edge.LastSeen = ts
	}

	value, err := json.Marshal(edge)
	if err != nil {
		return err
	}
	return txn.Set(edgeKey(from, to), value)
}

func (s *StoreImpl) GetNode(address string) (models.GraphNode, bool, error) {
	var node models.GraphNode
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(strings.ToLower(address)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
	})
	if err == badger.ErrKeyNotFound {
		return models.GraphNode{}, false, nil
	}
	if err != nil {
		return models.GraphNode{}, false, fmt.Errorf("failed to read node %s: %w", address, err)
	}
	return node, true, nil
}

func (s *StoreImpl) AllNodes() ([]models.GraphNode, error) {
	var nodes []models.GraphNode
	err := s.iterateNodes(func(node models.GraphNode) {
		nodes = append(nodes, node)
	})
	return nodes, err
}

func (s *StoreImpl) NodesByCluster(clusterID string) ([]models.GraphNode, error) {
	var nodes []models.GraphNode
	err := s.iterateNodes(func(node models.GraphNode) {
		if node.ClusterID == clusterID {
			nodes = append(nodes, node)
		}
	})
	return nodes, err
}

func (s *StoreImpl) iterateNodes(visit func(models.GraphNode)) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(nodePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(nodePrefix)); it.Valid(); it.Next() {
			var node models.GraphNode
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &node)
			})
			if err != nil {
				return err
			}
			visit(node)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to iterate graph nodes: %w", err)
	}
	return nil
}

// EdgesAboveWeight returns every edge whose weight >= minWeight. A nil
// minWeight applies no filter.
func (s *StoreImpl) EdgesAboveWeight(minWeight *big.Int) ([]models.GraphEdge, error) {
	var edges []models.GraphEdge
	err := s.iterateEdges(func(edge models.GraphEdge) {
		if minWeight != nil && edge.WeightInt().Cmp(minWeight) < 0 {
			return
		}
		edges = append(edges, edge)
	})
	return edges, err
}

// EdgesTouching returns edges with either endpoint in addresses.
func (s *StoreImpl) EdgesTouching(addresses map[string]struct{}) ([]models.GraphEdge, error) {
	var edges []models.GraphEdge
	err := s.iterateEdges(func(edge models.GraphEdge) {
		if _, ok := addresses[edge.From]; ok {
			edges = append(edges, edge)
			return
		}
		if _, ok := addresses[edge.To]; ok {
			edges = append(edges, edge)
		}
	})
	return edges, err
}

func (s *StoreImpl) iterateEdges(visit func(models.GraphEdge)) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(edgePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(edgePrefix)); it.Valid(); it.Next() {
			var edge models.GraphEdge
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			})
			if err != nil {
				return err
			}
			visit(edge)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to iterate graph edges: %w", err)
	}
	return nil
}

// SetComputedAttrs writes the compute engine's derived attributes back to a
// node. Node identity and lastSeen are preserved; the upsert is idempotent
// keyed by address.
func (s *StoreImpl) SetComputedAttrs(address string, pagerank float64, clusterID string) error {
	address = strings.ToLower(address)
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			node := models.GraphNode{Address: address}

			item, err := txn.Get(nodeKey(address))
			if err == nil {
				err = item.Value(func(val []byte) error {
					return json.Unmarshal(val, &node)
				})
				if err != nil {
					return err
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			node.Pagerank = pagerank
			node.ClusterID = clusterID

			value, err := json.Marshal(node)
			if err != nil {
				return err
			}
			return txn.Set(nodeKey(address), value)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to write computed attrs for %s: %w", address, err)
		}
		return nil
	}
}
