package models

import (
	"math/big"
	"time"
)

// TransferEvent is one decoded ERC20 Transfer log. Addresses are stored in
// lower-case canonical form; Amount carries raw token units and must stay
// arbitrary precision (token amounts routinely exceed 2^63).
type TransferEvent struct {
	TxHash      string
	LogIndex    uint64
	From        string
	To          string
	Amount      *big.Int
	TokenSymbol string
	Timestamp   time.Time
}

// WindowEntry is one event retained in a wallet's sliding window.
type WindowEntry struct {
	Hash         string
	Amount       *big.Int
	Timestamp    time.Time
	Counterparty string
	Symbol       string
}

// EventKind partitions a wallet's window into the three tracked sequences.
type EventKind string

func (k EventKind) String() string {
	return string(k)
}

const (
	StableIn   EventKind = "stable_in"
	ErcOut     EventKind = "erc_out"
	BridgeCall EventKind = "bridge_call"
)

// RecentEvent is a window entry tagged with its sequence, as exposed to
// alert payloads and callers inspecting a wallet's recent activity.
type RecentEvent struct {
	Kind         EventKind `json:"kind"`
	Hash         string    `json:"hash"`
	Amount       string    `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
	Counterparty string    `json:"counterparty,omitempty"`
	Symbol       string    `json:"symbol,omitempty"`
}

// RiskAssessment is the outcome of one wallet evaluation.
type RiskAssessment struct {
	Wallet  string
	Score   int
	Reasons []string
}

// Alert is persisted when a wallet's score crosses the alert threshold and no
// equivalent alert exists within the dedupe window. Immutable once stored.
type Alert struct {
	Wallet    string        `json:"wallet"`
	Score     int           `json:"score"`
	Reasons   []string      `json:"reasons"`
	Events    []RecentEvent `json:"events"`
	CreatedAt time.Time     `json:"createdAt"`
}

// GraphNode is one address in the relationship graph. Pagerank and ClusterID
// are owned by the compute engine, LastSeen by the ingestion path.
type GraphNode struct {
	Address   string    `json:"address"`
	LastSeen  time.Time `json:"lastSeen"`
	Pagerank  float64   `json:"pagerank"`
	ClusterID string    `json:"clusterId,omitempty"`
}

// GraphEdge is a directed edge keyed by (From, To). Weight accumulates raw
// token units as a decimal string and never decreases.
type GraphEdge struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Weight   string    `json:"weight"`
	LastSeen time.Time `json:"lastSeen"`
}

// WeightInt parses the edge weight accumulator. A missing or malformed weight
// reads as zero.
func (e GraphEdge) WeightInt() *big.Int {
	w, ok := new(big.Int).SetString(e.Weight, 10)
	if !ok {
		return new(big.Int)
	}
	return w
}

// WalletProfile is the durable risk summary of one wallet.
type WalletProfile struct {
	Wallet     string
	RiskSeed   int
	Tags       []string
	Sanctioned bool
	LastSeen   time.Time
}
