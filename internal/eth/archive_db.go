package eth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
)

// ArchiveDb writes the durable relational copies of observed chain data.
// Every insert is conflict-tolerant so reprocessing a block is safe.
type ArchiveDb interface {
	StoreBlock(ctx context.Context, blockNumber uint64, blockTime uint64) error
	StoreTransaction(ctx context.Context, txHash string, blockNumber uint64, from, to, value string) error
	StoreTransfer(ctx context.Context, transfer models.TransferEvent) error
}

func NewArchiveDb(sqlite *sql.DB) ArchiveDb {
	return &ArchiveDbImpl{db: sqlite}
}

type ArchiveDbImpl struct {
	db *sql.DB
}

func (a *ArchiveDbImpl) StoreBlock(ctx context.Context, blockNumber uint64, blockTime uint64) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO blocks (block_number, block_time) VALUES (?, ?)
		 ON CONFLICT(block_number) DO NOTHING`,
		blockNumber, blockTime)
	if err != nil {
		return fmt.Errorf("failed to store block %d: %w", blockNumber, err)
	}
	return nil
}

func (a *ArchiveDbImpl) StoreTransaction(ctx context.Context, txHash string, blockNumber uint64, from, to, value string) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO transactions (tx_hash, block_number, from_addr, to_addr, value)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tx_hash) DO NOTHING`,
		txHash, blockNumber, from, to, value)
	if err != nil {
		return fmt.Errorf("failed to store transaction %s: %w", txHash, err)
	}
	return nil
}

func (a *ArchiveDbImpl) StoreTransfer(ctx context.Context, transfer models.TransferEvent) error {
	token := transfer.TokenSymbol
	if token == "" {
		token = "UNKNOWN"
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO erc20_transfers (tx_hash, log_index, token, from_addr, to_addr, amount, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tx_hash, log_index) DO NOTHING`,
		transfer.TxHash, transfer.LogIndex, token, transfer.From, transfer.To,
		transfer.Amount.String(), transfer.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to store transfer %s:%d: %w", transfer.TxHash, transfer.LogIndex, err)
	}
	return nil
}
