package eth

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shadowtrace/shadowtrace-node/internal/graph"
	"github.com/shadowtrace/shadowtrace-node/internal/intelligence"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TransferListener is the ingestion coordinator: it drives the decoder over
// every transaction of every new block and fans each decoded transfer out to
// the window store / risk scorer and to the relationship graph. The three
// effects of one event commit independently; replaying a block is safe.
type TransferListener struct {
	ctx         context.Context
	client      EthClient
	dealbreaker *intelligence.Dealbreaker
	graphStore  graph.Store
	archive     ArchiveDb
	progress    ProgressDb
	concurrency int
	signer      types.Signer
}

func NewTransferListener(
	ctx context.Context,
	client EthClient,
	dealbreaker *intelligence.Dealbreaker,
	graphStore graph.Store,
	archive ArchiveDb,
	progress ProgressDb,
	concurrency int,
) *TransferListener {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &TransferListener{
		ctx:         ctx,
		client:      client,
		dealbreaker: dealbreaker,
		graphStore:  graphStore,
		archive:     archive,
		progress:    progress,
		concurrency: concurrency,
	}
}

// Watch catches up from the persisted progress point and then follows the
// chain head, via subscription when the transport supports it and polling
// otherwise. Blocks until ctx is canceled or the subscription dies.
func (l *TransferListener) Watch() error {
	defer l.client.Close()

	chainID, err := l.client.ChainID(l.ctx)
	if err != nil {
		return err
	}
	l.signer = types.LatestSignerForChainID(chainID)

	currentBlock, err := l.progress.GetProgress()
	if err != nil {
		return err
	}
	currentBlock++

	zap.L().Info("Starting transfer listener",
		zap.Uint64("startBlock", currentBlock),
		zap.String("chainID", chainID.String()))

	for {
		if l.ctx.Err() != nil {
			return nil
		}
		tipBlock, err := l.latestBlockNumber()
		if err != nil {
			if sleepInterrupted(l.ctx, time.Second) {
				return nil
			}
			continue
		}

		if currentBlock <= tipBlock {
			if err := l.processBlock(currentBlock); err != nil {
				zap.L().Warn("Failed processing block",
					zap.Uint64("block", currentBlock),
					zap.Error(err))
				if sleepInterrupted(l.ctx, time.Second) {
					return nil
				}
				continue
			}
			currentBlock++
			continue
		}

		newHeads := make(chan *types.Header, 16)
		sub, err := l.client.SubscribeNewHead(l.ctx, newHeads)
		if err != nil {
			zap.L().Warn("Falling back to polling", zap.Error(err))
			return l.pollForNewBlocks(&currentBlock)
		}
		return l.subscribeAndProcessHeads(sub.Unsubscribe, sub.Err(), newHeads, &currentBlock)
	}
}

func (l *TransferListener) pollForNewBlocks(currentBlock *uint64) error {
	for {
		if l.ctx.Err() != nil {
			return nil
		}
		tipBlock, err := l.latestBlockNumber()
		if err != nil {
			zap.L().Error("Could not get latest block (polling)", zap.Error(err))
			if sleepInterrupted(l.ctx, 3*time.Second) {
				return nil
			}
			continue
		}

		for *currentBlock <= tipBlock {
			if err := l.processBlock(*currentBlock); err != nil {
				zap.L().Error("Failed processing block (polling)",
					zap.Uint64("block", *currentBlock),
					zap.Error(err))
				break
			}
			*currentBlock++
		}

		if sleepInterrupted(l.ctx, 3*time.Second) {
			return nil
		}
	}
}

func (l *TransferListener) subscribeAndProcessHeads(
	unsubscribe func(),
	subErr <-chan error,
	newHeads <-chan *types.Header,
	currentBlock *uint64,
) error {
	defer unsubscribe()

	for {
		select {
		case err := <-subErr:
			return err

		case header := <-newHeads:
			if header == nil {
				return nil
			}
			blockNum := header.Number.Uint64()
			for *currentBlock <= blockNum {
				if err := l.processBlock(*currentBlock); err != nil {
					zap.L().Error("Failed processing block (subscription)",
						zap.Uint64("block", *currentBlock),
						zap.Error(err))
					return err
				}
				*currentBlock++
			}

		case <-l.ctx.Done():
			return nil
		}
	}
}

func (l *TransferListener) latestBlockNumber() (uint64, error) {
	header, err := l.client.HeaderByNumber(l.ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// processBlock ingests one block: transactions run concurrently, per-wallet
// and per-edge atomicity is guaranteed downstream. The progress marker moves
// only after the whole block is done.
func (l *TransferListener) processBlock(blockNumber uint64) error {
	block, err := l.client.BlockByNumber(l.ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return err
	}
	blockTime := block.Time()

	if err := l.archive.StoreBlock(l.ctx, blockNumber, blockTime); err != nil {
		zap.L().Error("Failed to archive block",
			zap.Uint64("block", blockNumber),
			zap.Error(err))
	}

	g, ctx := errgroup.WithContext(l.ctx)
	g.SetLimit(l.concurrency)
	for _, tx := range block.Transactions() {
		tx := tx
		g.Go(func() error {
			l.processTransaction(ctx, tx, blockNumber, blockTime)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := l.progress.SetProgress(blockNumber); err != nil {
		zap.L().Error("Failed to persist listener progress",
			zap.Uint64("block", blockNumber),
			zap.Error(err))
	}

	zap.L().Debug("Processed block",
		zap.Uint64("block", blockNumber),
		zap.Int("txCount", len(block.Transactions())))
	return nil
}

// processTransaction never fails the block: a receipt fetch failure skips
// this transaction's logs, every other degradation is logged and skipped.
func (l *TransferListener) processTransaction(ctx context.Context, tx *types.Transaction, blockNumber uint64, blockTime uint64) {
	txHash := strings.ToLower(tx.Hash().Hex())
	ts := time.Unix(int64(blockTime), 0).UTC()

	var from string
	if sender, err := types.Sender(l.signer, tx); err == nil {
		from = strings.ToLower(sender.Hex())
	}
	var to string
	if tx.To() != nil {
		to = strings.ToLower(tx.To().Hex())
	}

	if err := l.archive.StoreTransaction(ctx, txHash, blockNumber, from, to, tx.Value().String()); err != nil {
		zap.L().Error("Failed to archive transaction",
			zap.String("txHash", txHash),
			zap.Error(err))
	}

	if from != "" && intelligence.IsKnownBridgeAddress(to) {
		if err := l.dealbreaker.RecordBridgeCall(ctx, from, txHash, ts, to, "unknown-chain"); err != nil {
			zap.L().Error("Failed to record bridge call",
				zap.String("wallet", from),
				zap.String("txHash", txHash),
				zap.Error(err))
		}
	}

	receipt, err := l.client.TransactionReceipt(ctx, tx.Hash())
	if err != nil {
		zap.L().Warn("Receipt fetch failed, skipping transaction logs",
			zap.String("txHash", txHash),
			zap.Error(err))
		return
	}

	for _, lg := range receipt.Logs {
		event := DecodeTransfer(blockTime, *lg)
		if event == nil {
			continue
		}

		token, isStable := intelligence.StableByAddress(lg.Address.Hex())
		if isStable {
			event.TokenSymbol = token.Symbol
		}

		if err := l.archive.StoreTransfer(ctx, *event); err != nil {
			zap.L().Error("Failed to archive transfer",
				zap.String("txHash", txHash),
				zap.Error(err))
		}

		if err := l.graphStore.IngestTransfer(event.From, event.To, event.Amount, event.Timestamp); err != nil {
			zap.L().Error("Failed to ingest transfer into graph",
				zap.String("txHash", txHash),
				zap.String("from", event.From),
				zap.String("to", event.To),
				zap.Error(err))
		}

		if isStable {
			if err := l.dealbreaker.RecordStableIn(ctx, event.To, event.Amount, txHash, event.Timestamp, token.Symbol); err != nil {
				zap.L().Error("Failed to record stable inflow",
					zap.String("wallet", event.To),
					zap.String("txHash", txHash),
					zap.Error(err))
			}
		}

		if err := l.dealbreaker.RecordOut(ctx, event.From, event.Amount, txHash, event.Timestamp); err != nil {
			zap.L().Error("Failed to record outflow",
				zap.String("wallet", event.From),
				zap.String("txHash", txHash),
				zap.Error(err))
		}
	}
}

func sleepInterrupted(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}
