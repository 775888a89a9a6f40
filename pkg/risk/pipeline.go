package risk

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shadowtrace/shadowtrace-node/internal/config"
	"github.com/shadowtrace/shadowtrace-node/internal/eth"
	"github.com/shadowtrace/shadowtrace-node/internal/graph"
	"github.com/shadowtrace/shadowtrace-node/internal/intelligence"
	"go.uber.org/zap"
)

// Pipeline bundles the wired core: the dealbreaker scorer, the relationship
// graph surfaces and the alert sink, for operators and presentation layers.
type Pipeline struct {
	Dealbreaker *intelligence.Dealbreaker
	Profiles    intelligence.ProfileDb
	Alerts      intelligence.AlertDb
	GraphStore  graph.Store
	GraphWorker *graph.Worker
	Exporter    *graph.Exporter
}

// StartPipelineAsync wires the whole ingestion pipeline and starts the block
// listener and the graph recompute worker in the background.
func StartPipelineAsync(sqlite *sql.DB, kv *badger.DB, ctx context.Context) (*Pipeline, error) {
	cfg := config.Get()

	pipeline, listener, err := buildPipeline(sqlite, kv, ctx, cfg)
	if err != nil {
		return nil, err
	}

	fatalErrors := make(chan error, 10)
	go func() {
		for err := range fatalErrors {
			zap.L().Fatal("Fatal error in ingestion pipeline", zap.Error(err))
		}
	}()

	go func() {
		if err := listener.Watch(); err != nil {
			fatalErrors <- err
		}
	}()
	go pipeline.GraphWorker.Start(ctx)

	return pipeline, nil
}

func buildPipeline(sqlite *sql.DB, kv *badger.DB, ctx context.Context, cfg config.Config) (*Pipeline, *eth.TransferListener, error) {
	scorerCfg := scorerConfigFromEnv(cfg)

	capacity := cfg.WalletCacheCapacity
	if capacity == 0 {
		capacity = 10000
	}
	windows, err := intelligence.NewWindowStore(capacity, scorerCfg.RetentionWindow)
	if err != nil {
		return nil, nil, err
	}

	alerts := intelligence.NewAlertDb(kv)
	profiles := intelligence.NewProfileDb(sqlite)
	resolver := intelligence.NewSqliteThreatTagResolver(sqlite)

	dealbreaker, err := intelligence.NewDealbreaker(scorerCfg, windows, resolver, alerts, profiles)
	if err != nil {
		return nil, nil, err
	}

	graphStore := graph.NewStore(kv)
	engine := graph.NewEngine(graphStore)

	interval := time.Duration(cfg.GraphRecomputeMinutes) * time.Minute
	minEdgeWeight := big.NewInt(cfg.GraphMinEdgeWeight)
	if cfg.GraphMinEdgeWeight == 0 {
		minEdgeWeight = big.NewInt(1)
	}
	worker := graph.NewWorker(engine, interval, minEdgeWeight)

	client, err := eth.CreateEthClient()
	if err != nil {
		return nil, nil, err
	}
	listener := eth.NewTransferListener(
		ctx,
		client,
		dealbreaker,
		graphStore,
		eth.NewArchiveDb(sqlite),
		eth.NewProgressDb(kv),
		cfg.IngestTxConcurrency,
	)

	pipeline := &Pipeline{
		Dealbreaker: dealbreaker,
		Profiles:    profiles,
		Alerts:      alerts,
		GraphStore:  graphStore,
		GraphWorker: worker,
		Exporter:    graph.NewExporter(graphStore),
	}
	return pipeline, listener, nil
}

func scorerConfigFromEnv(cfg config.Config) intelligence.ScorerConfig {
	scorerCfg := intelligence.DefaultScorerConfig()

	if cfg.RiskRetentionHours > 0 {
		scorerCfg.RetentionWindow = time.Duration(cfg.RiskRetentionHours) * time.Hour
	}
	if cfg.RiskBurstWindowMinutes > 0 {
		scorerCfg.BurstWindow = time.Duration(cfg.RiskBurstWindowMinutes) * time.Minute
	}
	if cfg.RiskBridgeSoonMinutes > 0 {
		scorerCfg.BridgeSoonDelay = time.Duration(cfg.RiskBridgeSoonMinutes) * time.Minute
	}
	if cfg.RiskHighValueThreshold != "" {
		if v, ok := new(big.Int).SetString(cfg.RiskHighValueThreshold, 10); ok {
			scorerCfg.HighValueThreshold = v
		} else {
			zap.L().Warn("Ignoring unparseable RISK_HIGH_VALUE_THRESHOLD",
				zap.String("value", cfg.RiskHighValueThreshold))
		}
	}
	if cfg.RiskSmallOutThreshold != "" {
		if v, ok := new(big.Int).SetString(cfg.RiskSmallOutThreshold, 10); ok {
			scorerCfg.SmallOutThreshold = v
		} else {
			zap.L().Warn("Ignoring unparseable RISK_SMALL_OUT_THRESHOLD",
				zap.String("value", cfg.RiskSmallOutThreshold))
		}
	}
	if cfg.RiskRapidInflowCount > 0 {
		scorerCfg.RapidInflowCount = cfg.RiskRapidInflowCount
	}
	if cfg.RiskStructuringOutCount > 0 {
		scorerCfg.StructuringCount = cfg.RiskStructuringOutCount
	}
	if cfg.RiskOutflowRatio > 0 {
		scorerCfg.OutflowRatio = cfg.RiskOutflowRatio
	}
	if cfg.RiskAlertScoreThreshold > 0 {
		scorerCfg.AlertScoreThreshold = cfg.RiskAlertScoreThreshold
	}
	return scorerCfg
}
