package graph

import (
	"context"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Worker drives periodic recomputes. Runs are single-flight: a tick that
// fires while a recompute is still in progress joins the in-flight run
// instead of starting another (the graph can outgrow the interval).
type Worker struct {
	engine        *Engine
	interval      time.Duration
	minEdgeWeight *big.Int
	group         singleflight.Group
}

func NewWorker(engine *Engine, interval time.Duration, minEdgeWeight *big.Int) *Worker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Worker{
		engine:        engine,
		interval:      interval,
		minEdgeWeight: minEdgeWeight,
	}
}

// Start runs one recompute immediately, then on every tick until ctx is
// canceled. It blocks; callers run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	zap.L().Info("Starting graph recompute worker",
		zap.Duration("interval", w.interval))

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Graph recompute worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	ch := w.group.DoChan("recompute", func() (interface{}, error) {
		return w.engine.Recompute(ctx, RecomputeOptions{MinEdgeWeight: w.minEdgeWeight})
	})
	go func() {
		res := <-ch
		if res.Err != nil {
			zap.L().Error("Graph recompute failed", zap.Error(res.Err))
			return
		}
		stats := res.Val.(ComputeStats)
		zap.L().Info("Graph recompute completed",
			zap.Int("nodesScored", stats.NodesScored),
			zap.Int("edgesConsidered", stats.EdgesConsidered),
			zap.Bool("shared", res.Shared))
	}()
}

// RunOnce performs an unfiltered on-demand recompute, still coalesced with
// any in-flight periodic run.
func (w *Worker) RunOnce(ctx context.Context) (ComputeStats, error) {
	val, err, _ := w.group.Do("recompute", func() (interface{}, error) {
		return w.engine.Recompute(ctx, RecomputeOptions{})
	})
	if err != nil {
		return ComputeStats{}, err
	}
	return val.(ComputeStats), nil
}
