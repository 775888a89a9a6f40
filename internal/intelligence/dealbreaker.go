package intelligence

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
	"go.uber.org/zap"
)

// Rule labels form the alert dedupe signature, the reason strings are the
// human-readable explanation. Both must stay stable in wording.
const (
	labelHighValueIn    = "high_value_stable_in"
	labelRapidInflow    = "rapid_inflow_burst"
	labelBridge         = "bridge_involvement"
	labelBridgeSoon     = "bridge_soon_after_inflow"
	labelOutflowRatio   = "high_outflow_ratio"
	labelStructuring    = "structuring_small_outs"
	labelStructAmplify  = "structuring_bridge_amplified"
	labelActivityVolume = "high_activity_volume"
	labelBaseline       = "low_level_activity"
)

var reasonText = map[string]string{
	labelHighValueIn:    "High-value stable inflow within retention window",
	labelRapidInflow:    "Rapid stable inflow burst within short window",
	labelBridge:         "Involved in bridge calls within retention window",
	labelBridgeSoon:     "Bridge call shortly after stable inflow",
	labelOutflowRatio:   "High outflow ratio against recent stable inflows",
	labelStructuring:    "Structuring: many small outflows after stable inflow",
	labelStructAmplify:  "Structuring amplified by immediate bridge activity",
	labelActivityVolume: "High transaction count within retention window",
	labelBaseline:       "Low-level activity detected (no major rules triggered)",
}

const osintReasonPrefix = "OSINT_TAG:"

const maxScore = 100

// ScorerConfig carries every tunable of the rule engine. The long retention
// window and the short burst window are independent knobs.
type ScorerConfig struct {
	RetentionWindow    time.Duration
	BurstWindow        time.Duration
	BridgeSoonDelay    time.Duration
	HighValueThreshold *big.Int
	SmallOutThreshold  *big.Int
	RapidInflowCount   int
	StructuringCount   int
	ActivityCount      int
	OutflowRatio       float64

	HighValuePenalty      int
	RapidInflowPenalty    int
	BridgePenalty         int
	BridgeSoonPenalty     int
	OutflowRatioPenalty   int
	StructuringPenalty    int
	StructAmplifyPenalty  int
	ActivityVolumePenalty int
	BaselineScore         int

	AlertScoreThreshold int
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		RetentionWindow:    24 * time.Hour,
		BurstWindow:        time.Hour,
		BridgeSoonDelay:    10 * time.Minute,
		HighValueThreshold: new(big.Int).Mul(big.NewInt(1000), big.NewInt(1_000_000)),
		SmallOutThreshold:  new(big.Int).Mul(big.NewInt(1000), big.NewInt(1_000_000)),
		RapidInflowCount:   3,
		StructuringCount:   10,
		ActivityCount:      50,
		OutflowRatio:       0.8,

		HighValuePenalty:      40,
		RapidInflowPenalty:    35,
		BridgePenalty:         30,
		BridgeSoonPenalty:     45,
		OutflowRatioPenalty:   25,
		StructuringPenalty:    30,
		StructAmplifyPenalty:  15,
		ActivityVolumePenalty: 8,
		BaselineScore:         5,

		AlertScoreThreshold: 60,
	}
}

// AlertSink persists alerts crossing the threshold.
type AlertSink interface {
	StoreAlert(alert models.Alert) error
}

// ProfileStore receives the externally visible risk summary of a wallet,
// alerting or not.
type ProfileStore interface {
	UpsertRiskSummary(ctx context.Context, wallet string, score int, tags []string, lastSeen time.Time) error
}

// ThreatTagResolver is the external OSINT enrichment contract. It must be
// safe to call with no backend configured.
type ThreatTagResolver interface {
	Resolve(ctx context.Context, address string) (OSINTResult, error)
}

type OSINTResult struct {
	RiskBoost int
	Tags      []string
}

var ErrInvalidRecord = errors.New("invalid record")

// Dealbreaker is the sliding-window heuristic risk scorer. Record operations
// append to the wallet's window, purge it, and re-evaluate the wallet; each
// wallet's update-then-evaluate unit is serialized, distinct wallets run
// fully in parallel.
type Dealbreaker struct {
	cfg      ScorerConfig
	windows  *WindowStore
	resolver ThreatTagResolver
	alerts   AlertSink
	profiles ProfileStore
	deduper  *lru.Cache[string, time.Time]

	now func() time.Time
}

func NewDealbreaker(
	cfg ScorerConfig,
	windows *WindowStore,
	resolver ThreatTagResolver,
	alerts AlertSink,
	profiles ProfileStore,
) (*Dealbreaker, error) {
	deduper, err := lru.New[string, time.Time](20000)
	if err != nil {
		return nil, err
	}
	return &Dealbreaker{
		cfg:      cfg,
		windows:  windows,
		resolver: resolver,
		alerts:   alerts,
		profiles: profiles,
		deduper:  deduper,
		now:      time.Now,
	}, nil
}

func validateRecord(wallet string, amount *big.Int) error {
	if wallet == "" {
		return fmt.Errorf("%w: empty wallet address", ErrInvalidRecord)
	}
	if amount != nil && amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount for wallet %s", ErrInvalidRecord, wallet)
	}
	return nil
}

// RecordStableIn registers a stable-asset inflow into wallet.
func (d *Dealbreaker) RecordStableIn(ctx context.Context, wallet string, amount *big.Int, tx string, ts time.Time, symbol string) error {
	if err := validateRecord(wallet, amount); err != nil {
		return err
	}
	entry := models.WindowEntry{Hash: tx, Amount: amount, Timestamp: ts, Symbol: symbol}
	return d.recordAndEvaluate(ctx, wallet, func(w *walletWindowState) {
		w.stableInflows = append(w.stableInflows, entry)
	})
}

// RecordOut registers an outbound transfer from wallet.
func (d *Dealbreaker) RecordOut(ctx context.Context, wallet string, amount *big.Int, tx string, ts time.Time) error {
	if err := validateRecord(wallet, amount); err != nil {
		return err
	}
	entry := models.WindowEntry{Hash: tx, Amount: amount, Timestamp: ts}
	return d.recordAndEvaluate(ctx, wallet, func(w *walletWindowState) {
		w.outflows = append(w.outflows, entry)
	})
}

// RecordBridgeCall registers a bridge interaction by wallet.
func (d *Dealbreaker) RecordBridgeCall(ctx context.Context, wallet string, tx string, ts time.Time, bridge string, chain string) error {
	if err := validateRecord(wallet, nil); err != nil {
		return err
	}
	entry := models.WindowEntry{Hash: tx, Amount: new(big.Int), Timestamp: ts, Counterparty: strings.ToLower(bridge)}
	return d.recordAndEvaluate(ctx, wallet, func(w *walletWindowState) {
		w.bridgeCalls = append(w.bridgeCalls, entry)
	})
}

func (d *Dealbreaker) recordAndEvaluate(ctx context.Context, wallet string, mutate func(*walletWindowState)) error {
	wallet = strings.ToLower(wallet)
	w := d.windows.state(wallet)

	now := d.now()
	w.mu.Lock()
	mutate(w)
	w.purgeLocked(now, d.cfg.RetentionWindow)
	heuristic, events := d.scoreLocked(w, now)
	w.mu.Unlock()

	return d.finishEvaluation(ctx, wallet, heuristic, events)
}

// EvaluateWalletRisk re-evaluates a wallet on demand without recording a new
// event.
func (d *Dealbreaker) EvaluateWalletRisk(ctx context.Context, wallet string) (models.RiskAssessment, error) {
	if wallet == "" {
		return models.RiskAssessment{}, fmt.Errorf("%w: empty wallet address", ErrInvalidRecord)
	}
	wallet = strings.ToLower(wallet)
	w := d.windows.state(wallet)

	now := d.now()
	w.mu.Lock()
	w.purgeLocked(now, d.cfg.RetentionWindow)
	heuristic, events := d.scoreLocked(w, now)
	w.mu.Unlock()

	if err := d.finishEvaluation(ctx, wallet, heuristic, events); err != nil {
		return models.RiskAssessment{}, err
	}
	return models.RiskAssessment{
		Wallet:  wallet,
		Score:   heuristic.finalScore(),
		Reasons: heuristic.reasons(),
	}, nil
}

type ruleHit struct {
	label  string
	reason string
}

type heuristicResult struct {
	score int
	hits  []ruleHit
	osint OSINTResult
}

func (h *heuristicResult) finalScore() int {
	score := h.score + h.osint.RiskBoost
	if score > maxScore {
		score = maxScore
	}
	return score
}

func (h *heuristicResult) reasons() []string {
	out := make([]string, 0, len(h.hits)+len(h.osint.Tags))
	for _, hit := range h.hits {
		out = append(out, hit.reason)
	}
	for _, tag := range h.osint.Tags {
		out = append(out, osintReasonPrefix+tag)
	}
	return out
}

// signature excludes OSINT tags so external feed churn does not defeat
// deduplication.
func (h *heuristicResult) signature() string {
	labels := make([]string, 0, len(h.hits))
	for _, hit := range h.hits {
		labels = append(labels, hit.label)
	}
	sort.Strings(labels)
	return strings.Join(labels, "|")
}

// scoreLocked runs the rule engine over the current window state. Caller
// holds w.mu; the computation is pure, all suspension points happen later.
func (d *Dealbreaker) scoreLocked(w *walletWindowState, now time.Time) (*heuristicResult, []models.RecentEvent) {
	res := &heuristicResult{}
	hit := func(label string, penalty int) {
		res.score += penalty
		res.hits = append(res.hits, ruleHit{label: label, reason: reasonText[label]})
	}

	// 1. High-value inflow: counted once no matter how many qualify.
	for _, in := range w.stableInflows {
		if in.Amount != nil && in.Amount.Cmp(d.cfg.HighValueThreshold) >= 0 {
			hit(labelHighValueIn, d.cfg.HighValuePenalty)
			break
		}
	}

	// 2. Rapid inflow burst over the short window.
	burstStart := now.Add(-d.cfg.BurstWindow)
	rapid := 0
	for _, in := range w.stableInflows {
		if !in.Timestamp.Before(burstStart) {
			rapid++
		}
	}
	if rapid >= d.cfg.RapidInflowCount {
		hit(labelRapidInflow, d.cfg.RapidInflowPenalty)
	}

	// 3. Any bridge involvement in the retention window.
	if len(w.bridgeCalls) > 0 {
		hit(labelBridge, d.cfg.BridgePenalty)
	}

	// 4. Bridge call shortly after any stable inflow. Stronger signal than
	// rule 3; both may fire.
	bridgeSoon := false
	for _, in := range w.stableInflows {
		for _, b := range w.bridgeCalls {
			if !b.Timestamp.Before(in.Timestamp) && b.Timestamp.Sub(in.Timestamp) <= d.cfg.BridgeSoonDelay {
				bridgeSoon = true
				break
			}
		}
		if bridgeSoon {
			break
		}
	}
	if bridgeSoon {
		hit(labelBridgeSoon, d.cfg.BridgeSoonPenalty)
	}

	// 5. Outflow ratio, skipped entirely on zero inflow.
	sumIn := new(big.Int)
	for _, in := range w.stableInflows {
		if in.Amount != nil {
			sumIn.Add(sumIn, in.Amount)
		}
	}
	sumOut := new(big.Int)
	for _, out := range w.outflows {
		if out.Amount != nil {
			sumOut.Add(sumOut, out.Amount)
		}
	}
	if sumIn.Sign() > 0 {
		ratio, _ := new(big.Float).Quo(new(big.Float).SetInt(sumOut), new(big.Float).SetInt(sumIn)).Float64()
		if ratio >= d.cfg.OutflowRatio {
			hit(labelOutflowRatio, d.cfg.OutflowRatioPenalty)
		}
	}

	// 6. Structuring: small outflows after the most recent stable inflow.
	smallOuts := 0
	if len(w.stableInflows) > 0 {
		lastIn := w.stableInflows[0].Timestamp
		for _, in := range w.stableInflows[1:] {
			if in.Timestamp.After(lastIn) {
				lastIn = in.Timestamp
			}
		}
		for _, out := range w.outflows {
			if !out.Timestamp.Before(lastIn) && out.Amount != nil && out.Amount.Cmp(d.cfg.SmallOutThreshold) <= 0 {
				smallOuts++
			}
		}
	}
	if smallOuts >= d.cfg.StructuringCount {
		hit(labelStructuring, d.cfg.StructuringPenalty)
	}
	// Half the structuring count is already enough when it chains straight
	// into a bridge.
	if bridgeSoon && smallOuts >= d.cfg.StructuringCount/2 {
		hit(labelStructAmplify, d.cfg.StructAmplifyPenalty)
	}

	// 7. Raw activity volume.
	eventCount := w.eventCountLocked()
	if eventCount > d.cfg.ActivityCount {
		hit(labelActivityVolume, d.cfg.ActivityVolumePenalty)
	}

	if res.score > maxScore {
		res.score = maxScore
	}

	// 8. Baseline: distinguish quiet-but-active wallets from untouched ones.
	if len(res.hits) == 0 && eventCount > 0 {
		hit(labelBaseline, d.cfg.BaselineScore)
		if res.score > maxScore {
			res.score = maxScore
		}
	}

	return res, w.recentEventsLocked()
}

// finishEvaluation performs the suspension points of an evaluation: OSINT
// enrichment, alert emission and risk-summary persistence. Enrichment failure
// degrades to zero boost, it never fails the evaluation.
func (d *Dealbreaker) finishEvaluation(ctx context.Context, wallet string, heuristic *heuristicResult, events []models.RecentEvent) error {
	if d.resolver != nil {
		resolveCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		osint, err := d.resolver.Resolve(resolveCtx, wallet)
		cancel()
		if err != nil {
			zap.L().Warn("OSINT enrichment failed",
				zap.String("wallet", wallet),
				zap.Error(err))
		} else {
			heuristic.osint = osint
		}
	}

	score := heuristic.finalScore()
	reasons := heuristic.reasons()

	if score >= d.cfg.AlertScoreThreshold {
		if d.shouldEmitAlert(wallet, heuristic.signature()) {
			alert := models.Alert{
				Wallet:    wallet,
				Score:     score,
				Reasons:   reasons,
				Events:    events,
				CreatedAt: d.now(),
			}
			if d.alerts != nil {
				if err := d.alerts.StoreAlert(alert); err != nil {
					zap.L().Error("Failed to persist alert",
						zap.String("wallet", wallet),
						zap.Int("score", score),
						zap.Error(err))
				}
			}
			zap.L().Info("Risk alert emitted",
				zap.String("wallet", wallet),
				zap.Int("score", score),
				zap.Strings("reasons", reasons))
		}
	}

	if d.profiles != nil {
		tags := make([]string, 0, len(heuristic.hits))
		for _, hit := range heuristic.hits {
			tags = append(tags, hit.label)
		}
		if err := d.profiles.UpsertRiskSummary(ctx, wallet, score, tags, d.now()); err != nil {
			zap.L().Error("Failed to update wallet risk summary",
				zap.String("wallet", wallet),
				zap.Error(err))
		}
	}
	return nil
}

// shouldEmitAlert suppresses alerts carrying an identical (wallet, signature)
// within the retention window.
func (d *Dealbreaker) shouldEmitAlert(wallet, signature string) bool {
	key := wallet + ":" + signature
	if emittedAt, ok := d.deduper.Get(key); ok {
		if d.now().Sub(emittedAt) < d.cfg.RetentionWindow {
			return false
		}
	}
	d.deduper.Add(key, d.now())
	return true
}

// RecentEvents exposes the merged window of one wallet, newest first.
func (d *Dealbreaker) RecentEvents(wallet string) []models.RecentEvent {
	return d.windows.RecentEvents(wallet)
}
