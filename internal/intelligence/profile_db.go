package intelligence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shadowtrace/shadowtrace-node/internal/db"
	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
)

// ProfileDb maintains the durable wallet risk summaries in SQLite. Tags are
// accumulated as a sorted JSON set, risk_seed always reflects the latest
// evaluation.
type ProfileDb interface {
	ProfileStore
	GetProfile(ctx context.Context, wallet string) (models.WalletProfile, error)
}

func NewProfileDb(sqlite *sql.DB) ProfileDb {
	return &ProfileDbImpl{db: sqlite}
}

type ProfileDbImpl struct {
	db *sql.DB
}

func (p *ProfileDbImpl) UpsertRiskSummary(ctx context.Context, wallet string, score int, tags []string, lastSeen time.Time) error {
	_, err := db.TxRunner(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		var rawTags string
		err := tx.QueryRowContext(ctx,
			`SELECT tags FROM wallet_profiles WHERE wallet = ?`, wallet).Scan(&rawTags)
		if err != nil && err != sql.ErrNoRows {
			return struct{}{}, err
		}

		merged := map[string]struct{}{}
		if err == nil {
			var existing []string
			if uerr := json.Unmarshal([]byte(rawTags), &existing); uerr == nil {
				for _, t := range existing {
					merged[t] = struct{}{}
				}
			}
		}
		for _, t := range tags {
			merged[t] = struct{}{}
		}
		union := make([]string, 0, len(merged))
		for t := range merged {
			union = append(union, t)
		}
		sort.Strings(union)

		encoded, err := json.Marshal(union)
		if err != nil {
			return struct{}{}, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO wallet_profiles (wallet, risk_seed, tags, last_seen)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(wallet) DO UPDATE SET
				risk_seed = excluded.risk_seed,
				tags = excluded.tags,
				last_seen = excluded.last_seen`,
			wallet, score, string(encoded), lastSeen.Unix())
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert risk summary for %s: %w", wallet, err)
	}
	return nil
}

func (p *ProfileDbImpl) GetProfile(ctx context.Context, wallet string) (models.WalletProfile, error) {
	var (
		profile  models.WalletProfile
		rawTags  string
		lastSeen int64
		flag     int
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT wallet, risk_seed, tags, sanctioned, last_seen FROM wallet_profiles WHERE wallet = ?`,
		wallet).Scan(&profile.Wallet, &profile.RiskSeed, &rawTags, &flag, &lastSeen)
	if err != nil {
		return models.WalletProfile{}, fmt.Errorf("failed to read profile for %s: %w", wallet, err)
	}
	if err := json.Unmarshal([]byte(rawTags), &profile.Tags); err != nil {
		profile.Tags = nil
	}
	profile.Sanctioned = flag != 0
	profile.LastSeen = time.Unix(lastSeen, 0).UTC()
	return profile, nil
}
