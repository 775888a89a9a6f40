package intelligence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// boost per matching feed record, capped by maxOsintBoost
const (
	osintBoostPerRecord = 5
	maxOsintBoost       = 30
)

// NoopThreatTagResolver is used when no enrichment backend is configured. It
// always contributes zero boost.
type NoopThreatTagResolver struct{}

func (NoopThreatTagResolver) Resolve(context.Context, string) (OSINTResult, error) {
	return OSINTResult{}, nil
}

// SqliteThreatTagResolver resolves OSINT tags from the osint_feeds table,
// populated out-of-band by the feed collectors.
type SqliteThreatTagResolver struct {
	db *sql.DB
}

func NewSqliteThreatTagResolver(db *sql.DB) *SqliteThreatTagResolver {
	return &SqliteThreatTagResolver{db: db}
}

func (r *SqliteThreatTagResolver) Resolve(ctx context.Context, address string) (OSINTResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tags FROM osint_feeds WHERE address = ?`, strings.ToLower(address))
	if err != nil {
		return OSINTResult{}, fmt.Errorf("failed to query osint_feeds: %w", err)
	}
	defer rows.Close()

	var result OSINTResult
	records := 0
	for rows.Next() {
		var rawTags string
		if err := rows.Scan(&rawTags); err != nil {
			return OSINTResult{}, fmt.Errorf("failed to scan osint_feeds row: %w", err)
		}
		records++
		var tags []string
		if err := json.Unmarshal([]byte(rawTags), &tags); err != nil {
			continue
		}
		result.Tags = append(result.Tags, tags...)
	}
	if err := rows.Err(); err != nil {
		return OSINTResult{}, fmt.Errorf("failed to iterate osint_feeds rows: %w", err)
	}

	result.RiskBoost = records * osintBoostPerRecord
	if result.RiskBoost > maxOsintBoost {
		result.RiskBoost = maxOsintBoost
	}
	return result, nil
}

// PropagateTaint derives a boost for the receiving side of a transfer from a
// tainted counterparty: decayed, capped at 20.
func PropagateTaint(fromTags []string, decay float64) int {
	if len(fromTags) == 0 {
		return 0
	}
	boost := int(float64(len(fromTags)) * 10 * decay)
	if boost > 20 {
		boost = 20
	}
	return boost
}
