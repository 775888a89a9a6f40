package risk

import (
	"math/big"
	"testing"
	"time"

	"github.com/shadowtrace/shadowtrace-node/internal/config"
	"github.com/stretchr/testify/require"
)

func TestScorerConfigFromEnv(t *testing.T) {
	t.Run("zero config keeps defaults", func(t *testing.T) {
		scorerCfg := scorerConfigFromEnv(config.Config{})
		require.Equal(t, 24*time.Hour, scorerCfg.RetentionWindow)
		require.Equal(t, time.Hour, scorerCfg.BurstWindow)
		require.Equal(t, 10*time.Minute, scorerCfg.BridgeSoonDelay)
		require.Equal(t, 60, scorerCfg.AlertScoreThreshold)
		require.Equal(t, 0, scorerCfg.HighValueThreshold.Cmp(big.NewInt(1_000_000_000)))
	})

	t.Run("set fields override defaults", func(t *testing.T) {
		scorerCfg := scorerConfigFromEnv(config.Config{
			RiskRetentionHours:      48,
			RiskBurstWindowMinutes:  30,
			RiskBridgeSoonMinutes:   5,
			RiskHighValueThreshold:  "5000000000",
			RiskRapidInflowCount:    5,
			RiskAlertScoreThreshold: 80,
		})
		require.Equal(t, 48*time.Hour, scorerCfg.RetentionWindow)
		require.Equal(t, 30*time.Minute, scorerCfg.BurstWindow)
		require.Equal(t, 5*time.Minute, scorerCfg.BridgeSoonDelay)
		require.Equal(t, 0, scorerCfg.HighValueThreshold.Cmp(big.NewInt(5_000_000_000)))
		require.Equal(t, 5, scorerCfg.RapidInflowCount)
		require.Equal(t, 80, scorerCfg.AlertScoreThreshold)
	})

	t.Run("unparseable threshold falls back to default", func(t *testing.T) {
		scorerCfg := scorerConfigFromEnv(config.Config{
			RiskHighValueThreshold: "a lot",
		})
		require.Equal(t, 0, scorerCfg.HighValueThreshold.Cmp(big.NewInt(1_000_000_000)))
	})
}
