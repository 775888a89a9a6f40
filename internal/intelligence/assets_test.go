package intelligence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStableByAddress(t *testing.T) {
	t.Run("known stable, case insensitive", func(t *testing.T) {
		token, ok := StableByAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
		require.True(t, ok)
		require.Equal(t, "USDC", token.Symbol)
		require.Equal(t, 6, token.Decimals)
	})

	t.Run("unknown contract", func(t *testing.T) {
		_, ok := StableByAddress("0x1111111111111111111111111111111111111111")
		require.False(t, ok)
	})
}

func TestIsKnownBridgeAddress(t *testing.T) {
	require.True(t, IsKnownBridgeAddress("0x3ee18b2214AFF97000D974cf647E7C347E8fa585"))
	require.False(t, IsKnownBridgeAddress("0x1111111111111111111111111111111111111111"))
	require.False(t, IsKnownBridgeAddress(""))
}
