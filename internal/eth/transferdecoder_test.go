package eth

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func makeTransferLog(t *testing.T, from, to common.Address, amount *big.Int) types.Log {
	t.Helper()
	return types.Log{
		Address: common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"),
		TxHash:  common.HexToHash("0xabc123"),
		Index:   7,
		Topics: []common.Hash{
			transferEventSig,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	}
}

func TestDecodeTransfer(t *testing.T) {
	fromAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	toAddr := common.HexToAddress("0x2222222222222222222222222222222222222222")

	t.Run("valid transfer log decodes", func(t *testing.T) {
		amount := big.NewInt(1_500_000)
		event := DecodeTransfer(1700000000, makeTransferLog(t, fromAddr, toAddr, amount))
		require.NotNil(t, event)
		require.Equal(t, "0x1111111111111111111111111111111111111111", event.From)
		require.Equal(t, "0x2222222222222222222222222222222222222222", event.To)
		require.Equal(t, 0, event.Amount.Cmp(amount))
		require.EqualValues(t, 7, event.LogIndex)
		require.EqualValues(t, 1700000000, event.Timestamp.Unix())
	})

	t.Run("amount wider than 64 bits is preserved", func(t *testing.T) {
		amount, ok := new(big.Int).SetString("340282366920938463463374607431768211456", 10) // 2^128
		require.True(t, ok)
		event := DecodeTransfer(1700000000, makeTransferLog(t, fromAddr, toAddr, amount))
		require.NotNil(t, event)
		require.Equal(t, 0, event.Amount.Cmp(amount))
	})

	t.Run("log with only two topics -> nil", func(t *testing.T) {
		lg := makeTransferLog(t, fromAddr, toAddr, big.NewInt(1))
		lg.Topics = lg.Topics[:2]
		require.Nil(t, DecodeTransfer(1700000000, lg))
	})

	t.Run("log with no topics -> nil", func(t *testing.T) {
		lg := makeTransferLog(t, fromAddr, toAddr, big.NewInt(1))
		lg.Topics = nil
		require.Nil(t, DecodeTransfer(1700000000, lg))
	})

	t.Run("wrong event signature -> nil", func(t *testing.T) {
		lg := makeTransferLog(t, fromAddr, toAddr, big.NewInt(1))
		lg.Topics[0] = common.HexToHash("0xdeadbeef")
		require.Nil(t, DecodeTransfer(1700000000, lg))
	})

	t.Run("addresses are lower-cased", func(t *testing.T) {
		mixed := common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789ABCDEF01")
		event := DecodeTransfer(1700000000, makeTransferLog(t, mixed, toAddr, big.NewInt(1)))
		require.NotNil(t, event)
		require.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", event.From)
	})
}
