package eth

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
)

// keccak256("Transfer(address,address,uint256)")
var transferEventSig = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// DecodeTransfer turns one raw log into a canonical TransferEvent, or nil
// when the log is not an ERC20 Transfer. Malformed logs are common and
// expected, so rejection is a nil result, never an error. The function is
// pure: no side effects, no I/O.
func DecodeTransfer(blockTime uint64, lg types.Log) *models.TransferEvent {
	if len(lg.Topics) < 3 {
		return nil
	}
	if lg.Topics[0] != transferEventSig {
		return nil
	}

	// rightmost 20 bytes of the 32-byte indexed topics
	from := common.BytesToAddress(lg.Topics[1].Bytes())
	to := common.BytesToAddress(lg.Topics[2].Bytes())

	// The data payload is one big-endian uint256; SetBytes keeps the full
	// width, token amounts overflow int64 routinely.
	amount := new(big.Int).SetBytes(lg.Data)

	return &models.TransferEvent{
		TxHash:    strings.ToLower(lg.TxHash.Hex()),
		LogIndex:  uint64(lg.Index),
		From:      strings.ToLower(from.Hex()),
		To:        strings.ToLower(to.Hex()),
		Amount:    amount,
		Timestamp: time.Unix(int64(blockTime), 0).UTC(),
	}
}
