package ledger

import (
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// TxConfig describes a transaction to simulate or submit.
type TxConfig struct {
	From     *ethtypes.Address0xHex
	To       *ethtypes.Address0xHex
	Value    *big.Int
	Data     ethtypes.HexBytes0xPrefix
	GasLimit uint64 // 0 lets the node estimate
}

// Receipt is the confirmed outcome of a submitted transaction.
type Receipt struct {
	TxHash       string
	BlockNumber  uint64
	Success      bool
	GasUsed      uint64
	RevertReason ethtypes.HexBytes0xPrefix // raw revert payload, if the node reported one
	Logs         []Log
}

// Log is one event record emitted by a contract.
type Log struct {
	Address     *ethtypes.Address0xHex
	Topics      []ethtypes.HexBytes0xPrefix
	Data        ethtypes.HexBytes0xPrefix
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
}

// Session carries the caller's identity and ledger handle explicitly
// into every orchestrator call. There is no ambient wallet or network
// state anywhere in this module.
type Session struct {
	Account *ethtypes.Address0xHex
	ChainID uint64
	Client  Client
}
