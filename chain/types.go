package chain

import (
	"github.com/openpredict/chainsync/decode"
)

// BlockHeader is the subset of getblock output the engine consumes
type BlockHeader struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
	Time   int64  `json:"time"`
}

// Receipt is one entry of a gettransactionreceipt response. A mined but
// reverted contract call carries an empty Log.
type Receipt struct {
	BlockHash   string         `json:"blockHash"`
	BlockNumber uint64         `json:"blockNumber"`
	GasUsed     uint64         `json:"gasUsed"`
	Log         []decode.RawLog `json:"log"`
}

// SearchLogEntry is one transaction's worth of searchlogs output: the raw
// event logs already decoded into name-keyed argument sets by the node.
type SearchLogEntry struct {
	BlockNumber     uint64          `json:"blockNumber"`
	TransactionHash string          `json:"transactionHash"`
	Log             []decode.RawLog `json:"log"`
}

// Peer is the subset of getpeerinfo output used for sync-percent estimation
type Peer struct {
	SyncedHeaders int64 `json:"synced_headers"`
}

// SentTx is the node's answer to a transaction submission
type SentTx struct {
	Txid     string `json:"txid"`
	GasLimit uint64
	GasPrice string
}

// WalletTx is the subset of a wallet gettransaction response used to
// confirm direct-value transfers.
type WalletTx struct {
	Confirmations int64   `json:"confirmations"`
	Fee           float64 `json:"fee"`
}

// AddressAmount is one wallet address and its native-coin balance from
// listaddressgroupings.
type AddressAmount struct {
	Address string
	Amount  string
}

// ExecutionResult is the subset of callcontract output the engine consumes
type ExecutionResult struct {
	ExecutionResult struct {
		Output string `json:"output"`
	} `json:"executionResult"`
}
