package store

import "fmt"

// Key prefixes for different data types
const (
	prefixMeta  = "/meta/"
	prefixData  = "/data/"
	prefixIndex = "/index/"

	prefixBlocks      = "/data/blocks/"
	prefixTopics      = "/data/topics/"
	prefixOracles     = "/data/oracles/"
	prefixVotes       = "/data/votes/"
	prefixOrders      = "/data/orders/"
	prefixTrades      = "/data/trades/"
	prefixTxs         = "/data/txs/"
	prefixMarkets     = "/data/markets/"
	prefixFundRedeems = "/data/fundredeems/"

	prefixTopicAddr  = "/index/topicaddr/"
	prefixOracleAddr = "/index/oracleaddr/"
	prefixOrderID    = "/index/orderid/"
)

// Metadata keys
const (
	keyLatestHeight = "/meta/lh"
	keySyncInfo     = "/meta/syncinfo"
)

// BlockKey returns the key for a block at the given height.
// Heights are zero padded so block keys iterate in height order.
// Format: /data/blocks/{height}
func BlockKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixBlocks, height))
}

// TopicKey returns the key for a topic record
// Format: /data/topics/{txid}
func TopicKey(txid string) []byte {
	return []byte(prefixTopics + txid)
}

// TopicAddressIndexKey returns the address index key for a topic
// Format: /index/topicaddr/{address} -> txid
func TopicAddressIndexKey(address string) []byte {
	return []byte(prefixTopicAddr + address)
}

// OracleKey returns the key for an oracle record
// Format: /data/oracles/{txid}
func OracleKey(txid string) []byte {
	return []byte(prefixOracles + txid)
}

// OracleAddressIndexKey returns the address index key for an oracle
// Format: /index/oracleaddr/{address} -> txid
func OracleAddressIndexKey(address string) []byte {
	return []byte(prefixOracleAddr + address)
}

// VoteKey returns the key for a vote record
// Format: /data/votes/{txid}
func VoteKey(txid string) []byte {
	return []byte(prefixVotes + txid)
}

// OrderKey returns the key for an order record
// Format: /data/orders/{txid}
func OrderKey(txid string) []byte {
	return []byte(prefixOrders + txid)
}

// OrderIDIndexKey returns the logical-key index key for an order.
// The on-chain order id is assigned at confirmation, so the txid key is the
// stable one and this index joins events to it.
// Format: /index/orderid/{orderId} -> txid
func OrderIDIndexKey(orderID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrderID, orderID))
}

// TradeKey returns the key for a trade record
// Format: /data/trades/{txid}
func TradeKey(txid string) []byte {
	return []byte(prefixTrades + txid)
}

// TransactionKey returns the key for a ledger transaction record
// Format: /data/txs/{txid}
func TransactionKey(txid string) []byte {
	return []byte(prefixTxs + txid)
}

// FundRedeemKey returns the key for an exchange fund/redeem record
// Format: /data/fundredeems/{txid}
func FundRedeemKey(txid string) []byte {
	return []byte(prefixFundRedeems + txid)
}

// MarketKey returns the key for a market statistics row
// Format: /data/markets/{pair}
func MarketKey(pair string) []byte {
	return []byte(prefixMarkets + pair)
}

// LatestHeightKey returns the key for the sync high-water mark
func LatestHeightKey() []byte {
	return []byte(keyLatestHeight)
}

// SyncInfoKey returns the key for the published sync snapshot
func SyncInfoKey() []byte {
	return []byte(keySyncInfo)
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, for pebble range iteration.
func prefixUpperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			out := make([]byte, i+1)
			copy(out, b[:i+1])
			out[i]++
			return out
		}
	}
	return nil
}
