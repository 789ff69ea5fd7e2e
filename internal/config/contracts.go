package config

import "fmt"

// Network names
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// EventSig is a contract event signature hash (keccak256 of the event
// declaration), hex encoded without 0x prefix, as searchlogs returns them.
type EventSig = string

// TokenInfo describes a token listed on the exchange
type TokenInfo struct {
	Symbol  string
	Name    string
	Address string
	// Pair is the market pair the token trades under
	Pair string
}

// ContractMetadata is the static per-network contract table. It is resolved
// once at startup and treated as immutable from then on.
type ContractMetadata struct {
	// ContractDeployedBlock is the block the platform contracts were
	// deployed at; fresh syncs start here
	ContractDeployedBlock uint64

	// Block0Timestamp is the unix time of the genesis block, used for the
	// fallback sync-percent estimate
	Block0Timestamp int64

	// BlockTargetSpacing is the expected seconds between blocks
	BlockTargetSpacing int64

	// DefaultSenderAddress is the throwaway address used as the sender of
	// read-only contract calls
	DefaultSenderAddress string

	EventFactory struct {
		Address      string
		TopicCreated EventSig
	}

	OracleFactory struct {
		Address                    string
		CentralizedOracleCreated   EventSig
		DecentralizedOracleCreated EventSig
	}

	// Oracle and TopicEvent signatures are not bound to a single address;
	// instances are deployed per topic
	Oracle struct {
		OracleResultVoted EventSig
		OracleResultSet   EventSig
	}

	TopicEvent struct {
		FinalResultSet EventSig
	}

	Exchange struct {
		Address        string
		NewOrder       EventSig
		OrderCancelled EventSig
		OrderFulfilled EventSig
		Trade          EventSig
		MarketMaker    EventSig
	}

	// PredToken is the prediction token contract used for approvals and
	// decentralized-oracle stakes
	PredToken TokenInfo

	// Tokens are all exchange-listed tokens, PredToken included
	Tokens []TokenInfo
}

// Event signature hashes are shared across networks; only addresses and
// deploy heights differ.
var eventSigs = struct {
	topicCreated               EventSig
	centralizedOracleCreated   EventSig
	decentralizedOracleCreated EventSig
	oracleResultVoted          EventSig
	oracleResultSet            EventSig
	finalResultSet             EventSig
	newOrder                   EventSig
	orderCancelled             EventSig
	orderFulfilled             EventSig
	trade                      EventSig
	marketMaker                EventSig
}{
	topicCreated:               "b7fa6f4e1e13a1b84b9d8e0f0c8af5c8a1f94cc0f1a87b023964b3d9d2b35b0f",
	centralizedOracleCreated:   "33ee7eaf51fa5a874d9a7048ef347ab1add21b4d619b8b099e973b19e97f1c9c",
	decentralizedOracleCreated: "9e087bfa58b8a743e2e0e92db339e60e315412bb88b337f7fd863a2232411bd2",
	oracleResultVoted:          "6ccc5c91b0fa489bd6f4d17e26c858f0d0ae4948e305a9e12f0f1b2a8b40b23d",
	oracleResultSet:            "12d4c1d37b7935c5a0b8d5900b1ebbbbdf9a738bdfb4ab5e6e26a6b53ef32a6a",
	finalResultSet:             "c46e722c8158268af789d84a3c05a3533895fa15f41f0f51a1b6fbe43d446a19",
	newOrder:                   "7abb98e7fa1f1eae53a1e28d4f5e35c9d4b6d0e93f21d1e6e91bde2a142d07f6",
	orderCancelled:             "1f2ed1d62b099267a5a6cfe2c3b8a95f0ba6b6d39aa31b055ef6e5b0f1a6c2d1",
	orderFulfilled:             "8caa64c5d89d2d2e3b62fc1f6c6b5d8e80efcb9cd3a7646e7c22a4fda07b2b13",
	trade:                      "3d0cf6c1db3a4c73ff2b4b5d58b2c2c9e31cc65b1b02a34b835c32c6e1de98a5",
	marketMaker:                "ae2a14ab01fb0e1b62f6b9c2d92d4ab2db03a6c89c9fd2e1fb2c2a29bb3e06f2",
}

var mainnetMetadata = buildMetadata(
	556000,
	1504695029,
	144,
	"RKBLGRvYqHEcphhbFUZeaQ8MjYmdAsYnGF",
	networkAddresses{
		eventFactory:  "116a72abbb2ba25b5c6cd85cd50f3b50c3eaed27",
		oracleFactory: "d6e25c0a98ee8d291d5f2ce116d085e1a1ab4bcb",
		exchange:      "c0ab36986bd36a0c02b9a265b6bb4a140891b573",
		predToken:     "09800417b097c61b9fd26b3ddde4238304a110d5",
	},
)

var testnetMetadata = buildMetadata(
	181000,
	1536639914,
	144,
	"5VMGo2gGHhkW5TvRRtcKM1RkyUgrnNP7dn",
	networkAddresses{
		eventFactory:  "41f0641a74f7a09ffea72e9a3a7d4ed7686b3d9b",
		oracleFactory: "9697f65fbd4a30b258bdce7a4a43bccee9b437a9",
		exchange:      "a4e5acfbd1a8b6b3d32c1f4e19cb1f1a8be6bd71",
		predToken:     "6b9f0c3ac5a6ad5e192c099643bd485e4d5e5a70",
	},
)

type networkAddresses struct {
	eventFactory  string
	oracleFactory string
	exchange      string
	predToken     string
}

func buildMetadata(deployedBlock uint64, block0 int64, spacing int64, sender string, addrs networkAddresses) *ContractMetadata {
	m := &ContractMetadata{
		ContractDeployedBlock: deployedBlock,
		Block0Timestamp:       block0,
		BlockTargetSpacing:    spacing,
		DefaultSenderAddress:  sender,
	}

	m.EventFactory.Address = addrs.eventFactory
	m.EventFactory.TopicCreated = eventSigs.topicCreated

	m.OracleFactory.Address = addrs.oracleFactory
	m.OracleFactory.CentralizedOracleCreated = eventSigs.centralizedOracleCreated
	m.OracleFactory.DecentralizedOracleCreated = eventSigs.decentralizedOracleCreated

	m.Oracle.OracleResultVoted = eventSigs.oracleResultVoted
	m.Oracle.OracleResultSet = eventSigs.oracleResultSet

	m.TopicEvent.FinalResultSet = eventSigs.finalResultSet

	m.Exchange.Address = addrs.exchange
	m.Exchange.NewOrder = eventSigs.newOrder
	m.Exchange.OrderCancelled = eventSigs.orderCancelled
	m.Exchange.OrderFulfilled = eventSigs.orderFulfilled
	m.Exchange.Trade = eventSigs.trade
	m.Exchange.MarketMaker = eventSigs.marketMaker

	m.PredToken = TokenInfo{
		Symbol:  "PRED",
		Name:    "Prediction Token",
		Address: addrs.predToken,
		Pair:    "PRED",
	}
	m.Tokens = []TokenInfo{m.PredToken}

	return m
}

// MetadataForNetwork returns the static contract metadata for a network
func MetadataForNetwork(network string) (*ContractMetadata, error) {
	switch network {
	case NetworkMainnet:
		return mainnetMetadata, nil
	case NetworkTestnet:
		return testnetMetadata, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}
