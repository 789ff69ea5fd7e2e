// Package types defines the domain records the sync engine materializes from
// chain events and the local ledger of submitted transactions.
//
// Monetary amounts are decimal strings in token units (the chain's 1e8
// fixed-point integers divided out at decode time); arithmetic on them goes
// through shopspring/decimal so replays are bit-for-bit deterministic.
package types

// Block is a synced chain block
type Block struct {
	Number uint64 `json:"blockNum"`
	Hash   string `json:"hash"`
	Time   int64  `json:"blockTime"`
}

// Topic is a prediction-market event with a fixed option set. Bets are
// wagered in the native coin, votes are staked in the prediction token;
// per-option totals for both are reconciled from the contract each pass.
type Topic struct {
	Txid      string   `json:"txid"`
	BlockNum  uint64   `json:"blockNum"`
	Address   string   `json:"address"`
	Creator   string   `json:"creatorAddress"`
	Version   uint16   `json:"version"`
	Name      string   `json:"name"`
	Options   []string `json:"options"`
	Status    Phase    `json:"status"`
	ResultIdx *int     `json:"resultIdx"`

	// BetAmounts are per-option native-coin bet totals
	BetAmounts []string `json:"betAmounts"`
	// VoteAmounts are per-option prediction-token vote totals
	VoteAmounts []string `json:"voteAmounts"`
}

// Oracle is one result-deciding round of a topic. The round backed by the
// native coin is the centralized (result-setter) round; prediction-token
// rounds are decentralized vote rounds.
type Oracle struct {
	Txid         string   `json:"txid"`
	BlockNum     uint64   `json:"blockNum"`
	Address      string   `json:"address"`
	TopicAddress string   `json:"topicAddress"`
	Version      uint16   `json:"version"`
	Name         string   `json:"name"`
	Options      []string `json:"options"`
	// ResultSetter is the address entitled to set the centralized result
	ResultSetter string `json:"resultSetterAddress,omitempty"`
	// OptionIdxs are the option indexes still votable this round
	OptionIdxs []int  `json:"optionIdxs"`
	Status     Phase  `json:"status"`
	Token      string `json:"token"`
	ResultIdx  *int   `json:"resultIdx"`

	// Amounts are per-option stake totals in this round's token
	Amounts []string `json:"amounts"`

	// ConsensusThreshold is the stake total that closes the round
	ConsensusThreshold string `json:"consensusThreshold"`

	StartTime          int64 `json:"startTime"`
	EndTime            int64 `json:"endTime"`
	ResultSetStartTime int64 `json:"resultSetStartTime"`
	ResultSetEndTime   int64 `json:"resultSetEndTime"`
}

// Vote is a single stake on an oracle option
type Vote struct {
	Txid          string `json:"txid"`
	BlockNum      uint64 `json:"blockNum"`
	OracleAddress string `json:"oracleAddress"`
	TopicAddress  string `json:"topicAddress,omitempty"`
	Voter         string `json:"voterAddress"`
	OptionIdx     int    `json:"optionIdx"`
	Amount        string `json:"amount"`
	Token         string `json:"token"`
	Version       uint16 `json:"version"`
}

// Order is an exchange order book entry. Amount is the remaining unfilled
// quantity; StartAmount is the quantity at placement. Price carries both the
// exact on-chain rational (PriceMul/PriceDiv) and its decimal rendering.
type Order struct {
	Txid      string      `json:"txid"`
	OrderID   uint64      `json:"orderId"`
	BlockNum  uint64      `json:"blockNum"`
	Time      int64       `json:"time"`
	Owner     string      `json:"owner"`
	SellToken string      `json:"sellToken"`
	BuyToken  string      `json:"buyToken"`
	Status    OrderStatus `json:"status"`
	Side      OrderSide   `json:"orderType"`

	PriceMul string `json:"priceMul"`
	PriceDiv string `json:"priceDiv"`
	Price    string `json:"price"`

	Amount      string `json:"amount"`
	StartAmount string `json:"startAmount"`

	// Token and TokenName identify the non-native leg of the pair
	Token     string `json:"token"`
	TokenName string `json:"tokenName"`
}

// Trade is a recorded fill against an order
type Trade struct {
	Txid         string      `json:"txid"`
	OrderID      uint64      `json:"orderId"`
	BlockNum     uint64      `json:"blockNum"`
	Time         int64       `json:"time"`
	Status       TradeStatus `json:"status"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	SoldTokens   string      `json:"soldTokens"`
	BoughtTokens string      `json:"boughtTokens"`
	Price        string      `json:"price"`
	Side         OrderSide   `json:"orderType"`
	Token        string      `json:"token"`
	TokenName    string      `json:"tokenName"`
	Amount       string      `json:"amount"`
	// Date is the trade time rendered as a calendar day, kept for the
	// trailing-24h market rollups
	Date string `json:"date"`
}

// Transaction is the local ledger record of a submitted transaction. It
// carries everything the follow-up workflow needs to submit the next step
// once an approval confirms.
type Transaction struct {
	Txid        string   `json:"txid"`
	Type        TxType   `json:"type"`
	Status      TxStatus `json:"status"`
	BlockNum    uint64   `json:"blockNum,omitempty"`
	BlockTime   int64    `json:"blockTime,omitempty"`
	CreatedTime int64    `json:"createdTime"`
	Version     uint16   `json:"version"`

	GasLimit uint64 `json:"gasLimit"`
	GasPrice string `json:"gasPrice"`
	GasUsed  uint64 `json:"gasUsed,omitempty"`

	SenderAddress   string `json:"senderAddress"`
	ReceiverAddress string `json:"receiverAddress,omitempty"`
	TopicAddress    string `json:"topicAddress,omitempty"`
	OracleAddress   string `json:"oracleAddress,omitempty"`

	Name      string   `json:"name,omitempty"`
	Options   []string `json:"options,omitempty"`
	OptionIdx *int     `json:"optionIdx,omitempty"`
	Token     string   `json:"token,omitempty"`
	Amount    string   `json:"amount,omitempty"`

	// Event scheduling parameters, present on create-event workflows so the
	// follow-up submission can replay them
	ResultSetterAddress    string `json:"resultSetterAddress,omitempty"`
	BettingStartTime       int64  `json:"bettingStartTime,omitempty"`
	BettingEndTime         int64  `json:"bettingEndTime,omitempty"`
	ResultSettingStartTime int64  `json:"resultSettingStartTime,omitempty"`
	ResultSettingEndTime   int64  `json:"resultSettingEndTime,omitempty"`
}

// FundRedeem is the local ledger record of an exchange deposit or
// withdrawal. Native-coin deposits are plain wallet sends, so their block
// placement is back-computed from wallet confirmations rather than read off
// a contract receipt.
type FundRedeem struct {
	Txid        string         `json:"txid"`
	Type        FundRedeemType `json:"type"`
	Status      TxStatus       `json:"status"`
	Owner       string         `json:"owner"`
	Time        int64          `json:"time,omitempty"`
	CreatedTime int64          `json:"createdTime"`

	// Token and TokenName identify the moved asset
	Token     string `json:"token"`
	TokenName string `json:"tokenName"`
	Amount    string `json:"amount"`

	BlockNum uint64 `json:"blockNum,omitempty"`
	GasUsed  uint64 `json:"gasUsed,omitempty"`
}

// Market is the per-pair statistics row, fully recomputed each sync pass
type Market struct {
	Market    string `json:"market"`
	TokenName string `json:"tokenName"`
	// Price is the lowest active ask, "0" when the book is empty
	Price string `json:"price"`
	// Change is the percent move over the trailing 24 hours
	Change string `json:"change"`
	// Volume is the traded quantity over the trailing 24 hours
	Volume string `json:"volume"`
}

// AddressBalance is one wallet address's token and exchange balances
type AddressBalance struct {
	Address string `json:"address"`
	// Balances maps token symbol to wallet balance
	Balances map[string]string `json:"balances"`
	// ExchangeBalances maps token symbol to balance deposited on the exchange
	ExchangeBalances map[string]string `json:"exchangeBalances"`
}

// SyncInfo is the per-pass snapshot published to API consumers
type SyncInfo struct {
	SyncBlockNum    uint64           `json:"syncBlockNum"`
	SyncBlockTime   int64            `json:"syncBlockTime"`
	SyncPercent     int              `json:"syncPercent"`
	PeerNodeCount   int              `json:"peerNodeCount"`
	AddressBalances []AddressBalance `json:"addressBalances,omitempty"`
}
