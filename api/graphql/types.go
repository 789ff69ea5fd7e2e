package graphql

import (
	"sort"

	"github.com/graphql-go/graphql"

	"github.com/openpredict/chainsync/types"
)

// balanceEntry is the list rendering of a symbol-to-amount balance map
type balanceEntry struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func balanceEntries(m map[string]string) []balanceEntry {
	out := make([]balanceEntry, 0, len(m))
	for token, amount := range m {
		out = append(out, balanceEntry{Token: token, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

var balanceEntryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "BalanceEntry",
	Fields: graphql.Fields{
		"token":  &graphql.Field{Type: graphql.String},
		"amount": &graphql.Field{Type: graphql.String},
	},
})

var addressBalanceType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AddressBalance",
	Fields: graphql.Fields{
		"address": &graphql.Field{Type: graphql.String},
		"balances": &graphql.Field{
			Type: graphql.NewList(balanceEntryType),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if b, ok := p.Source.(types.AddressBalance); ok {
					return balanceEntries(b.Balances), nil
				}
				return nil, nil
			},
		},
		"exchangeBalances": &graphql.Field{
			Type: graphql.NewList(balanceEntryType),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if b, ok := p.Source.(types.AddressBalance); ok {
					return balanceEntries(b.ExchangeBalances), nil
				}
				return nil, nil
			},
		},
	},
})

var syncInfoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SyncInfo",
	Fields: graphql.Fields{
		"syncBlockNum":    &graphql.Field{Type: graphql.Int},
		"syncBlockTime":   &graphql.Field{Type: graphql.Int},
		"syncPercent":     &graphql.Field{Type: graphql.Int},
		"peerNodeCount":   &graphql.Field{Type: graphql.Int},
		"addressBalances": &graphql.Field{Type: graphql.NewList(addressBalanceType)},
	},
})

var topicType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Topic",
	Fields: graphql.Fields{
		"txid":           &graphql.Field{Type: graphql.String},
		"blockNum":       &graphql.Field{Type: graphql.Int},
		"address":        &graphql.Field{Type: graphql.String},
		"creatorAddress": &graphql.Field{Type: graphql.String},
		"version":        &graphql.Field{Type: graphql.Int},
		"name":           &graphql.Field{Type: graphql.String},
		"options":        &graphql.Field{Type: graphql.NewList(graphql.String)},
		"status":         &graphql.Field{Type: graphql.String},
		"resultIdx":      &graphql.Field{Type: graphql.Int},
		"betAmounts":     &graphql.Field{Type: graphql.NewList(graphql.String)},
		"voteAmounts":    &graphql.Field{Type: graphql.NewList(graphql.String)},
	},
})

var oracleType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Oracle",
	Fields: graphql.Fields{
		"txid":                &graphql.Field{Type: graphql.String},
		"blockNum":            &graphql.Field{Type: graphql.Int},
		"address":             &graphql.Field{Type: graphql.String},
		"topicAddress":        &graphql.Field{Type: graphql.String},
		"version":             &graphql.Field{Type: graphql.Int},
		"name":                &graphql.Field{Type: graphql.String},
		"options":             &graphql.Field{Type: graphql.NewList(graphql.String)},
		"resultSetterAddress": &graphql.Field{Type: graphql.String},
		"optionIdxs":          &graphql.Field{Type: graphql.NewList(graphql.Int)},
		"status":              &graphql.Field{Type: graphql.String},
		"token":               &graphql.Field{Type: graphql.String},
		"resultIdx":           &graphql.Field{Type: graphql.Int},
		"amounts":             &graphql.Field{Type: graphql.NewList(graphql.String)},
		"consensusThreshold":  &graphql.Field{Type: graphql.String},
		"startTime":           &graphql.Field{Type: graphql.Int},
		"endTime":             &graphql.Field{Type: graphql.Int},
		"resultSetStartTime":  &graphql.Field{Type: graphql.Int},
		"resultSetEndTime":    &graphql.Field{Type: graphql.Int},
	},
})

var voteType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Vote",
	Fields: graphql.Fields{
		"txid":          &graphql.Field{Type: graphql.String},
		"blockNum":      &graphql.Field{Type: graphql.Int},
		"oracleAddress": &graphql.Field{Type: graphql.String},
		"topicAddress":  &graphql.Field{Type: graphql.String},
		"voterAddress":  &graphql.Field{Type: graphql.String},
		"optionIdx":     &graphql.Field{Type: graphql.Int},
		"amount":        &graphql.Field{Type: graphql.String},
		"token":         &graphql.Field{Type: graphql.String},
		"version":       &graphql.Field{Type: graphql.Int},
	},
})

var orderType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Order",
	Fields: graphql.Fields{
		"txid":        &graphql.Field{Type: graphql.String},
		"orderId":     &graphql.Field{Type: graphql.Int},
		"blockNum":    &graphql.Field{Type: graphql.Int},
		"time":        &graphql.Field{Type: graphql.Int},
		"owner":       &graphql.Field{Type: graphql.String},
		"sellToken":   &graphql.Field{Type: graphql.String},
		"buyToken":    &graphql.Field{Type: graphql.String},
		"status":      &graphql.Field{Type: graphql.String},
		"orderType":   &graphql.Field{Type: graphql.String},
		"priceMul":    &graphql.Field{Type: graphql.String},
		"priceDiv":    &graphql.Field{Type: graphql.String},
		"price":       &graphql.Field{Type: graphql.String},
		"amount":      &graphql.Field{Type: graphql.String},
		"startAmount": &graphql.Field{Type: graphql.String},
		"token":       &graphql.Field{Type: graphql.String},
		"tokenName":   &graphql.Field{Type: graphql.String},
	},
})

var tradeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Trade",
	Fields: graphql.Fields{
		"txid":         &graphql.Field{Type: graphql.String},
		"orderId":      &graphql.Field{Type: graphql.Int},
		"blockNum":     &graphql.Field{Type: graphql.Int},
		"time":         &graphql.Field{Type: graphql.Int},
		"status":       &graphql.Field{Type: graphql.String},
		"from":         &graphql.Field{Type: graphql.String},
		"to":           &graphql.Field{Type: graphql.String},
		"soldTokens":   &graphql.Field{Type: graphql.String},
		"boughtTokens": &graphql.Field{Type: graphql.String},
		"price":        &graphql.Field{Type: graphql.String},
		"orderType":    &graphql.Field{Type: graphql.String},
		"token":        &graphql.Field{Type: graphql.String},
		"tokenName":    &graphql.Field{Type: graphql.String},
		"amount":       &graphql.Field{Type: graphql.String},
		"date":         &graphql.Field{Type: graphql.String},
	},
})

var transactionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Transaction",
	Fields: graphql.Fields{
		"txid":            &graphql.Field{Type: graphql.String},
		"type":            &graphql.Field{Type: graphql.String},
		"status":          &graphql.Field{Type: graphql.String},
		"blockNum":        &graphql.Field{Type: graphql.Int},
		"blockTime":       &graphql.Field{Type: graphql.Int},
		"createdTime":     &graphql.Field{Type: graphql.Int},
		"version":         &graphql.Field{Type: graphql.Int},
		"gasLimit":        &graphql.Field{Type: graphql.Int},
		"gasPrice":        &graphql.Field{Type: graphql.String},
		"gasUsed":         &graphql.Field{Type: graphql.Int},
		"senderAddress":   &graphql.Field{Type: graphql.String},
		"receiverAddress": &graphql.Field{Type: graphql.String},
		"topicAddress":    &graphql.Field{Type: graphql.String},
		"oracleAddress":   &graphql.Field{Type: graphql.String},
		"name":            &graphql.Field{Type: graphql.String},
		"options":         &graphql.Field{Type: graphql.NewList(graphql.String)},
		"optionIdx":       &graphql.Field{Type: graphql.Int},
		"token":           &graphql.Field{Type: graphql.String},
		"amount":          &graphql.Field{Type: graphql.String},
		"resultSetterAddress":    &graphql.Field{Type: graphql.String},
		"bettingStartTime":       &graphql.Field{Type: graphql.Int},
		"bettingEndTime":         &graphql.Field{Type: graphql.Int},
		"resultSettingStartTime": &graphql.Field{Type: graphql.Int},
		"resultSettingEndTime":   &graphql.Field{Type: graphql.Int},
	},
})

var fundRedeemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "FundRedeem",
	Fields: graphql.Fields{
		"txid":        &graphql.Field{Type: graphql.String},
		"type":        &graphql.Field{Type: graphql.String},
		"status":      &graphql.Field{Type: graphql.String},
		"owner":       &graphql.Field{Type: graphql.String},
		"time":        &graphql.Field{Type: graphql.Int},
		"createdTime": &graphql.Field{Type: graphql.Int},
		"token":       &graphql.Field{Type: graphql.String},
		"tokenName":   &graphql.Field{Type: graphql.String},
		"amount":      &graphql.Field{Type: graphql.String},
		"blockNum":    &graphql.Field{Type: graphql.Int},
		"gasUsed":     &graphql.Field{Type: graphql.Int},
	},
})

var marketType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Market",
	Fields: graphql.Fields{
		"market":    &graphql.Field{Type: graphql.String},
		"tokenName": &graphql.Field{Type: graphql.String},
		"price":     &graphql.Field{Type: graphql.String},
		"change":    &graphql.Field{Type: graphql.String},
		"volume":    &graphql.Field{Type: graphql.String},
	},
})
