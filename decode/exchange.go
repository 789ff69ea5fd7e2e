package decode

import (
	"fmt"
	"time"

	"github.com/openpredict/chainsync/types"
)

// TokenTable resolves exchange token addresses to market pairs. NativeAddress
// is the zero-address sentinel the exchange uses for the base coin.
type TokenTable struct {
	NativeAddress string
	NativeSymbol  string
	// Pairs maps token contract address to its market pair symbol
	Pairs map[string]string
}

// pairFor returns the market pair of the non-native leg of an order
func (t TokenTable) pairFor(sellToken, buyToken string) (address, pair string, err error) {
	for _, addr := range []string{sellToken, buyToken} {
		if addr == t.NativeAddress {
			continue
		}
		if p, ok := t.Pairs[addr]; ok {
			return addr, p, nil
		}
	}
	return "", "", fmt.Errorf("no listed token in pair %s/%s", sellToken, buyToken)
}

// Order decodes a NewOrder log into an ACTIVE order book entry
func Order(blockNum uint64, txid string, l RawLog, tokens TokenTable) (*types.Order, error) {
	orderID, err := l.Uint64("_id")
	if err != nil {
		return nil, err
	}
	sellToken, err := l.Address("_sellToken")
	if err != nil {
		return nil, err
	}
	buyToken, err := l.Address("_buyToken")
	if err != nil {
		return nil, err
	}
	priceMulInt, err := l.BigInt("_priceMul")
	if err != nil {
		return nil, err
	}
	priceDivInt, err := l.BigInt("_priceDiv")
	if err != nil {
		return nil, err
	}
	amount, err := l.tokenAmountField("_amount")
	if err != nil {
		return nil, err
	}
	owner, err := l.Address("_owner")
	if err != nil {
		return nil, err
	}
	orderTime, err := l.Int64("_time")
	if err != nil {
		return nil, err
	}

	tokenAddr, pair, err := tokens.pairFor(sellToken, buyToken)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", orderID, err)
	}

	priceMul := priceMulInt.String()
	priceDiv := priceDivInt.String()
	price, err := RationalPrice(priceMul, priceDiv)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", orderID, err)
	}

	return &types.Order{
		Txid:        txid,
		OrderID:     orderID,
		BlockNum:    blockNum,
		Time:        orderTime,
		Owner:       owner,
		SellToken:   sellToken,
		BuyToken:    buyToken,
		Status:      types.OrderStatusActive,
		Side:        types.SideForTokens(sellToken == tokens.NativeAddress),
		PriceMul:    priceMul,
		PriceDiv:    priceDiv,
		Price:       price,
		Amount:      amount,
		StartAmount: amount,
		Token:       tokenAddr,
		TokenName:   pair,
	}, nil
}

// OrderRef is the decoded form of the exchange events that carry only an
// order id and a timestamp (OrderCancelled, OrderFulfilled).
type OrderRef struct {
	Txid     string
	BlockNum uint64
	OrderID  uint64
	Time     int64
}

func orderRef(blockNum uint64, txid string, l RawLog) (*OrderRef, error) {
	orderID, err := l.Uint64("_id")
	if err != nil {
		return nil, err
	}
	eventTime, err := l.Int64("_time")
	if err != nil {
		return nil, err
	}
	return &OrderRef{Txid: txid, BlockNum: blockNum, OrderID: orderID, Time: eventTime}, nil
}

// OrderCancellation decodes an OrderCancelled log
func OrderCancellation(blockNum uint64, txid string, l RawLog) (*OrderRef, error) {
	return orderRef(blockNum, txid, l)
}

// OrderFulfillment decodes an OrderFulfilled log
func OrderFulfillment(blockNum uint64, txid string, l RawLog) (*OrderRef, error) {
	return orderRef(blockNum, txid, l)
}

// Trade decodes a Trade log against the order it filled. Price, side and
// token name come from the order; the traded amount is the sold quantity for
// sell orders and the bought quantity for buy orders.
func Trade(blockNum uint64, txid string, l RawLog, order *types.Order) (*types.Trade, error) {
	orderID, err := l.Uint64("_orderId")
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("trade %s: no order context for order %d", txid, orderID)
	}
	if order.OrderID != orderID {
		return nil, fmt.Errorf("trade %s: order context mismatch (%d != %d)", txid, order.OrderID, orderID)
	}
	tradeTime, err := l.Int64("_time")
	if err != nil {
		return nil, err
	}
	from, err := l.Address("_from")
	if err != nil {
		return nil, err
	}
	to, err := l.Address("_to")
	if err != nil {
		return nil, err
	}
	soldTokens, err := l.tokenAmountField("_soldTokens")
	if err != nil {
		return nil, err
	}
	boughtTokens, err := l.tokenAmountField("_boughtTokens")
	if err != nil {
		return nil, err
	}

	amount := boughtTokens
	if order.Side == types.OrderSideSell {
		amount = soldTokens
	}

	return &types.Trade{
		Txid:         txid,
		OrderID:      orderID,
		BlockNum:     blockNum,
		Time:         tradeTime,
		Status:       types.TradeStatusConfirmed,
		From:         from,
		To:           to,
		SoldTokens:   soldTokens,
		BoughtTokens: boughtTokens,
		Price:        order.Price,
		Side:         order.Side,
		Token:        order.Token,
		TokenName:    order.TokenName,
		Amount:       amount,
		Date:         time.Unix(tradeTime, 0).UTC().Format("2006-01-02"),
	}, nil
}

// MarketMaker decodes a MarketMaker liquidity-funding log into a ledger
// Transaction entry.
func MarketMaker(blockNum uint64, txid string, l RawLog, tokens TokenTable) (*types.Transaction, error) {
	fundTime, err := l.Int64("_time")
	if err != nil {
		return nil, err
	}
	amount, err := l.tokenAmountField("_amount")
	if err != nil {
		return nil, err
	}
	token, err := l.Address("_token")
	if err != nil {
		return nil, err
	}
	owner, err := l.Address("_owner")
	if err != nil {
		return nil, err
	}

	symbol := tokens.Pairs[token]
	if token == tokens.NativeAddress {
		symbol = tokens.NativeSymbol
	}

	return &types.Transaction{
		Txid:          txid,
		Type:          types.TxTypeFundExchange,
		Status:        types.TxStatusSuccess,
		BlockNum:      blockNum,
		BlockTime:     fundTime,
		CreatedTime:   fundTime,
		SenderAddress: owner,
		Token:         symbol,
		Amount:        amount,
	}, nil
}
