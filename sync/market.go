package sync

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/types"
)

const day = int64(24 * 60 * 60)

// recomputeMarkets rebuilds the per-pair statistics rows from scratch and
// swaps them in wholesale. Price is the lowest active ask, change and
// volume cover the trailing 24 hours of confirmed trades.
func (s *Syncer) recomputeMarkets(now int64) error {
	markets := make([]types.Market, 0, len(s.contracts.Tokens))

	for _, token := range s.contracts.Tokens {
		market, err := s.computeMarket(token.Pair, now)
		if err != nil {
			return fmt.Errorf("market %s: %w", token.Pair, err)
		}
		markets = append(markets, market)
	}

	return s.store.ReplaceMarkets(markets)
}

func (s *Syncer) computeMarket(pair string, now int64) (types.Market, error) {
	market := types.Market{
		Market:    pair,
		TokenName: pair,
		Price:     "0",
		Change:    "0",
		Volume:    "0",
	}

	asks, err := s.store.ListOrders(store.OrderFilter{
		Statuses:  []types.OrderStatus{types.OrderStatusActive},
		TokenName: pair,
		Side:      types.OrderSideSell,
	})
	if err != nil {
		return market, err
	}

	var lowest decimal.Decimal
	haveAsk := false
	for _, ask := range asks {
		price, err := decimal.NewFromString(ask.Price)
		if err != nil {
			continue
		}
		if !haveAsk || price.LessThan(lowest) {
			lowest = price
			haveAsk = true
		}
	}
	if haveAsk {
		market.Price = lowest.String()
	}

	trades, err := s.store.ListTrades(store.TradeFilter{
		TokenName: pair,
		Status:    types.TradeStatusConfirmed,
		Since:     now - day,
	})
	if err != nil {
		return market, err
	}
	if len(trades) == 0 {
		return market, nil
	}

	volume := decimal.Zero
	for _, t := range trades {
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil {
			continue
		}
		volume = volume.Add(amount)
	}
	market.Volume = volume.String()

	// trades come back newest first; change compares the window's first
	// and last fill prices
	newest, errNew := decimal.NewFromString(trades[0].Price)
	oldest, errOld := decimal.NewFromString(trades[len(trades)-1].Price)
	if errNew == nil && errOld == nil && !oldest.IsZero() {
		change := newest.Sub(oldest).Div(oldest).Mul(decimal.NewFromInt(100)).Round(2)
		market.Change = change.String()
	}

	return market, nil
}
