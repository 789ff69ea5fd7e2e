package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/openpredict/chainsync/types"
)

// GetOrder returns the order record with the given txid
func (s *Store) GetOrder(txid string) (*types.Order, error) {
	var o types.Order
	if err := s.getJSON(OrderKey(txid), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderByOrderID resolves an order through its on-chain order id index
func (s *Store) GetOrderByOrderID(orderID uint64) (*types.Order, error) {
	txid, err := s.getRaw(OrderIDIndexKey(orderID))
	if err != nil {
		return nil, err
	}
	return s.GetOrder(string(txid))
}

// MergeOrder upserts an order by txid. The remaining amount on an existing
// record belongs to the trade stream, so a replayed creation event never
// resets it; status moves forward only.
func (s *Store) MergeOrder(o *types.Order) error {
	existing, err := s.GetOrder(o.Txid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	merged := *o
	if existing != nil {
		if merged.Status != existing.Status && !existing.Status.CanTransition(merged.Status) {
			merged.Status = existing.Status
		}
		if existing.Amount != "" {
			merged.Amount = existing.Amount
		}
	}

	return s.putOrder(&merged)
}

// PutOrder overwrites an order record wholesale
func (s *Store) PutOrder(o *types.Order) error {
	return s.putOrder(o)
}

func (s *Store) putOrder(o *types.Order) error {
	if err := s.putJSON(OrderKey(o.Txid), o); err != nil {
		return err
	}
	if o.OrderID != 0 {
		return s.putRaw(OrderIDIndexKey(o.OrderID), []byte(o.Txid))
	}
	return nil
}

// RepointOrder re-keys an order to a new txid, as when a cancel submission
// becomes the record's pending transaction. The order-id index follows.
func (s *Store) RepointOrder(oldTxid, newTxid string) error {
	o, err := s.GetOrder(oldTxid)
	if err != nil {
		return err
	}
	o.Txid = newTxid
	if err := s.putOrder(o); err != nil {
		return err
	}
	return s.delete(OrderKey(oldTxid))
}

// UpdateOrderStatus moves the order with the given on-chain id to a new
// status, enforcing the forward-only transition graph.
func (s *Store) UpdateOrderStatus(orderID uint64, status types.OrderStatus) (*types.Order, error) {
	o, err := s.GetOrderByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}
	if !o.Status.CanTransition(status) {
		return nil, fmt.Errorf("order %d: illegal status transition %s -> %s", orderID, o.Status, status)
	}
	o.Status = status
	if err := s.putOrder(o); err != nil {
		return nil, err
	}
	return o, nil
}

// FillOrder decrements an order's remaining amount by a traded quantity. A
// quantity exceeding the recorded remainder means a prior update was missed;
// the fill is rejected with ErrAmountConflict and the order left untouched
// rather than clamped.
func (s *Store) FillOrder(orderID uint64, quantity string) (*types.Order, error) {
	o, err := s.GetOrderByOrderID(orderID)
	if err != nil {
		return nil, err
	}

	remaining, err := decimal.NewFromString(o.Amount)
	if err != nil {
		return nil, fmt.Errorf("order %d: corrupt amount %q: %w", orderID, o.Amount, err)
	}
	qty, err := decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("order %d: invalid fill quantity %q: %w", orderID, quantity, err)
	}

	next := remaining.Sub(qty)
	if next.IsNegative() {
		return o, fmt.Errorf("order %d: fill %s against remaining %s: %w",
			orderID, quantity, o.Amount, ErrAmountConflict)
	}

	o.Amount = next.String()
	if err := s.putOrder(o); err != nil {
		return nil, err
	}
	return o, nil
}

// OrderFilter narrows ListOrders results
type OrderFilter struct {
	Statuses  []types.OrderStatus
	Owner     string
	TokenName string
	Side      types.OrderSide
	Limit     int
	Offset    int
}

// ListOrders returns orders matching the filter, newest block first
func (s *Store) ListOrders(filter OrderFilter) ([]*types.Order, error) {
	var out []*types.Order
	err := s.forEach(prefixOrders, func(val []byte) (bool, error) {
		var o types.Order
		if err := json.Unmarshal(val, &o); err != nil {
			return false, fmt.Errorf("corrupt order record: %w", err)
		}
		if !matchOrderStatus(filter.Statuses, o.Status) {
			return true, nil
		}
		if filter.Owner != "" && o.Owner != filter.Owner {
			return true, nil
		}
		if filter.TokenName != "" && o.TokenName != filter.TokenName {
			return true, nil
		}
		if filter.Side != "" && o.Side != filter.Side {
			return true, nil
		}
		out = append(out, &o)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNum != out[j].BlockNum {
			return out[i].BlockNum > out[j].BlockNum
		}
		return out[i].Txid < out[j].Txid
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

// FindPendingOrders returns orders awaiting local confirmation
func (s *Store) FindPendingOrders() ([]*types.Order, error) {
	return s.ListOrders(OrderFilter{
		Statuses: []types.OrderStatus{types.OrderStatusPending, types.OrderStatusPendingCancel},
	})
}

func matchOrderStatus(want []types.OrderStatus, got types.OrderStatus) bool {
	if len(want) == 0 {
		return true
	}
	for _, st := range want {
		if st == got {
			return true
		}
	}
	return false
}

// MergeTrade inserts a trade if its txid is unseen and reports whether the
// insert happened. Callers decrement the filled order only on first insert,
// which keeps batch replays from double-filling.
func (s *Store) MergeTrade(t *types.Trade) (bool, error) {
	var existing types.Trade
	err := s.getJSON(TradeKey(t.Txid), &existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := s.putJSON(TradeKey(t.Txid), t); err != nil {
		return false, err
	}
	return true, nil
}

// PutTrade overwrites a trade record wholesale
func (s *Store) PutTrade(t *types.Trade) error {
	return s.putJSON(TradeKey(t.Txid), t)
}

// GetTrade returns the trade record with the given txid
func (s *Store) GetTrade(txid string) (*types.Trade, error) {
	var t types.Trade
	if err := s.getJSON(TradeKey(txid), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TradeFilter narrows ListTrades results
type TradeFilter struct {
	OrderID   uint64
	TokenName string
	Status    types.TradeStatus
	// Since keeps only trades at or after this unix time
	Since  int64
	Limit  int
	Offset int
}

// ListTrades returns trades matching the filter, newest first
func (s *Store) ListTrades(filter TradeFilter) ([]*types.Trade, error) {
	var out []*types.Trade
	err := s.forEach(prefixTrades, func(val []byte) (bool, error) {
		var t types.Trade
		if err := json.Unmarshal(val, &t); err != nil {
			return false, fmt.Errorf("corrupt trade record: %w", err)
		}
		if filter.OrderID != 0 && t.OrderID != filter.OrderID {
			return true, nil
		}
		if filter.TokenName != "" && t.TokenName != filter.TokenName {
			return true, nil
		}
		if filter.Status != "" && t.Status != filter.Status {
			return true, nil
		}
		if filter.Since != 0 && t.Time < filter.Since {
			return true, nil
		}
		out = append(out, &t)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		return out[i].Txid < out[j].Txid
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

// ReplaceMarkets swaps the whole market statistics collection for the
// freshly computed rows in one atomic batch. Markets are derived data and
// are never partially updated.
func (s *Store) ReplaceMarkets(markets []types.Market) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.DeleteRange([]byte(prefixMarkets), prefixUpperBound(prefixMarkets), nil); err != nil {
		return fmt.Errorf("failed to clear markets: %w", err)
	}
	for _, m := range markets {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode market %s: %w", m.Market, err)
		}
		if err := batch.Set(MarketKey(m.Market), data, nil); err != nil {
			return fmt.Errorf("failed to batch market %s: %w", m.Market, err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit markets: %w", err)
	}
	return nil
}

// ListMarkets returns all market rows sorted by pair
func (s *Store) ListMarkets() ([]*types.Market, error) {
	var out []*types.Market
	err := s.forEach(prefixMarkets, func(val []byte) (bool, error) {
		var m types.Market
		if err := json.Unmarshal(val, &m); err != nil {
			return false, fmt.Errorf("corrupt market record: %w", err)
		}
		out = append(out, &m)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMarket returns one market row by pair
func (s *Store) GetMarket(pair string) (*types.Market, error) {
	var m types.Market
	if err := s.getJSON(MarketKey(pair), &m); err != nil {
		return nil, err
	}
	return &m, nil
}
