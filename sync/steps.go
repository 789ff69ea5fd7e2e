package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/openpredict/chainsync/decode"
	"github.com/openpredict/chainsync/internal/constants"
	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/types"
)

// searchEvents fetches all logs of one event signature in the batch window
// and yields each matching raw log with its block/tx context. Decode
// failures drop the single record, never the batch.
func (s *Syncer) searchEvents(ctx context.Context, from, to uint64, addresses []string, sig, eventName string,
	handle func(blockNum uint64, txid string, l decode.RawLog) error) error {

	entries, err := s.chain.SearchLogs(ctx, from, to, addresses, []string{sig})
	if err != nil {
		return err
	}

	for _, entry := range entries {
		for _, raw := range entry.Log {
			if raw.Empty() || raw.EventName() != eventName {
				continue
			}
			if err := handle(entry.BlockNumber, entry.TransactionHash, raw); err != nil {
				s.logger.Error("event handling failed",
					zap.String("event", eventName),
					zap.String("txid", entry.TransactionHash),
					zap.Error(err))
				s.metrics.RecordErrors.WithLabelValues(eventName).Inc()
			}
		}
	}
	return nil
}

func (s *Syncer) syncTopics(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		dirty := newDirtySet()
		err := s.searchEvents(ctx, from, to,
			[]string{s.contracts.EventFactory.Address},
			s.contracts.EventFactory.TopicCreated, "TopicCreated",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				topic, err := decode.Topic(blockNum, txid, l)
				if err != nil {
					return err
				}
				if err := s.store.MergeTopic(topic); err != nil {
					return err
				}
				dirty.topic(topic.Address)
				return nil
			})
		return dirty, err
	}
}

func (s *Syncer) syncCentralizedOracles(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		dirty := newDirtySet()
		err := s.searchEvents(ctx, from, to,
			[]string{s.contracts.OracleFactory.Address},
			s.contracts.OracleFactory.CentralizedOracleCreated, "CentralizedOracleCreated",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				oracle, err := decode.CentralizedOracle(blockNum, txid, l, constants.NativeToken)
				if err != nil {
					return err
				}
				if err := s.adoptTopicMetadata(oracle); err != nil {
					return err
				}
				if err := s.store.MergeOracle(oracle); err != nil {
					return err
				}
				dirty.oracle(oracle.Address)
				return nil
			})
		return dirty, err
	}
}

func (s *Syncer) syncDecentralizedOracles(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		dirty := newDirtySet()
		err := s.searchEvents(ctx, from, to,
			[]string{s.contracts.OracleFactory.Address},
			s.contracts.OracleFactory.DecentralizedOracleCreated, "DecentralizedOracleCreated",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				oracle, err := decode.DecentralizedOracle(blockNum, txid, l, constants.PredToken)
				if err != nil {
					return err
				}
				if err := s.adoptTopicMetadata(oracle); err != nil {
					return err
				}
				if err := s.store.MergeOracle(oracle); err != nil {
					return err
				}
				dirty.oracle(oracle.Address)
				return nil
			})
		return dirty, err
	}
}

// adoptTopicMetadata copies the owning topic's name and options onto a
// freshly decoded oracle. A missing topic is a consistency failure: the
// oracle is skipped this cycle and lands once the topic has.
func (s *Syncer) adoptTopicMetadata(oracle *types.Oracle) error {
	topic, err := s.store.GetTopicByAddress(oracle.TopicAddress)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("oracle %s: owning topic %s not in store yet", oracle.Address, oracle.TopicAddress)
		}
		return err
	}
	oracle.Name = topic.Name
	oracle.Options = topic.Options
	return nil
}

func (s *Syncer) syncVotes(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		dirty := newDirtySet()
		err := s.searchEvents(ctx, from, to,
			nil, s.contracts.Oracle.OracleResultVoted, "OracleResultVoted",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				vote, err := decode.Vote(blockNum, txid, l)
				if err != nil {
					return err
				}
				oracle, err := s.store.GetOracleByAddress(vote.OracleAddress)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("vote %s: oracle %s not in store yet", txid, vote.OracleAddress)
					}
					return err
				}
				vote.Token = oracle.Token
				vote.TopicAddress = oracle.TopicAddress
				if err := s.store.MergeVote(vote); err != nil {
					return err
				}
				dirty.oracle(oracle.Address)
				dirty.topic(oracle.TopicAddress)
				return nil
			})
		return dirty, err
	}
}

func (s *Syncer) syncResultSets(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		dirty := newDirtySet()
		err := s.searchEvents(ctx, from, to,
			nil, s.contracts.Oracle.OracleResultSet, "OracleResultSet",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				rs, err := decode.OracleResultSet(blockNum, txid, l)
				if err != nil {
					return err
				}
				if err := s.store.SetOracleResult(rs.OracleAddress, rs.ResultIdx); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("result set %s: oracle %s not in store yet", txid, rs.OracleAddress)
					}
					return err
				}
				dirty.oracle(rs.OracleAddress)
				return nil
			})
		return dirty, err
	}
}

func (s *Syncer) syncFinalResults(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		dirty := newDirtySet()
		err := s.searchEvents(ctx, from, to,
			nil, s.contracts.TopicEvent.FinalResultSet, "FinalResultSet",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				fr, err := decode.FinalResultSet(blockNum, txid, l)
				if err != nil {
					return err
				}
				if err := s.store.FinalizeTopic(fr.TopicAddress, fr.ResultIdx); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("final result %s: topic %s not in store yet", txid, fr.TopicAddress)
					}
					return err
				}
				dirty.topic(fr.TopicAddress)
				return nil
			})
		return dirty, err
	}
}

func (s *Syncer) syncOrders(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		err := s.searchEvents(ctx, from, to,
			[]string{s.contracts.Exchange.Address},
			s.contracts.Exchange.NewOrder, "NewOrder",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				order, err := decode.Order(blockNum, txid, l, s.tokens)
				if err != nil {
					return err
				}
				return s.store.MergeOrder(order)
			})
		return newDirtySet(), err
	}
}

func (s *Syncer) syncOrderCancels(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		err := s.searchEvents(ctx, from, to,
			[]string{s.contracts.Exchange.Address},
			s.contracts.Exchange.OrderCancelled, "OrderCancelled",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				ref, err := decode.OrderCancellation(blockNum, txid, l)
				if err != nil {
					return err
				}
				_, err = s.store.UpdateOrderStatus(ref.OrderID, types.OrderStatusCanceled)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("cancel %s: order %d not in store yet", txid, ref.OrderID)
				}
				return err
			})
		return newDirtySet(), err
	}
}

func (s *Syncer) syncOrderFulfills(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		err := s.searchEvents(ctx, from, to,
			[]string{s.contracts.Exchange.Address},
			s.contracts.Exchange.OrderFulfilled, "OrderFulfilled",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				ref, err := decode.OrderFulfillment(blockNum, txid, l)
				if err != nil {
					return err
				}
				_, err = s.store.UpdateOrderStatus(ref.OrderID, types.OrderStatusFulfilled)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("fulfill %s: order %d not in store yet", txid, ref.OrderID)
				}
				return err
			})
		return newDirtySet(), err
	}
}

func (s *Syncer) syncTrades(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		err := s.searchEvents(ctx, from, to,
			[]string{s.contracts.Exchange.Address},
			s.contracts.Exchange.Trade, "Trade",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				orderID, err := l.Uint64("_orderId")
				if err != nil {
					return err
				}
				order, err := s.store.GetOrderByOrderID(orderID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("trade %s: order %d not in store yet", txid, orderID)
					}
					return err
				}

				trade, err := decode.Trade(blockNum, txid, l, order)
				if err != nil {
					return err
				}

				inserted, err := s.store.MergeTrade(trade)
				if err != nil {
					return err
				}
				if !inserted {
					// replayed trade: the order was already decremented
					return nil
				}

				if _, err := s.store.FillOrder(orderID, trade.Amount); err != nil {
					if errors.Is(err, store.ErrAmountConflict) {
						// The trade row stays as the audit trail; the
						// order amount is left untouched and flagged.
						s.metrics.AmountConflicts.Inc()
						s.logger.Error("trade exceeds order remaining amount",
							zap.String("txid", txid),
							zap.Uint64("order_id", orderID),
							zap.String("trade_amount", trade.Amount))
						return nil
					}
					return err
				}
				return nil
			})
		return newDirtySet(), err
	}
}

func (s *Syncer) syncMarketMaker(from, to uint64) stepFunc {
	return func(ctx context.Context) (dirtySet, error) {
		err := s.searchEvents(ctx, from, to,
			[]string{s.contracts.Exchange.Address},
			s.contracts.Exchange.MarketMaker, "MarketMaker",
			func(blockNum uint64, txid string, l decode.RawLog) error {
				tx, err := decode.MarketMaker(blockNum, txid, l, s.tokens)
				if err != nil {
					return err
				}
				return s.store.MergeTransaction(tx)
			})
		return newDirtySet(), err
	}
}
