package sync

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openpredict/chainsync/internal/constants"
)

// reconcileBalances recomputes on-chain stake totals for every oracle and
// topic address touched during the pass. Calls go out in strict sequential
// batches of the configured width; a batch must fully complete before the
// next one starts, so in-flight load on the node stays bounded. Topics need
// two calls each, so their batch width is halved to hold the total
// constant.
func (s *Syncer) reconcileBalances(ctx context.Context, dirty dirtySet) {
	oracleAddrs := sortedKeys(dirty.oracles)
	topicAddrs := sortedKeys(dirty.topics)

	s.inBatches(ctx, oracleAddrs, s.cfg.RPCBatchSize, func(ctx context.Context, address string) error {
		return s.reconcileOracle(ctx, address)
	})

	topicWidth := s.cfg.RPCBatchSize / 2
	if topicWidth < 1 {
		topicWidth = 1
	}
	s.inBatches(ctx, topicAddrs, topicWidth, func(ctx context.Context, address string) error {
		return s.reconcileTopic(ctx, address)
	})
}

// inBatches runs fn over items in sequential concurrency batches of the
// given width. Per-item failures are logged and do not stop the sweep.
func (s *Syncer) inBatches(ctx context.Context, items []string, width int, fn func(ctx context.Context, item string) error) {
	for start := 0; start < len(items); start += width {
		end := start + width
		if end > len(items) {
			end = len(items)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range items[start:end] {
			g.Go(func() error {
				if err := fn(gctx, item); err != nil {
					s.logger.Error("balance reconciliation failed",
						zap.String("address", item), zap.Error(err))
					s.metrics.StepErrors.WithLabelValues("balances").Inc()
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

// reconcileOracle refreshes one oracle's per-option totals: bet totals for
// the centralized (native-coin) round, vote totals otherwise.
func (s *Syncer) reconcileOracle(ctx context.Context, address string) error {
	oracle, err := s.store.GetOracleByAddress(address)
	if err != nil {
		return err
	}

	n := len(oracle.Options)
	if n == 0 {
		n = len(oracle.Amounts)
	}

	var amounts []string
	if oracle.Token == constants.NativeToken {
		amounts, err = s.chain.GetTotalBets(ctx, address, n)
	} else {
		amounts, err = s.chain.GetTotalVotes(ctx, address, n)
	}
	if err != nil {
		return err
	}

	oracle.Amounts = amounts
	return s.store.PutOracle(oracle)
}

// reconcileTopic refreshes a topic's per-option bet and vote totals; the
// topic contract answers both shapes.
func (s *Syncer) reconcileTopic(ctx context.Context, address string) error {
	topic, err := s.store.GetTopicByAddress(address)
	if err != nil {
		return err
	}

	n := len(topic.Options)
	bets, err := s.chain.GetTotalBets(ctx, address, n)
	if err != nil {
		return err
	}
	votes, err := s.chain.GetTotalVotes(ctx, address, n)
	if err != nil {
		return err
	}

	topic.BetAmounts = bets
	topic.VoteAmounts = votes
	return s.store.PutTopic(topic)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
