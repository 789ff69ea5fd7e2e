package sync

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openpredict/chainsync/chain"
	"github.com/openpredict/chainsync/internal/constants"
	"github.com/openpredict/chainsync/types"
)

// publishSyncInfo assembles the per-pass snapshot, persists it and hands it
// to the registered listener. Any piece that cannot be fetched is left at
// its zero value; the snapshot always goes out.
func (s *Syncer) publishSyncInfo(ctx context.Context, lastBlock types.Block) {
	info := types.SyncInfo{
		SyncBlockNum:  lastBlock.Number,
		SyncBlockTime: lastBlock.Time,
	}

	var bestHeader int64
	peers, err := s.chain.GetPeerInfo(ctx)
	if err != nil {
		s.logger.Warn("peer info unavailable", zap.Error(err))
	} else {
		info.PeerNodeCount = len(peers)
		for _, p := range peers {
			if p.SyncedHeaders > bestHeader {
				bestHeader = p.SyncedHeaders
			}
		}
	}

	info.SyncPercent = s.syncPercent(lastBlock, bestHeader, time.Now().Unix())
	s.metrics.SyncPercent.Set(float64(info.SyncPercent))

	balances, err := s.fetchAddressBalances(ctx)
	if err != nil {
		s.logger.Warn("wallet balances unavailable", zap.Error(err))
	} else {
		info.AddressBalances = balances
	}

	if err := s.store.PutSyncInfo(info); err != nil {
		s.logger.Error("failed to persist sync info", zap.Error(err))
	}
	if s.onSyncInfo != nil {
		s.onSyncInfo(info)
	}
}

// syncPercent estimates sync progress from peer headers when available;
// otherwise from chain time, treating a tip younger than the staleness
// threshold as fully synced.
func (s *Syncer) syncPercent(lastBlock types.Block, bestHeader int64, now int64) int {
	if bestHeader > 0 {
		pct := int(lastBlock.Number * 100 / uint64(bestHeader))
		if pct > 100 {
			pct = 100
		}
		return pct
	}

	if now-lastBlock.Time < constants.SyncThresholdSecs {
		return 100
	}
	elapsed := now - s.contracts.Block0Timestamp
	if elapsed <= 0 {
		return 0
	}
	pct := int((lastBlock.Time - s.contracts.Block0Timestamp) * 100 / elapsed)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// fetchAddressBalances collects each wallet address's native balance from
// the wallet plus its token and exchange balances from the contracts, with
// the contract lookups in strict sequential batches.
func (s *Syncer) fetchAddressBalances(ctx context.Context) ([]types.AddressBalance, error) {
	groupings, err := s.wallet.ListAddressGroupings(ctx)
	if err != nil {
		return nil, err
	}
	if len(groupings) == 0 {
		return nil, nil
	}

	balances := make([]types.AddressBalance, len(groupings))

	for start := 0; start < len(groupings); start += s.cfg.RPCBatchSize {
		end := start + s.cfg.RPCBatchSize
		if end > len(groupings) {
			end = len(groupings)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			entry := groupings[i]
			idx := i
			g.Go(func() error {
				balances[idx] = s.addressBalance(gctx, entry)
				return nil
			})
		}
		_ = g.Wait()
	}

	return balances, nil
}

// addressBalance resolves one address's balances. Individual lookup
// failures leave that token's entry out rather than dropping the address.
func (s *Syncer) addressBalance(ctx context.Context, entry chain.AddressAmount) types.AddressBalance {
	balance := types.AddressBalance{
		Address:          entry.Address,
		Balances:         map[string]string{constants.NativeToken: entry.Amount},
		ExchangeBalances: map[string]string{},
	}

	hexAddr, err := s.chain.GetHexAddress(ctx, entry.Address)
	if err != nil {
		s.logger.Warn("hex address lookup failed",
			zap.String("address", entry.Address), zap.Error(err))
		return balance
	}

	if native, err := s.chain.ExchangeBalanceOf(ctx, s.contracts.Exchange.Address, constants.ZeroTokenAddress, hexAddr); err == nil {
		balance.ExchangeBalances[constants.NativeToken] = native
	}

	for _, token := range s.contracts.Tokens {
		if held, err := s.chain.TokenBalanceOf(ctx, token.Address, hexAddr); err == nil {
			balance.Balances[token.Pair] = held
		}
		if deposited, err := s.chain.ExchangeBalanceOf(ctx, s.contracts.Exchange.Address, token.Address, hexAddr); err == nil {
			balance.ExchangeBalances[token.Pair] = deposited
		}
	}

	return balance
}
