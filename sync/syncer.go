// Package sync drives the engine: an infinite polling loop that walks the
// chain in bounded block batches, resolves locally pending items, ingests
// contract events into the store, reconciles on-chain balances for touched
// records, sweeps time-based phase transitions and publishes a sync
// snapshot per pass.
package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openpredict/chainsync/chain"
	"github.com/openpredict/chainsync/decode"
	"github.com/openpredict/chainsync/internal/config"
	"github.com/openpredict/chainsync/internal/constants"
	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/types"
)

// ChainClient is the node RPC surface the syncer consumes
type ChainClient interface {
	GetBlockCount(ctx context.Context) (uint64, error)
	GetBlockHash(ctx context.Context, height uint64) (string, error)
	GetBlock(ctx context.Context, hash string) (*chain.BlockHeader, error)
	GetTransactionReceipt(ctx context.Context, txid string) ([]chain.Receipt, error)
	SearchLogs(ctx context.Context, fromBlock, toBlock uint64, addresses, topics []string) ([]chain.SearchLogEntry, error)
	GetPeerInfo(ctx context.Context) ([]chain.Peer, error)

	GetTotalBets(ctx context.Context, oracleAddress string, numOptions int) ([]string, error)
	GetTotalVotes(ctx context.Context, oracleAddress string, numOptions int) ([]string, error)
	TokenBalanceOf(ctx context.Context, tokenAddress, holder string) (string, error)
	ExchangeBalanceOf(ctx context.Context, exchangeAddress, tokenAddress, holder string) (string, error)
	GetHexAddress(ctx context.Context, address string) (string, error)

	Approve(ctx context.Context, tokenAddress, spender, amount, sender string) (*chain.SentTx, error)
	CreateTopic(ctx context.Context, eventFactoryAddress string, p chain.CreateTopicParams, sender string) (*chain.SentTx, error)
	SetResult(ctx context.Context, oracleAddress string, resultIdx int, sender string) (*chain.SentTx, error)
	Vote(ctx context.Context, oracleAddress string, resultIdx int, amount string, gasLimit uint64, sender string) (*chain.SentTx, error)
}

// Wallet is the signing/submission surface the syncer consumes
type Wallet interface {
	SendToAddress(ctx context.Context, address, amount string) (string, error)
	GetWalletTransaction(ctx context.Context, txid string) (*chain.WalletTx, error)
	ListAddressGroupings(ctx context.Context) ([]chain.AddressAmount, error)
}

// Config holds syncer configuration
type Config struct {
	// BatchSize is the number of blocks per sync batch
	BatchSize uint64
	// RPCBatchSize is the width of reconciliation RPC fan-outs
	RPCBatchSize int
	// Interval is the sleep between full passes
	Interval time.Duration
	// SenderAddress signs submitted transactions
	SenderAddress string
}

// SetDefaults fills zero fields with defaults
func (c *Config) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = constants.BlockBatchSize
	}
	if c.RPCBatchSize == 0 {
		c.RPCBatchSize = constants.RPCBatchSize
	}
	if c.Interval == 0 {
		c.Interval = constants.DefaultSyncInterval
	}
}

// dirtySet tracks the topic and oracle addresses touched during a pass so
// the balance reconciler knows what to recompute. Steps return their own
// set by value; the orchestrator unions them.
type dirtySet struct {
	topics  map[string]struct{}
	oracles map[string]struct{}
}

func newDirtySet() dirtySet {
	return dirtySet{
		topics:  make(map[string]struct{}),
		oracles: make(map[string]struct{}),
	}
}

func (d dirtySet) topic(address string) {
	if address != "" {
		d.topics[address] = struct{}{}
	}
}

func (d dirtySet) oracle(address string) {
	if address != "" {
		d.oracles[address] = struct{}{}
	}
}

func (d dirtySet) union(other dirtySet) {
	for a := range other.topics {
		d.topics[a] = struct{}{}
	}
	for a := range other.oracles {
		d.oracles[a] = struct{}{}
	}
}

// Syncer is the sync orchestrator
type Syncer struct {
	chain     ChainClient
	wallet    Wallet
	store     *store.Store
	contracts *config.ContractMetadata
	cfg       Config
	tokens    decode.TokenTable
	logger    *zap.Logger
	metrics   *Metrics

	// onSyncInfo is invoked with each published snapshot
	onSyncInfo func(types.SyncInfo)
}

// New creates a syncer
func New(chainClient ChainClient, wallet Wallet, st *store.Store, contracts *config.ContractMetadata, cfg Config, logger *zap.Logger) (*Syncer, error) {
	if chainClient == nil || wallet == nil || st == nil {
		return nil, fmt.Errorf("chain client, wallet and store are required")
	}
	if contracts == nil {
		return nil, fmt.Errorf("contract metadata is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.SetDefaults()

	pairs := make(map[string]string, len(contracts.Tokens))
	for _, t := range contracts.Tokens {
		pairs[t.Address] = t.Pair
	}

	return &Syncer{
		chain:     chainClient,
		wallet:    wallet,
		store:     st,
		contracts: contracts,
		cfg:       cfg,
		tokens: decode.TokenTable{
			NativeAddress: constants.ZeroTokenAddress,
			NativeSymbol:  constants.NativeToken,
			Pairs:         pairs,
		},
		logger:  logger,
		metrics: newUnregisteredMetrics(),
	}, nil
}

// UseMetrics swaps in externally registered collectors, typically the set
// NewMetrics puts on the default registry.
func (s *Syncer) UseMetrics(m *Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// OnSyncInfo registers a callback invoked with every published snapshot
func (s *Syncer) OnSyncInfo(fn func(types.SyncInfo)) {
	s.onSyncInfo = fn
}

// Run polls forever with a fixed inter-pass delay until the context is
// canceled. There is no backoff: a pass whose steps all failed sleeps the
// same fixed interval before the next attempt, and repeated failure shows
// up in the step-error metrics rather than the schedule.
func (s *Syncer) Run(ctx context.Context) error {
	s.logger.Info("sync loop starting",
		zap.Uint64("batch_size", s.cfg.BatchSize),
		zap.Duration("interval", s.cfg.Interval))

	for {
		if err := s.runPass(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("sync pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Interval):
		}
	}
}

// runPass walks every unsynced batch up to the current head, then runs the
// pass-scoped work: balance reconciliation for touched records, phase
// sweeps keyed to chain time, and the sync snapshot.
func (s *Syncer) runPass(ctx context.Context) error {
	started := time.Now()

	head, err := s.chain.GetBlockCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain head: %w", err)
	}

	startBlock := s.contracts.ContractDeployedBlock
	if latest, err := s.store.LatestHeight(); err == nil && latest+1 > startBlock {
		startBlock = latest + 1
	}

	dirty := newDirtySet()
	var lastBlock *types.Block

	for from := startBlock; from <= head; from += s.cfg.BatchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		to := from + s.cfg.BatchSize - 1
		if to > head {
			to = head
		}

		batchDirty, batchLast, err := s.syncBatch(ctx, from, to, head)
		if err != nil {
			return fmt.Errorf("batch [%d,%d]: %w", from, to, err)
		}
		dirty.union(batchDirty)
		if batchLast != nil {
			lastBlock = batchLast
		}

		s.logger.Info("batch synced",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Uint64("head", head))
	}

	s.reconcileBalances(ctx, dirty)

	if lastBlock == nil {
		if latest, err := s.store.LatestHeight(); err == nil {
			if b, err := s.store.GetBlock(latest); err == nil {
				lastBlock = &b
			}
		}
	}
	if lastBlock != nil {
		s.sweepPhases(*lastBlock)
		s.publishSyncInfo(ctx, *lastBlock)
	}

	s.metrics.PassDuration.Observe(time.Since(started).Seconds())
	return nil
}

// syncBatch runs one block batch: pending-item resolution first so earlier
// submissions confirm before their events are layered on, then the
// per-event sync steps, market statistics, and finally the Block records
// that advance the high-water mark.
func (s *Syncer) syncBatch(ctx context.Context, from, to, head uint64) (dirtySet, *types.Block, error) {
	dirty := newDirtySet()

	s.resolvePending(ctx, head)

	// Steps are individually fault-isolated: a failing step is logged,
	// counted and skipped for this cycle. A missed event self-heals on the
	// next full resync from the last confirmed block.
	s.runStep(ctx, "topics", dirty, s.syncTopics(from, to))
	s.runStep(ctx, "orders", dirty, s.syncOrders(from, to))
	s.runStep(ctx, "order_cancels", dirty, s.syncOrderCancels(from, to))
	s.runStep(ctx, "order_fulfills", dirty, s.syncOrderFulfills(from, to))
	s.runStep(ctx, "trades", dirty, s.syncTrades(from, to))
	s.runStep(ctx, "market_maker", dirty, s.syncMarketMaker(from, to))

	// Oracle creations touch disjoint records and run concurrently
	s.runSteps(ctx, dirty, map[string]stepFunc{
		"centralized_oracles":   s.syncCentralizedOracles(from, to),
		"decentralized_oracles": s.syncDecentralizedOracles(from, to),
	})

	// Votes, result-sets and final results touch disjoint entities
	s.runSteps(ctx, dirty, map[string]stepFunc{
		"votes":         s.syncVotes(from, to),
		"result_sets":   s.syncResultSets(from, to),
		"final_results": s.syncFinalResults(from, to),
	})

	if err := s.recomputeMarkets(time.Now().Unix()); err != nil {
		s.logger.Error("market recompute failed", zap.Error(err))
		s.metrics.StepErrors.WithLabelValues("markets").Inc()
	}

	blocks, err := s.fetchBlocks(ctx, from, to)
	if err != nil {
		return dirty, nil, err
	}
	if err := s.store.InsertBlocks(blocks); err != nil {
		return dirty, nil, fmt.Errorf("failed to insert blocks: %w", err)
	}
	s.metrics.BlocksSynced.Add(float64(len(blocks)))

	var last *types.Block
	if len(blocks) > 0 {
		last = &blocks[len(blocks)-1]
		s.metrics.SyncHeight.Set(float64(last.Number))
	}
	return dirty, last, nil
}

// stepFunc is one per-event-type sync step. Steps return the dirty set of
// addresses they touched; they never abort the batch.
type stepFunc func(ctx context.Context) (dirtySet, error)

func (s *Syncer) runStep(ctx context.Context, name string, dirty dirtySet, step stepFunc) {
	stepDirty, err := step(ctx)
	if err != nil {
		s.logger.Error("sync step failed", zap.String("step", name), zap.Error(err))
		s.metrics.StepErrors.WithLabelValues(name).Inc()
		return
	}
	dirty.union(stepDirty)
}

// runSteps runs independent steps concurrently and unions their dirty sets
// once all complete. Step failures are contained exactly as in runStep.
func (s *Syncer) runSteps(ctx context.Context, dirty dirtySet, steps map[string]stepFunc) {
	g, gctx := errgroup.WithContext(ctx)

	results := make([]dirtySet, 0, len(steps))
	resultCh := make(chan dirtySet, len(steps))

	for name, step := range steps {
		g.Go(func() error {
			stepDirty, err := step(gctx)
			if err != nil {
				s.logger.Error("sync step failed", zap.String("step", name), zap.Error(err))
				s.metrics.StepErrors.WithLabelValues(name).Inc()
				return nil
			}
			resultCh <- stepDirty
			return nil
		})
	}

	_ = g.Wait()
	close(resultCh)
	for d := range resultCh {
		results = append(results, d)
	}
	for _, d := range results {
		dirty.union(d)
	}
}

// fetchBlocks resolves the hash and timestamp of every block in [from,to],
// issuing lookups in strict sequential batches of the configured width.
func (s *Syncer) fetchBlocks(ctx context.Context, from, to uint64) ([]types.Block, error) {
	count := int(to - from + 1)
	blocks := make([]types.Block, count)

	for start := 0; start < count; start += s.cfg.RPCBatchSize {
		end := start + s.cfg.RPCBatchSize
		if end > count {
			end = count
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			height := from + uint64(i)
			g.Go(func() error {
				hash, err := s.chain.GetBlockHash(gctx, height)
				if err != nil {
					return fmt.Errorf("block %d: %w", height, err)
				}
				header, err := s.chain.GetBlock(gctx, hash)
				if err != nil {
					return fmt.Errorf("block %d: %w", height, err)
				}
				blocks[i] = types.Block{Number: height, Hash: hash, Time: header.Time}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

// sweepPhases runs the three time-keyed bulk updates in their required
// order: opening betting, then closing voting windows, then opening overdue
// centralized result setting, so a record can cross several thresholds in
// one window.
func (s *Syncer) sweepPhases(lastBlock types.Block) {
	moved, err := s.store.SweepBettingOpened(lastBlock.Time)
	if err != nil {
		s.logger.Error("betting sweep failed", zap.Error(err))
		s.metrics.StepErrors.WithLabelValues("sweep_betting").Inc()
	} else if moved > 0 {
		s.logger.Info("betting windows opened", zap.Int("oracles", moved))
	}

	moved, err = s.store.SweepVotingClosed(lastBlock.Time)
	if err != nil {
		s.logger.Error("voting sweep failed", zap.Error(err))
		s.metrics.StepErrors.WithLabelValues("sweep_voting").Inc()
	} else if moved > 0 {
		s.logger.Info("voting windows closed", zap.Int("oracles", moved))
	}

	moved, err = s.store.SweepResultSetClosed(lastBlock.Time, constants.NativeToken)
	if err != nil {
		s.logger.Error("result-set sweep failed", zap.Error(err))
		s.metrics.StepErrors.WithLabelValues("sweep_result_set").Inc()
	} else if moved > 0 {
		s.logger.Info("result setting opened", zap.Int("oracles", moved))
	}
}
