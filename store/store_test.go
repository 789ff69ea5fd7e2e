package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpredict/chainsync/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenValidation(t *testing.T) {
	_, err := Open(&Config{})
	assert.Error(t, err)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(&Config{Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.GetTopic("tx1")
	assert.ErrorIs(t, err, ErrClosed)
	err = s.InsertBlock(types.Block{Number: 1})
	assert.ErrorIs(t, err, ErrClosed)

	// double close is a no-op
	assert.NoError(t, s.Close())
}

func TestBlocksAndLatestHeight(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestHeight()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.InsertBlock(types.Block{Number: 100, Time: 1000}))
	require.NoError(t, s.InsertBlocks([]types.Block{
		{Number: 101, Time: 1010},
		{Number: 102, Time: 1020},
	}))

	height, err := s.LatestHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(102), height)

	// replaying an old block never lowers the high-water mark
	require.NoError(t, s.InsertBlock(types.Block{Number: 100, Time: 1000}))
	height, err = s.LatestHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(102), height)

	b, err := s.GetBlock(101)
	require.NoError(t, err)
	assert.Equal(t, int64(1010), b.Time)
}

func testTopic(txid string) *types.Topic {
	return &types.Topic{
		Txid:        txid,
		BlockNum:    500,
		Address:     "aa01",
		Creator:     "bb01",
		Name:        "test topic",
		Options:     []string{"A", "B"},
		Status:      types.PhaseVoting,
		BetAmounts:  []string{"0", "0"},
		VoteAmounts: []string{"0", "0"},
	}
}

func TestMergeTopicIdempotent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MergeTopic(testTopic("tx1")))
	require.NoError(t, s.MergeTopic(testTopic("tx1")))

	topics, err := s.ListTopics(TopicFilter{})
	require.NoError(t, err)
	require.Len(t, topics, 1)

	byAddr, err := s.GetTopicByAddress("aa01")
	require.NoError(t, err)
	assert.Equal(t, "tx1", byAddr.Txid)
}

func TestMergeTopicPreservesProgress(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MergeTopic(testTopic("tx1")))

	// reconciler writes totals, sweeper advances status
	stored, err := s.GetTopic("tx1")
	require.NoError(t, err)
	stored.Status = types.PhaseWaitResult
	stored.BetAmounts = []string{"3", "4"}
	one := 1
	stored.ResultIdx = &one
	require.NoError(t, s.PutTopic(stored))

	// replayed creation event must not regress any of it
	require.NoError(t, s.MergeTopic(testTopic("tx1")))

	got, err := s.GetTopic("tx1")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseWaitResult, got.Status)
	assert.Equal(t, []string{"3", "4"}, got.BetAmounts)
	require.NotNil(t, got.ResultIdx)
	assert.Equal(t, 1, *got.ResultIdx)
}

func TestRepointTopic(t *testing.T) {
	s := openTestStore(t)

	spec := testTopic("approval-txid")
	spec.Address = ""
	spec.Status = types.PhasePending
	require.NoError(t, s.MergeTopic(spec))

	require.NoError(t, s.RepointTopic("approval-txid", "action-txid"))

	_, err := s.GetTopic("approval-txid")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.GetTopic("action-txid")
	require.NoError(t, err)
	assert.Equal(t, "action-txid", got.Txid)
}

func TestDeleteTopic(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MergeTopic(testTopic("tx1")))

	require.NoError(t, s.DeleteTopic("tx1"))
	_, err := s.GetTopic("tx1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTopicByAddress("aa01")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing record is a no-op
	assert.NoError(t, s.DeleteTopic("tx1"))
}

func testOracle(txid, address string, token string) *types.Oracle {
	return &types.Oracle{
		Txid:         txid,
		BlockNum:     501,
		Address:      address,
		TopicAddress: "aa01",
		Options:      []string{"A", "B"},
		OptionIdxs:   []int{0, 1},
		Status:       types.PhaseVoting,
		Token:        token,
		Amounts:      []string{"0", "0"},
		EndTime:      2000,
	}
}

func TestBettingOpenSweep(t *testing.T) {
	s := openTestStore(t)

	topic := testTopic("tx1")
	topic.Status = types.PhaseCreated
	require.NoError(t, s.MergeTopic(topic))

	due := testOracle("o1", "cc01", "BASE")
	due.Status = types.PhaseCreated
	due.StartTime = 1000
	require.NoError(t, s.MergeOracle(due))

	notDue := testOracle("o2", "cc02", "BASE")
	notDue.Status = types.PhaseCreated
	notDue.TopicAddress = ""
	notDue.StartTime = 5000
	require.NoError(t, s.MergeOracle(notDue))

	moved, err := s.SweepBettingOpened(1500)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	o1, err := s.GetOracleByAddress("cc01")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseVoting, o1.Status)

	// the owning topic opens with its oracle
	got, err := s.GetTopicByAddress("aa01")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseVoting, got.Status)

	o2, err := s.GetOracleByAddress("cc02")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCreated, o2.Status)
}

func TestPhaseSweeps(t *testing.T) {
	s := openTestStore(t)

	centralized := testOracle("o1", "cc01", "BASE")
	centralized.ResultSetEndTime = 2500
	require.NoError(t, s.MergeOracle(centralized))

	decentralized := testOracle("o2", "cc02", "PRED")
	require.NoError(t, s.MergeOracle(decentralized))

	notDue := testOracle("o3", "cc03", "BASE")
	notDue.EndTime = 9000
	require.NoError(t, s.MergeOracle(notDue))

	// chain time past both the voting window and the result-set window:
	// the centralized oracle crosses both thresholds in one sweep cycle
	moved, err := s.SweepVotingClosed(3000)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	moved, err = s.SweepResultSetClosed(3000, "BASE")
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	o1, err := s.GetOracleByAddress("cc01")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseOpenResultSet, o1.Status)

	o2, err := s.GetOracleByAddress("cc02")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseWaitResult, o2.Status)

	o3, err := s.GetOracleByAddress("cc03")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseVoting, o3.Status)
}

func TestSetOracleResultAndFinalize(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MergeOracle(testOracle("o1", "cc01", "BASE")))
	require.NoError(t, s.MergeTopic(testTopic("tx1")))

	require.NoError(t, s.SetOracleResult("cc01", 1))
	o, err := s.GetOracleByAddress("cc01")
	require.NoError(t, err)
	require.NotNil(t, o.ResultIdx)
	assert.Equal(t, 1, *o.ResultIdx)
	assert.Equal(t, types.PhaseWaitResult, o.Status)

	require.NoError(t, s.FinalizeTopic("aa01", 1))
	topic, err := s.GetTopicByAddress("aa01")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseWithdraw, topic.Status)
	o, err = s.GetOracleByAddress("cc01")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseWithdraw, o.Status)
}

func TestMergeVoteAppendOnly(t *testing.T) {
	s := openTestStore(t)

	v := &types.Vote{Txid: "v1", BlockNum: 510, OracleAddress: "cc01", Voter: "bb01", OptionIdx: 1, Amount: "2"}
	require.NoError(t, s.MergeVote(v))

	mutated := *v
	mutated.Amount = "999"
	require.NoError(t, s.MergeVote(&mutated))

	votes, err := s.ListVotes(VoteFilter{OracleAddress: "cc01"})
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "2", votes[0].Amount)
}

func testOrder(txid string, orderID uint64) *types.Order {
	return &types.Order{
		Txid:        txid,
		OrderID:     orderID,
		BlockNum:    600,
		Time:        1500,
		Owner:       "bb01",
		Status:      types.OrderStatusActive,
		Side:        types.OrderSideBuy,
		PriceMul:    "1",
		PriceDiv:    "4",
		Price:       "0.25",
		Amount:      "10",
		StartAmount: "10",
		TokenName:   "PRED",
	}
}

func TestFillOrder(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MergeOrder(testOrder("ord1", 7)))

	o, err := s.FillOrder(7, "4")
	require.NoError(t, err)
	assert.Equal(t, "6", o.Amount)

	o, err = s.FillOrder(7, "6")
	require.NoError(t, err)
	assert.Equal(t, "0", o.Amount)

	// over-fill is rejected, not clamped
	o, err = s.FillOrder(7, "0.00000001")
	assert.ErrorIs(t, err, ErrAmountConflict)
	require.NotNil(t, o)
	assert.Equal(t, "0", o.Amount)
}

func TestMergeOrderPreservesRemainingAmount(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MergeOrder(testOrder("ord1", 7)))

	_, err := s.FillOrder(7, "4")
	require.NoError(t, err)

	// replayed creation event
	require.NoError(t, s.MergeOrder(testOrder("ord1", 7)))

	o, err := s.GetOrder("ord1")
	require.NoError(t, err)
	assert.Equal(t, "6", o.Amount)
	assert.Equal(t, "10", o.StartAmount)
}

func TestUpdateOrderStatus(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MergeOrder(testOrder("ord1", 7)))

	o, err := s.UpdateOrderStatus(7, types.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCanceled, o.Status)

	// terminal: nothing moves it back
	_, err = s.UpdateOrderStatus(7, types.OrderStatusActive)
	assert.Error(t, err)

	// same-status update is a no-op, not an error
	_, err = s.UpdateOrderStatus(7, types.OrderStatusCanceled)
	assert.NoError(t, err)

	_, err = s.UpdateOrderStatus(99, types.OrderStatusCanceled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeTradeFirstInsertOnly(t *testing.T) {
	s := openTestStore(t)

	trade := &types.Trade{Txid: "t1", OrderID: 7, Time: 1600, Amount: "4", TokenName: "PRED"}
	inserted, err := s.MergeTrade(trade)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.MergeTrade(trade)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestListTradesSince(t *testing.T) {
	s := openTestStore(t)

	for _, tr := range []*types.Trade{
		{Txid: "t1", Time: 100, TokenName: "PRED"},
		{Txid: "t2", Time: 200, TokenName: "PRED"},
		{Txid: "t3", Time: 300, TokenName: "PRED"},
	} {
		_, err := s.MergeTrade(tr)
		require.NoError(t, err)
	}

	trades, err := s.ListTrades(TradeFilter{Since: 200})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// newest first
	assert.Equal(t, "t3", trades[0].Txid)
}

func TestReplaceMarkets(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.ReplaceMarkets([]types.Market{
		{Market: "PRED", TokenName: "PRED", Price: "0.25", Change: "5", Volume: "12"},
		{Market: "XYZ", TokenName: "XYZ", Price: "1", Change: "0", Volume: "0"},
	}))
	require.NoError(t, s.ReplaceMarkets([]types.Market{
		{Market: "PRED", TokenName: "PRED", Price: "0.3", Change: "20", Volume: "15"},
	}))

	markets, err := s.ListMarkets()
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "0.3", markets[0].Price)

	_, err = s.GetMarket("XYZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionsPendingLifecycle(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MergeTransaction(&types.Transaction{
		Txid: "tx-a", Type: types.TxTypeApproveVote, Status: types.TxStatusPending, CreatedTime: 100,
	}))
	require.NoError(t, s.MergeTransaction(&types.Transaction{
		Txid: "tx-b", Type: types.TxTypeTransfer, Status: types.TxStatusPending, CreatedTime: 50,
	}))

	pending, err := s.FindPendingTransactions()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// oldest first, so follow-ups run in creation order
	assert.Equal(t, "tx-b", pending[0].Txid)

	resolved := *pending[1]
	resolved.Status = types.TxStatusSuccess
	resolved.BlockNum = 700
	require.NoError(t, s.PutTransaction(&resolved))

	// a replayed PENDING merge never regresses a terminal record
	require.NoError(t, s.MergeTransaction(&types.Transaction{
		Txid: "tx-a", Type: types.TxTypeApproveVote, Status: types.TxStatusPending, CreatedTime: 100,
	}))
	got, err := s.GetTransaction("tx-a")
	require.NoError(t, err)
	assert.Equal(t, types.TxStatusSuccess, got.Status)

	pending, err = s.FindPendingTransactions()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "tx-b", pending[0].Txid)
}

func TestFundRedeemsPendingLifecycle(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MergeFundRedeem(&types.FundRedeem{
		Txid: "fr-a", Type: types.FundRedeemFund, Status: types.TxStatusPending,
		TokenName: "PRED", Amount: "5", CreatedTime: 100,
	}))
	require.NoError(t, s.MergeFundRedeem(&types.FundRedeem{
		Txid: "fr-b", Type: types.FundRedeemRedeem, Status: types.TxStatusPending,
		TokenName: "BASE", Amount: "2", CreatedTime: 50,
	}))

	pending, err := s.FindPendingFundRedeems()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// oldest first
	assert.Equal(t, "fr-b", pending[0].Txid)

	resolved := *pending[1]
	resolved.Status = types.TxStatusSuccess
	resolved.BlockNum = 700
	require.NoError(t, s.PutFundRedeem(&resolved))

	// a replayed PENDING merge never regresses a terminal record
	require.NoError(t, s.MergeFundRedeem(&types.FundRedeem{
		Txid: "fr-a", Type: types.FundRedeemFund, Status: types.TxStatusPending,
		TokenName: "PRED", Amount: "5", CreatedTime: 100,
	}))
	got, err := s.GetFundRedeem("fr-a")
	require.NoError(t, err)
	assert.Equal(t, types.TxStatusSuccess, got.Status)

	frs, err := s.ListFundRedeems(FundRedeemFilter{Type: types.FundRedeemRedeem})
	require.NoError(t, err)
	require.Len(t, frs, 1)
	assert.Equal(t, "fr-b", frs[0].Txid)
}

func TestPagination(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		topic := testTopic(string(rune('a' + i)))
		topic.Address = ""
		topic.BlockNum = uint64(500 + i)
		require.NoError(t, s.MergeTopic(topic))
	}

	topics, err := s.ListTopics(TopicFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, uint64(504), topics[0].BlockNum)

	topics, err = s.ListTopics(TopicFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, topics, 1)

	topics, err = s.ListTopics(TopicFilter{Offset: 99})
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestSyncInfoRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetSyncInfo()
	assert.ErrorIs(t, err, ErrNotFound)

	info := types.SyncInfo{SyncBlockNum: 123, SyncBlockTime: 456, SyncPercent: 78, PeerNodeCount: 3}
	require.NoError(t, s.PutSyncInfo(info))

	got, err := s.GetSyncInfo()
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestErrNotFoundIsDistinct(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetOracle("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.GetOrderByOrderID(42)
	assert.True(t, errors.Is(err, ErrNotFound))
}
