package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpredict/chainsync/chain"
	"github.com/openpredict/chainsync/decode"
	"github.com/openpredict/chainsync/internal/constants"
	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/types"
)

func pendingApproval(txid string, txType types.TxType) *types.Transaction {
	idx := 1
	return &types.Transaction{
		Txid:                   txid,
		Type:                   txType,
		Status:                 types.TxStatusPending,
		CreatedTime:            100,
		SenderAddress:          "sender",
		ReceiverAddress:        testSetterAddr,
		OracleAddress:          testOracleAddr,
		OptionIdx:              &idx,
		Amount:                 "40",
		Name:                   "who wins the cup",
		Options:                []string{"yes", "no"},
		ResultSetterAddress:    testSetterAddr,
		BettingStartTime:       1000,
		BettingEndTime:         2000,
		ResultSettingStartTime: 2000,
		ResultSettingEndTime:   3000,
	}
}

func TestCreateTopicApprovalSuccess(t *testing.T) {
	s, fc, _ := newTestSyncer(t)
	ctx := context.Background()

	approval := pendingApproval("approve-1", types.TxTypeApproveCreateEvent)
	require.NoError(t, s.store.PutTransaction(approval))
	// speculative records keyed by the approval txid until the real
	// creation transaction exists
	require.NoError(t, s.store.PutTopic(&types.Topic{
		Txid: "approve-1", Name: approval.Name, Options: approval.Options,
		Status: types.PhasePending,
	}))
	require.NoError(t, s.store.PutOracle(&types.Oracle{
		Txid: "approve-1", Status: types.PhasePending, Token: constants.NativeToken,
	}))

	fc.receipts["approve-1"] = successReceipt(3, decode.RawLog{decode.EventNameKey: "Approval"})
	s.resolvePending(ctx, 10)

	resolved, err := s.store.GetTransaction("approve-1")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusSuccess, resolved.Status)
	require.Equal(t, uint64(3), resolved.BlockNum)
	require.Equal(t, blockTimeAt(3), resolved.BlockTime)

	sent := fc.submissions()
	require.Len(t, sent, 1)
	require.Equal(t, "create_topic", sent[0].kind)
	require.Equal(t, s.contracts.EventFactory.Address, sent[0].to)
	require.Equal(t, "who wins the cup", sent[0].topicParams.Name)
	require.Equal(t, []string{"yes", "no"}, sent[0].topicParams.Options)
	require.Equal(t, testSetterAddr, sent[0].topicParams.ResultSetter)

	action, err := s.store.GetTransaction("sent-1")
	require.NoError(t, err)
	require.Equal(t, types.TxTypeCreateEvent, action.Type)
	require.Equal(t, types.TxStatusPending, action.Status)

	// speculative records follow the submission's txid
	_, err = s.store.GetTopic("approve-1")
	require.ErrorIs(t, err, store.ErrNotFound)
	topic, err := s.store.GetTopic("sent-1")
	require.NoError(t, err)
	require.Equal(t, types.PhasePending, topic.Status)
	_, err = s.store.GetOracle("sent-1")
	require.NoError(t, err)

	// a resolved approval never resubmits on later cycles
	s.resolvePending(ctx, 10)
	require.Len(t, fc.submissions(), 1)

	// the creation confirms on a later cycle and the chain ends
	fc.receipts["sent-1"] = successReceipt(4, topicCreatedLog(testTopicAddr))
	s.resolvePending(ctx, 10)

	action, err = s.store.GetTransaction("sent-1")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusSuccess, action.Status)
	require.Len(t, fc.submissions(), 1)
}

func TestCreateTopicApprovalFailure(t *testing.T) {
	s, fc, _ := newTestSyncer(t)
	ctx := context.Background()

	approval := pendingApproval("approve-2", types.TxTypeApproveCreateEvent)
	require.NoError(t, s.store.PutTransaction(approval))
	require.NoError(t, s.store.PutTopic(&types.Topic{Txid: "approve-2", Status: types.PhasePending}))
	require.NoError(t, s.store.PutOracle(&types.Oracle{Txid: "approve-2", Status: types.PhasePending}))

	fc.receipts["approve-2"] = revertedReceipt(3)
	s.resolvePending(ctx, 10)

	resolved, err := s.store.GetTransaction("approve-2")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusFail, resolved.Status)

	// the stranded allowance gets zeroed out
	sent := fc.submissions()
	require.Len(t, sent, 1)
	require.Equal(t, "approve", sent[0].kind)
	require.Equal(t, "0", sent[0].amount)
	require.Equal(t, testSetterAddr, sent[0].to)

	reset, err := s.store.GetTransaction("sent-1")
	require.NoError(t, err)
	require.Equal(t, types.TxTypeResetApprove, reset.Type)
	require.Equal(t, types.TxStatusPending, reset.Status)

	// the speculative records never reached the chain and are gone
	_, err = s.store.GetTopic("approve-2")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.store.GetOracle("approve-2")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetResultApprovalSuccess(t *testing.T) {
	s, fc, _ := newTestSyncer(t)
	ctx := context.Background()

	approval := pendingApproval("approve-3", types.TxTypeApproveSetResult)
	require.NoError(t, s.store.PutTransaction(approval))

	fc.receipts["approve-3"] = successReceipt(3, decode.RawLog{decode.EventNameKey: "Approval"})
	s.resolvePending(ctx, 10)

	sent := fc.submissions()
	require.Len(t, sent, 1)
	require.Equal(t, "set_result", sent[0].kind)
	require.Equal(t, testOracleAddr, sent[0].to)
	require.Equal(t, 1, sent[0].resultIdx)

	action, err := s.store.GetTransaction("sent-1")
	require.NoError(t, err)
	require.Equal(t, types.TxTypeSetResult, action.Type)
	require.Equal(t, types.TxStatusPending, action.Status)
}

func TestVoteApprovalPicksGasLimit(t *testing.T) {
	s, fc, _ := newTestSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.store.PutOracle(&types.Oracle{
		Txid:               "oracle-tx",
		Address:            testOracleAddr,
		Status:             types.PhaseVoting,
		Token:              constants.PredToken,
		Amounts:            []string{"0", "60"},
		ConsensusThreshold: "100",
	}))

	// 40 on option 1 reaches the 100 threshold exactly and deploys the
	// next round in the same call
	approval := pendingApproval("approve-4", types.TxTypeApproveVote)
	require.NoError(t, s.store.PutTransaction(approval))
	fc.receipts["approve-4"] = successReceipt(3, decode.RawLog{decode.EventNameKey: "Approval"})
	s.resolvePending(ctx, 10)

	sent := fc.submissions()
	require.Len(t, sent, 1)
	require.Equal(t, "vote", sent[0].kind)
	require.Equal(t, "40", sent[0].amount)
	require.Equal(t, uint64(constants.CreateOracleGasLimit), sent[0].gasLimit)
}

func TestVotingGasLimit(t *testing.T) {
	s, _, _ := newTestSyncer(t)

	require.NoError(t, s.store.PutOracle(&types.Oracle{
		Txid:               "oracle-tx",
		Address:            testOracleAddr,
		Status:             types.PhaseVoting,
		Token:              constants.PredToken,
		Amounts:            []string{"0", "60"},
		ConsensusThreshold: "100",
	}))

	limit, err := s.votingGasLimit(testOracleAddr, 1, "39.5")
	require.NoError(t, err)
	require.Equal(t, uint64(constants.DefaultGasLimit), limit)

	limit, err = s.votingGasLimit(testOracleAddr, 1, "40")
	require.NoError(t, err)
	require.Equal(t, uint64(constants.CreateOracleGasLimit), limit)

	_, err = s.votingGasLimit(testOracleAddr, 5, "1")
	require.Error(t, err)

	_, err = s.votingGasLimit("ffffffffffffffffffffffffffffffffffffffff", 0, "1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDirectTransferConfirmation(t *testing.T) {
	s, _, fw := newTestSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.store.PutTransaction(&types.Transaction{
		Txid:          "xfer-1",
		Type:          types.TxTypeTransfer,
		Status:        types.TxStatusPending,
		CreatedTime:   100,
		SenderAddress: "sender",
		Token:         constants.NativeToken,
		Amount:        "5",
	}))
	fw.txs["xfer-1"] = &chain.WalletTx{Confirmations: 3, Fee: -0.0904}

	s.resolvePending(ctx, 10)

	tx, err := s.store.GetTransaction("xfer-1")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusSuccess, tx.Status)
	require.Equal(t, uint64(8), tx.BlockNum)
	require.Equal(t, uint64(226000), tx.GasUsed)
}

func TestUnminedTransactionStaysPending(t *testing.T) {
	s, _, _ := newTestSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.store.PutTransaction(pendingApproval("approve-5", types.TxTypeApproveVote)))
	s.resolvePending(ctx, 10)

	tx, err := s.store.GetTransaction("approve-5")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusPending, tx.Status)
}

func TestResolvePendingFundRedeems(t *testing.T) {
	s, fc, fw := newTestSyncer(t)
	ctx := context.Background()

	// a native deposit is a wallet send, confirmed through the wallet's
	// own view with the block back-computed from the confirmation count
	require.NoError(t, s.store.MergeFundRedeem(&types.FundRedeem{
		Txid:      "fund-native",
		Type:      types.FundRedeemFund,
		Status:    types.TxStatusPending,
		Owner:     testOwnerAddr,
		TokenName: constants.NativeToken,
		Token:     constants.ZeroTokenAddress,
		Amount:    "3",
	}))
	fw.txs["fund-native"] = &chain.WalletTx{Confirmations: 3, Fee: -0.0904}

	// a token withdrawal confirms through its contract receipt
	require.NoError(t, s.store.MergeFundRedeem(&types.FundRedeem{
		Txid:      "redeem-ok",
		Type:      types.FundRedeemRedeem,
		Status:    types.TxStatusPending,
		Owner:     testOwnerAddr,
		TokenName: constants.PredToken,
		Amount:    "6",
	}))
	fc.receipts["redeem-ok"] = successReceipt(4, decode.RawLog{decode.EventNameKey: "Withdrawal"})

	require.NoError(t, s.store.MergeFundRedeem(&types.FundRedeem{
		Txid:      "redeem-reverted",
		Type:      types.FundRedeemRedeem,
		Status:    types.TxStatusPending,
		Owner:     testOwnerAddr,
		TokenName: constants.PredToken,
		Amount:    "6",
	}))
	fc.receipts["redeem-reverted"] = revertedReceipt(4)

	require.NoError(t, s.store.MergeFundRedeem(&types.FundRedeem{
		Txid:      "redeem-unmined",
		Type:      types.FundRedeemRedeem,
		Status:    types.TxStatusPending,
		Owner:     testOwnerAddr,
		TokenName: constants.PredToken,
		Amount:    "1",
	}))

	s.resolvePending(ctx, 10)

	native, err := s.store.GetFundRedeem("fund-native")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusSuccess, native.Status)
	require.Equal(t, uint64(8), native.BlockNum)
	require.Equal(t, uint64(226000), native.GasUsed)
	require.Equal(t, blockTimeAt(8), native.Time)

	ok, err := s.store.GetFundRedeem("redeem-ok")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusSuccess, ok.Status)
	require.Equal(t, uint64(4), ok.BlockNum)
	require.Equal(t, blockTimeAt(4), ok.Time)

	reverted, err := s.store.GetFundRedeem("redeem-reverted")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusFail, reverted.Status)

	unmined, err := s.store.GetFundRedeem("redeem-unmined")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusPending, unmined.Status)
}

func TestNativeFundLedgerConfirmation(t *testing.T) {
	s, _, fw := newTestSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.store.PutTransaction(&types.Transaction{
		Txid:          "fund-native",
		Type:          types.TxTypeFundExchange,
		Status:        types.TxStatusPending,
		CreatedTime:   100,
		SenderAddress: "sender",
		Token:         constants.NativeToken,
		Amount:        "3",
	}))
	fw.txs["fund-native"] = &chain.WalletTx{Confirmations: 2, Fee: -0.0904}

	s.resolvePending(ctx, 10)

	tx, err := s.store.GetTransaction("fund-native")
	require.NoError(t, err)
	require.Equal(t, types.TxStatusSuccess, tx.Status)
	require.Equal(t, uint64(9), tx.BlockNum)
}

func TestResolvePendingOrder(t *testing.T) {
	s, fc, _ := newTestSyncer(t)
	ctx := context.Background()
	predAddr := s.contracts.PredToken.Address

	require.NoError(t, s.store.PutOrder(&types.Order{
		Txid:   "ord-1",
		Status: types.OrderStatusPending,
		Owner:  testOwnerAddr,
	}))
	fc.receipts["ord-1"] = successReceipt(3,
		newOrderLog(21, predAddr, constants.ZeroTokenAddress, "1000000000", blockTimeAt(3)))

	s.resolvePending(ctx, 10)

	order, err := s.store.GetOrder("ord-1")
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusActive, order.Status)
	require.Equal(t, uint64(21), order.OrderID)
	require.Equal(t, "10", order.Amount)
}

func TestResolvePendingOrderReverted(t *testing.T) {
	s, fc, _ := newTestSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.store.PutOrder(&types.Order{
		Txid:   "ord-2",
		Status: types.OrderStatusPending,
	}))
	fc.receipts["ord-2"] = revertedReceipt(3)

	s.resolvePending(ctx, 10)

	order, err := s.store.GetOrder("ord-2")
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusFail, order.Status)
}

func TestResolvePendingCancel(t *testing.T) {
	s, fc, _ := newTestSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.store.PutOrder(&types.Order{
		Txid:    "cancel-ok",
		OrderID: 31,
		Status:  types.OrderStatusPendingCancel,
	}))
	require.NoError(t, s.store.PutOrder(&types.Order{
		Txid:    "cancel-reverted",
		OrderID: 32,
		Status:  types.OrderStatusPendingCancel,
	}))
	fc.receipts["cancel-ok"] = successReceipt(3, decode.RawLog{
		decode.EventNameKey: "OrderCancelled",
		"_id":               float64(31),
		"_time":             float64(blockTimeAt(3)),
	})
	fc.receipts["cancel-reverted"] = revertedReceipt(3)

	s.resolvePending(ctx, 10)

	ok, err := s.store.GetOrder("cancel-ok")
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusCanceled, ok.Status)

	// the cancel reverted, the order is still on the book
	reverted, err := s.store.GetOrder("cancel-reverted")
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusActive, reverted.Status)
}

func TestResolvePendingTrades(t *testing.T) {
	s, fc, _ := newTestSyncer(t)
	ctx := context.Background()

	require.NoError(t, s.store.PutTrade(&types.Trade{
		Txid:      "trade-ok",
		OrderID:   41,
		Status:    types.TradeStatusPending,
		TokenName: "PRED",
	}))
	require.NoError(t, s.store.PutTrade(&types.Trade{
		Txid:      "trade-reverted",
		OrderID:   42,
		Status:    types.TradeStatusPending,
		TokenName: "PRED",
	}))
	fc.receipts["trade-ok"] = successReceipt(4, tradeLog(41, "100000000", "100000000", blockTimeAt(4)))
	fc.receipts["trade-reverted"] = revertedReceipt(4)

	s.resolvePending(ctx, 10)

	ok, err := s.store.GetTrade("trade-ok")
	require.NoError(t, err)
	require.Equal(t, types.TradeStatusConfirmed, ok.Status)
	require.Equal(t, uint64(4), ok.BlockNum)

	reverted, err := s.store.GetTrade("trade-reverted")
	require.NoError(t, err)
	require.Equal(t, types.TradeStatusFail, reverted.Status)
}
