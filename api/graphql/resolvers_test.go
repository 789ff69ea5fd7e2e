package graphql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openpredict/chainsync/chain"
	"github.com/openpredict/chainsync/internal/config"
	"github.com/openpredict/chainsync/internal/constants"
	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/types"
)

const (
	testTopicAddr  = "5c1f8a1e22e6a0a63d0ac9e91e6c1c1fa2f0a111"
	testOracleAddr = "6d2e9b2f33f7b1b74e1bdaf2a2f7d2d2ab301222"
	testSetterAddr = "7e3fac3044a8c2c85f2cebf3b3a8e3e3bc412333"
)

type submission struct {
	method  string
	token   string
	to      string
	amount  string
	sender  string
	orderID uint64
	order   chain.CreateOrderParams
}

type fakeChain struct {
	subs []submission
}

func (f *fakeChain) sent() *chain.SentTx {
	return &chain.SentTx{
		Txid:     fmt.Sprintf("sent-%d", len(f.subs)),
		GasLimit: 250000,
		GasPrice: "0.0000004",
	}
}

func (f *fakeChain) Approve(ctx context.Context, tokenAddress, spender, amount, sender string) (*chain.SentTx, error) {
	f.subs = append(f.subs, submission{method: "approve", token: tokenAddress, to: spender, amount: amount, sender: sender})
	return f.sent(), nil
}

func (f *fakeChain) TokenTransfer(ctx context.Context, tokenAddress, to, amount, sender string) (*chain.SentTx, error) {
	f.subs = append(f.subs, submission{method: "transfer", token: tokenAddress, to: to, amount: amount, sender: sender})
	return f.sent(), nil
}

func (f *fakeChain) CreateOrder(ctx context.Context, exchangeAddress string, p chain.CreateOrderParams, sender string) (*chain.SentTx, error) {
	f.subs = append(f.subs, submission{method: "create_order", to: exchangeAddress, order: p, sender: sender})
	return f.sent(), nil
}

func (f *fakeChain) CancelOrder(ctx context.Context, exchangeAddress string, orderID uint64, sender string) (*chain.SentTx, error) {
	f.subs = append(f.subs, submission{method: "cancel_order", to: exchangeAddress, orderID: orderID, sender: sender})
	return f.sent(), nil
}

func (f *fakeChain) RedeemExchange(ctx context.Context, exchangeAddress, tokenAddress, amount, sender string) (*chain.SentTx, error) {
	f.subs = append(f.subs, submission{method: "redeem", to: exchangeAddress, token: tokenAddress, amount: amount, sender: sender})
	return f.sent(), nil
}

type fakeWallet struct {
	sends []submission
}

func (f *fakeWallet) SendToAddress(ctx context.Context, address, amount string) (string, error) {
	f.sends = append(f.sends, submission{method: "send", to: address, amount: amount})
	return fmt.Sprintf("wtx-%d", len(f.sends)), nil
}

func newTestHandler(t *testing.T) (*Handler, *store.Store, *fakeChain, *fakeWallet) {
	t.Helper()

	st, err := store.Open(&store.Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	meta, err := config.MetadataForNetwork(config.NetworkTestnet)
	require.NoError(t, err)

	fc := &fakeChain{}
	fw := &fakeWallet{}

	h, err := NewHandler(Deps{
		Store:     st,
		Chain:     fc,
		Wallet:    fw,
		Contracts: meta,
		Sender:    "default-sender",
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return h, st, fc, fw
}

func exec(t *testing.T, h *Handler, query string) map[string]interface{} {
	t.Helper()
	result := h.ExecuteQuery(query, nil)
	require.Empty(t, result.Errors, "query %s", query)
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestQueryTopics(t *testing.T) {
	h, st, _, _ := newTestHandler(t)

	require.NoError(t, st.PutTopic(&types.Topic{
		Txid:    "tx-1",
		Address: testTopicAddr,
		Name:    "will it rain tomorrow",
		Options: []string{"yes", "no"},
		Status:  types.PhaseVoting,
	}))
	require.NoError(t, st.PutTopic(&types.Topic{
		Txid:    "tx-2",
		Address: testOracleAddr,
		Name:    "settled question",
		Options: []string{"yes", "no"},
		Status:  types.PhaseWithdraw,
	}))

	data := exec(t, h, `{ topics(status: "VOTING") { address name status } }`)
	topics := data["topics"].([]interface{})
	require.Len(t, topics, 1)
	topic := topics[0].(map[string]interface{})
	assert.Equal(t, testTopicAddr, topic["address"])
	assert.Equal(t, "VOTING", topic["status"])

	data = exec(t, h, fmt.Sprintf(`{ topic(address: %q) { name options } }`, testOracleAddr))
	single := data["topic"].(map[string]interface{})
	assert.Equal(t, "settled question", single["name"])
	assert.Len(t, single["options"].([]interface{}), 2)
}

func TestQueryMissingRecordsReturnNull(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	data := exec(t, h, `{ topic(address: "ffffffffffffffffffffffffffffffffffffffff") { name } }`)
	assert.Nil(t, data["topic"])

	data = exec(t, h, `{ market(pair: "PRED") { price } }`)
	assert.Nil(t, data["market"])

	data = exec(t, h, `{ syncInfo { syncPercent } latestHeight }`)
	info := data["syncInfo"].(map[string]interface{})
	assert.EqualValues(t, 0, info["syncPercent"])
	assert.EqualValues(t, 0, data["latestHeight"])
}

func TestCreateTopicMutation(t *testing.T) {
	h, st, fc, _ := newTestHandler(t)

	data := exec(t, h, fmt.Sprintf(`mutation {
		createTopic(
			name: "who wins the cup"
			options: ["team a", "team b"]
			resultSetterAddress: %q
			bettingStartTime: 100
			bettingEndTime: 200
			resultSettingStartTime: 300
			resultSettingEndTime: 400
			amount: "5"
			senderAddress: "alice"
		) { txid type status senderAddress }
	}`, testSetterAddr))

	tx := data["createTopic"].(map[string]interface{})
	assert.Equal(t, "sent-1", tx["txid"])
	assert.Equal(t, "APPROVECREATEEVENT", tx["type"])
	assert.Equal(t, "PENDING", tx["status"])
	assert.Equal(t, "alice", tx["senderAddress"])

	require.Len(t, fc.subs, 1)
	sub := fc.subs[0]
	assert.Equal(t, "approve", sub.method)
	assert.Equal(t, h.schema.deps.Contracts.PredToken.Address, sub.token)
	assert.Equal(t, h.schema.deps.Contracts.EventFactory.Address, sub.to)
	assert.Equal(t, "5", sub.amount)

	stored, err := st.GetTransaction("sent-1")
	require.NoError(t, err)
	assert.Equal(t, types.TxTypeApproveCreateEvent, stored.Type)
	assert.Equal(t, int64(100), stored.BettingStartTime)
	assert.Equal(t, int64(400), stored.ResultSettingEndTime)
	assert.Equal(t, testSetterAddr, stored.ResultSetterAddress)

	topic, err := st.GetTopic("sent-1")
	require.NoError(t, err)
	assert.Equal(t, types.PhasePending, topic.Status)
	assert.Equal(t, []string{"0", "0"}, topic.BetAmounts)

	oracle, err := st.GetOracle("sent-1")
	require.NoError(t, err)
	assert.Equal(t, constants.NativeToken, oracle.Token)
	assert.Equal(t, testSetterAddr, oracle.ResultSetter)
	assert.Equal(t, []int{0, 1}, oracle.OptionIdxs)
}

func TestVoteAndSetResultMutations(t *testing.T) {
	h, st, fc, _ := newTestHandler(t)

	require.NoError(t, st.PutOracle(&types.Oracle{
		Txid:               "orc-1",
		Address:            testOracleAddr,
		TopicAddress:       testTopicAddr,
		Options:            []string{"yes", "no"},
		Status:             types.PhaseVoting,
		Token:              constants.PredToken,
		ConsensusThreshold: "110",
	}))

	data := exec(t, h, fmt.Sprintf(`mutation {
		vote(oracleAddress: %q, optionIdx: 1, amount: "25") { txid type optionIdx amount }
	}`, testOracleAddr))
	tx := data["vote"].(map[string]interface{})
	assert.Equal(t, "APPROVEVOTE", tx["type"])
	assert.EqualValues(t, 1, tx["optionIdx"])
	assert.Equal(t, "25", tx["amount"])

	require.Len(t, fc.subs, 1)
	assert.Equal(t, testTopicAddr, fc.subs[0].to)
	assert.Equal(t, "default-sender", fc.subs[0].sender)

	data = exec(t, h, fmt.Sprintf(`mutation {
		setResult(oracleAddress: %q, resultIdx: 0) { type amount oracleAddress }
	}`, testOracleAddr))
	tx = data["setResult"].(map[string]interface{})
	assert.Equal(t, "APPROVESETRESULT", tx["type"])
	// the result setter escrows the full consensus threshold
	assert.Equal(t, "110", tx["amount"])
	assert.Equal(t, testOracleAddr, tx["oracleAddress"])

	stored, err := st.GetTransaction("sent-2")
	require.NoError(t, err)
	assert.Equal(t, types.TxTypeApproveSetResult, stored.Type)
	require.NotNil(t, stored.OptionIdx)
	assert.Equal(t, 0, *stored.OptionIdx)
}

func TestVoteUnknownOracleFails(t *testing.T) {
	h, _, fc, _ := newTestHandler(t)

	result := h.ExecuteQuery(fmt.Sprintf(`mutation {
		vote(oracleAddress: %q, optionIdx: 0, amount: "1") { txid }
	}`, testOracleAddr), nil)
	require.NotEmpty(t, result.Errors)
	assert.Empty(t, fc.subs)
}

func TestCreateOrderMutation(t *testing.T) {
	h, st, fc, _ := newTestHandler(t)
	predAddr := h.schema.deps.Contracts.PredToken.Address

	data := exec(t, h, fmt.Sprintf(`mutation {
		createOrder(sellToken: %q, buyToken: %q, priceMul: "3", priceDiv: "2", amount: "5", senderAddress: "bob") {
			txid status orderType price tokenName
		}
	}`, predAddr, constants.ZeroTokenAddress))

	order := data["createOrder"].(map[string]interface{})
	assert.Equal(t, "sent-1", order["txid"])
	assert.Equal(t, "PENDING", order["status"])
	assert.Equal(t, "SELLORDER", order["orderType"])
	assert.Equal(t, "1.5", order["price"])
	assert.Equal(t, "PRED", order["tokenName"])

	require.Len(t, fc.subs, 1)
	assert.Equal(t, "create_order", fc.subs[0].method)
	assert.Equal(t, h.schema.deps.Contracts.Exchange.Address, fc.subs[0].to)
	assert.Equal(t, "3", fc.subs[0].order.PriceMul)

	stored, err := st.GetOrder("sent-1")
	require.NoError(t, err)
	assert.Equal(t, "bob", stored.Owner)
	assert.Equal(t, "5", stored.StartAmount)

	tx, err := st.GetTransaction("sent-1")
	require.NoError(t, err)
	assert.Equal(t, types.TxTypeCreateOrder, tx.Type)
}

func TestCancelOrderMutation(t *testing.T) {
	h, st, fc, _ := newTestHandler(t)

	require.NoError(t, st.PutOrder(&types.Order{
		Txid:        "ord-1",
		OrderID:     9,
		Owner:       "bob",
		Status:      types.OrderStatusActive,
		Amount:      "4",
		StartAmount: "10",
	}))

	data := exec(t, h, `mutation { cancelOrder(orderId: 9) { txid status } }`)
	order := data["cancelOrder"].(map[string]interface{})
	assert.Equal(t, "sent-1", order["txid"])
	assert.Equal(t, "PENDINGCANCEL", order["status"])

	require.Len(t, fc.subs, 1)
	assert.Equal(t, "cancel_order", fc.subs[0].method)
	assert.Equal(t, uint64(9), fc.subs[0].orderID)

	// the order record follows the cancel submission's txid
	_, err := st.GetOrder("ord-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	stored, err := st.GetOrderByOrderID(9)
	require.NoError(t, err)
	assert.Equal(t, "sent-1", stored.Txid)
	assert.Equal(t, "4", stored.Amount)

	// a second cancel is rejected, the order is no longer active
	result := h.ExecuteQuery(`mutation { cancelOrder(orderId: 9) { txid } }`, nil)
	require.NotEmpty(t, result.Errors)
	assert.Len(t, fc.subs, 1)
}

func TestTransferMutation(t *testing.T) {
	h, st, fc, fw := newTestHandler(t)

	data := exec(t, h, `mutation {
		transfer(token: "BASE", to: "carol", amount: "2.5") { txid type token }
	}`)
	tx := data["transfer"].(map[string]interface{})
	assert.Equal(t, "wtx-1", tx["txid"])
	assert.Equal(t, "TRANSFER", tx["type"])
	assert.Equal(t, "BASE", tx["token"])
	require.Len(t, fw.sends, 1)
	assert.Empty(t, fc.subs)

	data = exec(t, h, fmt.Sprintf(`mutation {
		transfer(token: "PRED", to: %q, amount: "7") { txid token }
	}`, testSetterAddr))
	tx = data["transfer"].(map[string]interface{})
	assert.Equal(t, "sent-1", tx["txid"])
	require.Len(t, fc.subs, 1)
	assert.Equal(t, "transfer", fc.subs[0].method)
	assert.Equal(t, h.schema.deps.Contracts.PredToken.Address, fc.subs[0].token)

	stored, err := st.GetTransaction("sent-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(250000), stored.GasLimit)

	result := h.ExecuteQuery(`mutation { transfer(token: "DOGE", to: "x", amount: "1") { txid } }`, nil)
	require.NotEmpty(t, result.Errors)
}

func TestFundExchangeMutation(t *testing.T) {
	h, st, fc, fw := newTestHandler(t)
	exchange := h.schema.deps.Contracts.Exchange.Address

	// the native coin is deposited with a plain wallet send
	data := exec(t, h, `mutation {
		fundExchange(token: "BASE", amount: "3") { txid type status tokenName }
	}`)
	fr := data["fundExchange"].(map[string]interface{})
	assert.Equal(t, "wtx-1", fr["txid"])
	assert.Equal(t, "FUND", fr["type"])
	assert.Equal(t, "PENDING", fr["status"])
	assert.Equal(t, "BASE", fr["tokenName"])
	require.Len(t, fw.sends, 1)
	assert.Equal(t, exchange, fw.sends[0].to)
	assert.Empty(t, fc.subs)

	stored, err := st.GetFundRedeem("wtx-1")
	require.NoError(t, err)
	assert.Equal(t, types.FundRedeemFund, stored.Type)
	assert.Equal(t, constants.ZeroTokenAddress, stored.Token)

	tx, err := st.GetTransaction("wtx-1")
	require.NoError(t, err)
	assert.Equal(t, types.TxTypeFundExchange, tx.Type)
	assert.Equal(t, types.TxStatusPending, tx.Status)

	// token deposits go through a token transfer to the exchange
	data = exec(t, h, `mutation {
		fundExchange(token: "PRED", amount: "8", senderAddress: "bob") { txid owner }
	}`)
	fr = data["fundExchange"].(map[string]interface{})
	assert.Equal(t, "sent-1", fr["txid"])
	assert.Equal(t, "bob", fr["owner"])
	require.Len(t, fc.subs, 1)
	assert.Equal(t, "transfer", fc.subs[0].method)
	assert.Equal(t, h.schema.deps.Contracts.PredToken.Address, fc.subs[0].token)
	assert.Equal(t, exchange, fc.subs[0].to)

	result := h.ExecuteQuery(`mutation { fundExchange(token: "DOGE", amount: "1") { txid } }`, nil)
	require.NotEmpty(t, result.Errors)
}

func TestRedeemExchangeMutation(t *testing.T) {
	h, st, fc, fw := newTestHandler(t)
	exchange := h.schema.deps.Contracts.Exchange.Address

	data := exec(t, h, `mutation {
		redeemExchange(token: "PRED", amount: "6") { txid type status }
	}`)
	fr := data["redeemExchange"].(map[string]interface{})
	assert.Equal(t, "sent-1", fr["txid"])
	assert.Equal(t, "REDEEM", fr["type"])
	assert.Equal(t, "PENDING", fr["status"])

	require.Len(t, fc.subs, 1)
	assert.Equal(t, "redeem", fc.subs[0].method)
	assert.Equal(t, exchange, fc.subs[0].to)
	assert.Equal(t, h.schema.deps.Contracts.PredToken.Address, fc.subs[0].token)
	assert.Equal(t, "6", fc.subs[0].amount)

	tx, err := st.GetTransaction("sent-1")
	require.NoError(t, err)
	assert.Equal(t, types.TxTypeRedeemExchange, tx.Type)

	// the native coin redeems against the zero token address
	data = exec(t, h, `mutation {
		redeemExchange(token: "BASE", amount: "2") { txid token }
	}`)
	fr = data["redeemExchange"].(map[string]interface{})
	assert.Equal(t, "sent-2", fr["txid"])
	assert.Equal(t, constants.ZeroTokenAddress, fr["token"])
	require.Len(t, fc.subs, 2)
	assert.Equal(t, constants.ZeroTokenAddress, fc.subs[1].token)
	assert.Empty(t, fw.sends)
}

func TestFundRedeemsQuery(t *testing.T) {
	h, st, _, _ := newTestHandler(t)

	require.NoError(t, st.PutFundRedeem(&types.FundRedeem{
		Txid: "fr-1", Type: types.FundRedeemFund, Status: types.TxStatusSuccess,
		Owner: "bob", TokenName: "PRED", Amount: "5", CreatedTime: 100,
	}))
	require.NoError(t, st.PutFundRedeem(&types.FundRedeem{
		Txid: "fr-2", Type: types.FundRedeemRedeem, Status: types.TxStatusPending,
		Owner: "carol", TokenName: "BASE", Amount: "2", CreatedTime: 200,
	}))

	data := exec(t, h, `{ fundRedeems(type: "FUND") { txid owner amount } }`)
	frs := data["fundRedeems"].([]interface{})
	require.Len(t, frs, 1)
	assert.Equal(t, "fr-1", frs[0].(map[string]interface{})["txid"])

	data = exec(t, h, `{ fundRedeems { txid } }`)
	frs = data["fundRedeems"].([]interface{})
	require.Len(t, frs, 2)
	// newest created first
	assert.Equal(t, "fr-2", frs[0].(map[string]interface{})["txid"])
}

func TestOrdersQueryFilters(t *testing.T) {
	h, st, _, _ := newTestHandler(t)

	require.NoError(t, st.PutOrder(&types.Order{
		Txid: "o-1", OrderID: 1, Owner: "bob", Status: types.OrderStatusActive,
		Side: types.OrderSideSell, TokenName: "PRED", BlockNum: 5,
	}))
	require.NoError(t, st.PutOrder(&types.Order{
		Txid: "o-2", OrderID: 2, Owner: "carol", Status: types.OrderStatusCanceled,
		Side: types.OrderSideBuy, TokenName: "PRED", BlockNum: 6,
	}))

	data := exec(t, h, `{ orders(status: "ACTIVE", owner: "bob") { orderId orderType } }`)
	orders := data["orders"].([]interface{})
	require.Len(t, orders, 1)
	assert.EqualValues(t, 1, orders[0].(map[string]interface{})["orderId"])

	data = exec(t, h, `{ orders { orderId } }`)
	assert.Len(t, data["orders"].([]interface{}), 2)
}
