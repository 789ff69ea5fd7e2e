package graphql

import (
	"fmt"
	"time"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/openpredict/chainsync/chain"
	"github.com/openpredict/chainsync/decode"
	"github.com/openpredict/chainsync/internal/constants"
	"github.com/openpredict/chainsync/types"
)

func (s *Schema) sender(p graphql.ResolveParams) string {
	if v := stringArg(p, "senderAddress"); v != "" {
		return v
	}
	return s.deps.Sender
}

func zeroAmounts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "0"
	}
	return out
}

// listedToken resolves the non-native leg of an order's token pair
func (s *Schema) listedToken(sellToken, buyToken string) (address, pair string, err error) {
	for _, addr := range []string{sellToken, buyToken} {
		if addr == constants.ZeroTokenAddress {
			continue
		}
		for _, t := range s.deps.Contracts.Tokens {
			if t.Address == addr {
				return addr, t.Pair, nil
			}
		}
	}
	return "", "", fmt.Errorf("no listed token in pair %s/%s", sellToken, buyToken)
}

// mutateCreateTopic starts the create-event workflow: an escrow approval on
// the prediction token goes out first, and the topic creation follows once
// the pending resolver sees it confirm. The Topic and Oracle records are
// inserted speculatively under the approval's txid so the UI can show them
// immediately.
func (s *Schema) mutateCreateTopic(p graphql.ResolveParams) (interface{}, error) {
	name := stringArg(p, "name")
	options, err := stringListArg(p, "options")
	if err != nil {
		return nil, err
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("a topic needs at least two options")
	}
	sender := s.sender(p)
	amount := stringArg(p, "amount")
	resultSetter := decode.NormalizeAddress(stringArg(p, "resultSetterAddress"))

	factory := s.deps.Contracts.EventFactory.Address
	sent, err := s.deps.Chain.Approve(p.Context, s.deps.Contracts.PredToken.Address, factory, amount, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to submit approval: %w", err)
	}
	now := time.Now().Unix()

	tx := &types.Transaction{
		Txid:                   sent.Txid,
		Type:                   types.TxTypeApproveCreateEvent,
		Status:                 types.TxStatusPending,
		CreatedTime:            now,
		GasLimit:               sent.GasLimit,
		GasPrice:               sent.GasPrice,
		SenderAddress:          sender,
		ReceiverAddress:        factory,
		Name:                   name,
		Options:                options,
		Token:                  constants.PredToken,
		Amount:                 amount,
		ResultSetterAddress:    resultSetter,
		BettingStartTime:       int64(intArg(p, "bettingStartTime")),
		BettingEndTime:         int64(intArg(p, "bettingEndTime")),
		ResultSettingStartTime: int64(intArg(p, "resultSettingStartTime")),
		ResultSettingEndTime:   int64(intArg(p, "resultSettingEndTime")),
	}
	if err := s.deps.Store.PutTransaction(tx); err != nil {
		return nil, err
	}

	if err := s.deps.Store.PutTopic(&types.Topic{
		Txid:        sent.Txid,
		Name:        name,
		Options:     options,
		Status:      types.PhasePending,
		BetAmounts:  zeroAmounts(len(options)),
		VoteAmounts: zeroAmounts(len(options)),
	}); err != nil {
		return nil, err
	}

	optionIdxs := make([]int, len(options))
	for i := range optionIdxs {
		optionIdxs[i] = i
	}
	if err := s.deps.Store.PutOracle(&types.Oracle{
		Txid:               sent.Txid,
		Name:               name,
		Options:            options,
		OptionIdxs:         optionIdxs,
		ResultSetter:       resultSetter,
		Status:             types.PhasePending,
		Token:              constants.NativeToken,
		Amounts:            zeroAmounts(len(options)),
		StartTime:          tx.BettingStartTime,
		EndTime:            tx.BettingEndTime,
		ResultSetStartTime: tx.ResultSettingStartTime,
		ResultSetEndTime:   tx.ResultSettingEndTime,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("create-topic workflow started",
		zap.String("txid", sent.Txid), zap.String("name", name))
	return tx, nil
}

func (s *Schema) mutateSetResult(p graphql.ResolveParams) (interface{}, error) {
	oracleAddress := decode.NormalizeAddress(stringArg(p, "oracleAddress"))
	resultIdx := intArg(p, "resultIdx")
	sender := s.sender(p)

	oracle, err := s.deps.Store.GetOracleByAddress(oracleAddress)
	if err != nil {
		return nil, fmt.Errorf("oracle %s: %w", oracleAddress, err)
	}
	if resultIdx < 0 || resultIdx >= len(oracle.Options) {
		return nil, fmt.Errorf("result index %d out of range for oracle %s", resultIdx, oracleAddress)
	}

	// the result setter escrows the consensus threshold
	amount := oracle.ConsensusThreshold
	sent, err := s.deps.Chain.Approve(p.Context, s.deps.Contracts.PredToken.Address, oracle.TopicAddress, amount, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to submit approval: %w", err)
	}

	tx := &types.Transaction{
		Txid:            sent.Txid,
		Type:            types.TxTypeApproveSetResult,
		Status:          types.TxStatusPending,
		CreatedTime:     time.Now().Unix(),
		GasLimit:        sent.GasLimit,
		GasPrice:        sent.GasPrice,
		SenderAddress:   sender,
		ReceiverAddress: oracle.TopicAddress,
		TopicAddress:    oracle.TopicAddress,
		OracleAddress:   oracle.Address,
		OptionIdx:       &resultIdx,
		Token:           constants.PredToken,
		Amount:          amount,
	}
	if err := s.deps.Store.PutTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Schema) mutateVote(p graphql.ResolveParams) (interface{}, error) {
	oracleAddress := decode.NormalizeAddress(stringArg(p, "oracleAddress"))
	optionIdx := intArg(p, "optionIdx")
	amount := stringArg(p, "amount")
	sender := s.sender(p)

	oracle, err := s.deps.Store.GetOracleByAddress(oracleAddress)
	if err != nil {
		return nil, fmt.Errorf("oracle %s: %w", oracleAddress, err)
	}

	sent, err := s.deps.Chain.Approve(p.Context, s.deps.Contracts.PredToken.Address, oracle.TopicAddress, amount, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to submit approval: %w", err)
	}

	tx := &types.Transaction{
		Txid:            sent.Txid,
		Type:            types.TxTypeApproveVote,
		Status:          types.TxStatusPending,
		CreatedTime:     time.Now().Unix(),
		GasLimit:        sent.GasLimit,
		GasPrice:        sent.GasPrice,
		SenderAddress:   sender,
		ReceiverAddress: oracle.TopicAddress,
		TopicAddress:    oracle.TopicAddress,
		OracleAddress:   oracle.Address,
		OptionIdx:       &optionIdx,
		Token:           constants.PredToken,
		Amount:          amount,
	}
	if err := s.deps.Store.PutTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Schema) mutateCreateOrder(p graphql.ResolveParams) (interface{}, error) {
	sellToken := decode.NormalizeAddress(stringArg(p, "sellToken"))
	buyToken := decode.NormalizeAddress(stringArg(p, "buyToken"))
	priceMul := stringArg(p, "priceMul")
	priceDiv := stringArg(p, "priceDiv")
	amount := stringArg(p, "amount")
	sender := s.sender(p)

	tokenAddr, pair, err := s.listedToken(sellToken, buyToken)
	if err != nil {
		return nil, err
	}
	price, err := decode.RationalPrice(priceMul, priceDiv)
	if err != nil {
		return nil, err
	}

	sent, err := s.deps.Chain.CreateOrder(p.Context, s.deps.Contracts.Exchange.Address, chain.CreateOrderParams{
		SellToken: sellToken,
		BuyToken:  buyToken,
		PriceMul:  priceMul,
		PriceDiv:  priceDiv,
		Amount:    amount,
	}, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}
	now := time.Now().Unix()

	order := &types.Order{
		Txid:        sent.Txid,
		Time:        now,
		Owner:       sender,
		SellToken:   sellToken,
		BuyToken:    buyToken,
		Status:      types.OrderStatusPending,
		Side:        types.SideForTokens(sellToken == constants.ZeroTokenAddress),
		PriceMul:    priceMul,
		PriceDiv:    priceDiv,
		Price:       price,
		Amount:      amount,
		StartAmount: amount,
		Token:       tokenAddr,
		TokenName:   pair,
	}
	if err := s.deps.Store.PutOrder(order); err != nil {
		return nil, err
	}

	if err := s.deps.Store.PutTransaction(&types.Transaction{
		Txid:            sent.Txid,
		Type:            types.TxTypeCreateOrder,
		Status:          types.TxStatusPending,
		CreatedTime:     now,
		GasLimit:        sent.GasLimit,
		GasPrice:        sent.GasPrice,
		SenderAddress:   sender,
		ReceiverAddress: s.deps.Contracts.Exchange.Address,
		Token:           pair,
		Amount:          amount,
	}); err != nil {
		return nil, err
	}
	return order, nil
}

// mutateCancelOrder submits the cancellation and re-keys the order record to
// the cancel's txid so pending resolution tracks the right receipt.
func (s *Schema) mutateCancelOrder(p graphql.ResolveParams) (interface{}, error) {
	orderID := uint64(intArg(p, "orderId"))
	sender := s.sender(p)

	order, err := s.deps.Store.GetOrderByOrderID(orderID)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", orderID, err)
	}
	if order.Status != types.OrderStatusActive {
		return nil, fmt.Errorf("order %d is %s, only active orders can be canceled", orderID, order.Status)
	}

	sent, err := s.deps.Chain.CancelOrder(p.Context, s.deps.Contracts.Exchange.Address, orderID, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to submit cancel: %w", err)
	}

	if _, err := s.deps.Store.UpdateOrderStatus(orderID, types.OrderStatusPendingCancel); err != nil {
		return nil, err
	}
	if err := s.deps.Store.RepointOrder(order.Txid, sent.Txid); err != nil {
		return nil, err
	}

	if err := s.deps.Store.PutTransaction(&types.Transaction{
		Txid:            sent.Txid,
		Type:            types.TxTypeCancelOrder,
		Status:          types.TxStatusPending,
		CreatedTime:     time.Now().Unix(),
		GasLimit:        sent.GasLimit,
		GasPrice:        sent.GasPrice,
		SenderAddress:   sender,
		ReceiverAddress: s.deps.Contracts.Exchange.Address,
	}); err != nil {
		return nil, err
	}

	return s.deps.Store.GetOrderByOrderID(orderID)
}

// tokenBySymbol resolves a listed token's contract address
func (s *Schema) tokenBySymbol(symbol string) (string, error) {
	for _, t := range s.deps.Contracts.Tokens {
		if t.Symbol == symbol {
			return t.Address, nil
		}
	}
	return "", fmt.Errorf("unknown token %q", symbol)
}

func (s *Schema) mutateTransfer(p graphql.ResolveParams) (interface{}, error) {
	token := stringArg(p, "token")
	to := stringArg(p, "to")
	amount := stringArg(p, "amount")
	sender := s.sender(p)
	now := time.Now().Unix()

	tx := &types.Transaction{
		Type:            types.TxTypeTransfer,
		Status:          types.TxStatusPending,
		CreatedTime:     now,
		SenderAddress:   sender,
		ReceiverAddress: to,
		Token:           token,
		Amount:          amount,
	}

	if token == constants.NativeToken {
		txid, err := s.deps.Wallet.SendToAddress(p.Context, to, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to submit transfer: %w", err)
		}
		tx.Txid = txid
	} else {
		tokenAddr, err := s.tokenBySymbol(token)
		if err != nil {
			return nil, err
		}
		sent, err := s.deps.Chain.TokenTransfer(p.Context, tokenAddr, decode.NormalizeAddress(to), amount, sender)
		if err != nil {
			return nil, fmt.Errorf("failed to submit transfer: %w", err)
		}
		tx.Txid = sent.Txid
		tx.GasLimit = sent.GasLimit
		tx.GasPrice = sent.GasPrice
	}

	if err := s.deps.Store.PutTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// mutateFundExchange moves a balance onto the exchange. The native coin is
// deposited with a plain wallet send to the exchange contract; tokens go
// through a token transfer. Both record a PENDING FundRedeem alongside the
// ledger entry.
func (s *Schema) mutateFundExchange(p graphql.ResolveParams) (interface{}, error) {
	token := stringArg(p, "token")
	amount := stringArg(p, "amount")
	sender := s.sender(p)
	exchange := s.deps.Contracts.Exchange.Address
	now := time.Now().Unix()

	fr := &types.FundRedeem{
		Type:        types.FundRedeemFund,
		Status:      types.TxStatusPending,
		Owner:       sender,
		CreatedTime: now,
		TokenName:   token,
		Amount:      amount,
	}
	tx := &types.Transaction{
		Type:            types.TxTypeFundExchange,
		Status:          types.TxStatusPending,
		CreatedTime:     now,
		SenderAddress:   sender,
		ReceiverAddress: exchange,
		Token:           token,
		Amount:          amount,
	}

	if token == constants.NativeToken {
		txid, err := s.deps.Wallet.SendToAddress(p.Context, exchange, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to submit deposit: %w", err)
		}
		fr.Txid = txid
		fr.Token = constants.ZeroTokenAddress
		tx.Txid = txid
	} else {
		tokenAddr, err := s.tokenBySymbol(token)
		if err != nil {
			return nil, err
		}
		sent, err := s.deps.Chain.TokenTransfer(p.Context, tokenAddr, exchange, amount, sender)
		if err != nil {
			return nil, fmt.Errorf("failed to submit deposit: %w", err)
		}
		fr.Txid = sent.Txid
		fr.Token = tokenAddr
		tx.Txid = sent.Txid
		tx.GasLimit = sent.GasLimit
		tx.GasPrice = sent.GasPrice
	}

	if err := s.deps.Store.MergeFundRedeem(fr); err != nil {
		return nil, err
	}
	if err := s.deps.Store.PutTransaction(tx); err != nil {
		return nil, err
	}

	s.logger.Info("exchange deposit submitted",
		zap.String("txid", fr.Txid), zap.String("token", token))
	return fr, nil
}

// mutateRedeemExchange withdraws a deposited balance from the exchange
// contract. The native coin redeems against the zero token address.
func (s *Schema) mutateRedeemExchange(p graphql.ResolveParams) (interface{}, error) {
	token := stringArg(p, "token")
	amount := stringArg(p, "amount")
	sender := s.sender(p)
	exchange := s.deps.Contracts.Exchange.Address
	now := time.Now().Unix()

	tokenAddr := constants.ZeroTokenAddress
	if token != constants.NativeToken {
		addr, err := s.tokenBySymbol(token)
		if err != nil {
			return nil, err
		}
		tokenAddr = addr
	}

	sent, err := s.deps.Chain.RedeemExchange(p.Context, exchange, tokenAddr, amount, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to submit withdrawal: %w", err)
	}

	fr := &types.FundRedeem{
		Txid:        sent.Txid,
		Type:        types.FundRedeemRedeem,
		Status:      types.TxStatusPending,
		Owner:       sender,
		CreatedTime: now,
		Token:       tokenAddr,
		TokenName:   token,
		Amount:      amount,
	}
	if err := s.deps.Store.MergeFundRedeem(fr); err != nil {
		return nil, err
	}
	if err := s.deps.Store.PutTransaction(&types.Transaction{
		Txid:            sent.Txid,
		Type:            types.TxTypeRedeemExchange,
		Status:          types.TxStatusPending,
		CreatedTime:     now,
		GasLimit:        sent.GasLimit,
		GasPrice:        sent.GasPrice,
		SenderAddress:   sender,
		ReceiverAddress: exchange,
		Token:           token,
		Amount:          amount,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("exchange withdrawal submitted",
		zap.String("txid", fr.Txid), zap.String("token", token))
	return fr, nil
}

func stringListArg(p graphql.ResolveParams, name string) ([]string, error) {
	raw, ok := p.Args[name].([]interface{})
	if !ok {
		return nil, fmt.Errorf("argument %q must be a string list", name)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must contain only strings", name)
		}
		out = append(out, s)
	}
	return out, nil
}
