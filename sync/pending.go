package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openpredict/chainsync/chain"
	"github.com/openpredict/chainsync/decode"
	"github.com/openpredict/chainsync/internal/constants"
	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/types"
)

// resolvePending confirms every locally pending Transaction, Order, Trade
// and FundRedeem against the chain and runs the follow-up workflow for
// records that reached a terminal state. Failures are logged per record;
// resolution continues with the rest.
func (s *Syncer) resolvePending(ctx context.Context, head uint64) {
	s.resolvePendingTransactions(ctx, head)
	s.resolvePendingOrders(ctx)
	s.resolvePendingTrades(ctx)
	s.resolvePendingFundRedeems(ctx, head)
}

func (s *Syncer) resolvePendingTransactions(ctx context.Context, head uint64) {
	pending, err := s.store.FindPendingTransactions()
	if err != nil {
		s.logger.Error("failed to load pending transactions", zap.Error(err))
		return
	}

	for _, tx := range pending {
		resolved, err := s.resolveTransaction(ctx, tx, head)
		if err != nil {
			s.logger.Error("failed to resolve pending transaction",
				zap.String("txid", tx.Txid),
				zap.String("type", string(tx.Type)),
				zap.Error(err))
			continue
		}
		if !resolved {
			continue
		}

		s.metrics.PendingResolved.WithLabelValues(string(tx.Status)).Inc()

		if err := s.followUp(ctx, tx); err != nil {
			s.logger.Error("follow-up failed",
				zap.String("txid", tx.Txid),
				zap.String("type", string(tx.Type)),
				zap.String("status", string(tx.Status)),
				zap.Error(err))
		}
	}
}

// resolveTransaction checks one pending ledger record for confirmation and
// persists its terminal state. It reports whether the record left PENDING.
//
// A native-coin transfer produces no contract receipt; its confirmation
// comes from the wallet's own view, with the effective block back-computed
// from the confirmation count.
func (s *Syncer) resolveTransaction(ctx context.Context, tx *types.Transaction, head uint64) (bool, error) {
	if (tx.Type == types.TxTypeTransfer || tx.Type == types.TxTypeFundExchange) &&
		tx.Token == constants.NativeToken {
		return s.resolveDirectTransfer(ctx, tx, head)
	}

	receipts, err := s.chain.GetTransactionReceipt(ctx, tx.Txid)
	if err != nil {
		return false, err
	}
	if len(receipts) == 0 {
		// not mined yet
		return false, nil
	}

	receipt := receipts[0]
	tx.BlockNum = receipt.BlockNumber
	tx.GasUsed = receipt.GasUsed
	if header, err := s.chain.GetBlock(ctx, receipt.BlockHash); err == nil {
		tx.BlockTime = header.Time
	}

	// a mined receipt with an empty event log is a reverted call
	if logsEmpty(receipt) {
		tx.Status = types.TxStatusFail
	} else {
		tx.Status = types.TxStatusSuccess
	}

	if err := s.store.PutTransaction(tx); err != nil {
		return false, err
	}
	return true, nil
}

func logsEmpty(r chain.Receipt) bool {
	for _, l := range r.Log {
		if !l.Empty() {
			return false
		}
	}
	return true
}

func (s *Syncer) resolveDirectTransfer(ctx context.Context, tx *types.Transaction, head uint64) (bool, error) {
	walletTx, err := s.wallet.GetWalletTransaction(ctx, tx.Txid)
	if err != nil {
		return false, err
	}
	if walletTx.Confirmations <= 0 {
		return false, nil
	}

	tx.Status = types.TxStatusSuccess
	tx.BlockNum = head - uint64(walletTx.Confirmations) + 1
	if used, err := chain.GasUsedFromFee(walletTx.Fee, constants.DefaultGasPrice); err == nil {
		tx.GasUsed = used
	}

	if err := s.store.PutTransaction(tx); err != nil {
		return false, err
	}
	return true, nil
}

// followUp executes the one action a terminal transaction triggers, chosen
// by its recorded type. Approvals submit the real action on success and
// reset the allowance on failure; a failed creation deletes the speculative
// records that never reached the chain. Every other type is final.
func (s *Syncer) followUp(ctx context.Context, tx *types.Transaction) error {
	switch tx.Type {
	case types.TxTypeApproveCreateEvent:
		if tx.Status == types.TxStatusSuccess {
			return s.submitCreateTopic(ctx, tx)
		}
		if err := s.resetApproval(ctx, tx); err != nil {
			return err
		}
		return s.deleteSpeculative(tx.Txid)

	case types.TxTypeApproveSetResult:
		if tx.Status == types.TxStatusSuccess {
			return s.submitSetResult(ctx, tx)
		}
		return s.resetApproval(ctx, tx)

	case types.TxTypeApproveVote:
		if tx.Status == types.TxStatusSuccess {
			return s.submitVote(ctx, tx)
		}
		return s.resetApproval(ctx, tx)

	case types.TxTypeCreateEvent:
		if tx.Status == types.TxStatusFail {
			return s.deleteSpeculative(tx.Txid)
		}
		return nil

	default:
		return nil
	}
}

// submitCreateTopic submits the real topic creation after its approval
// confirmed, inserts the PENDING ledger record for it and repoints the
// speculative Topic/Oracle records from the approval's txid to the new one.
func (s *Syncer) submitCreateTopic(ctx context.Context, approval *types.Transaction) error {
	sent, err := s.chain.CreateTopic(ctx, s.contracts.EventFactory.Address, chain.CreateTopicParams{
		ResultSetter:           approval.ResultSetterAddress,
		Name:                   approval.Name,
		Options:                approval.Options,
		BettingStartTime:       approval.BettingStartTime,
		BettingEndTime:         approval.BettingEndTime,
		ResultSettingStartTime: approval.ResultSettingStartTime,
		ResultSettingEndTime:   approval.ResultSettingEndTime,
	}, approval.SenderAddress)
	if err != nil {
		return fmt.Errorf("failed to submit topic creation: %w", err)
	}

	action := followUpRecord(approval, types.TxTypeCreateEvent, sent)
	if err := s.store.MergeTransaction(action); err != nil {
		return err
	}

	// the action's txid is now the join key for the speculative records
	if err := s.store.RepointTopic(approval.Txid, sent.Txid); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to repoint topic: %w", err)
	}
	if err := s.store.RepointOracle(approval.Txid, sent.Txid); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to repoint oracle: %w", err)
	}
	return nil
}

func (s *Syncer) submitSetResult(ctx context.Context, approval *types.Transaction) error {
	if approval.OptionIdx == nil {
		return fmt.Errorf("approval %s has no result index", approval.Txid)
	}
	sent, err := s.chain.SetResult(ctx, approval.OracleAddress, *approval.OptionIdx, approval.SenderAddress)
	if err != nil {
		return fmt.Errorf("failed to submit set-result: %w", err)
	}
	return s.store.MergeTransaction(followUpRecord(approval, types.TxTypeSetResult, sent))
}

func (s *Syncer) submitVote(ctx context.Context, approval *types.Transaction) error {
	if approval.OptionIdx == nil {
		return fmt.Errorf("approval %s has no vote index", approval.Txid)
	}

	gasLimit, err := s.votingGasLimit(approval.OracleAddress, *approval.OptionIdx, approval.Amount)
	if err != nil {
		s.logger.Warn("voting gas estimate failed, using default",
			zap.String("oracle", approval.OracleAddress),
			zap.Error(err))
		gasLimit = constants.DefaultGasLimit
	}

	sent, err := s.chain.Vote(ctx, approval.OracleAddress, *approval.OptionIdx, approval.Amount, gasLimit, approval.SenderAddress)
	if err != nil {
		return fmt.Errorf("failed to submit vote: %w", err)
	}
	return s.store.MergeTransaction(followUpRecord(approval, types.TxTypeVote, sent))
}

// votingGasLimit picks the gas limit for a vote: one that would cross the
// oracle's consensus threshold deploys the next oracle round in the same
// call and needs the oracle-creation limit.
func (s *Syncer) votingGasLimit(oracleAddress string, optionIdx int, amount string) (uint64, error) {
	oracle, err := s.store.GetOracleByAddress(oracleAddress)
	if err != nil {
		return 0, err
	}
	if optionIdx < 0 || optionIdx >= len(oracle.Amounts) {
		return 0, fmt.Errorf("option index %d out of range for oracle %s", optionIdx, oracleAddress)
	}

	threshold, err := decimal.NewFromString(oracle.ConsensusThreshold)
	if err != nil {
		return 0, fmt.Errorf("oracle %s: corrupt consensus threshold: %w", oracleAddress, err)
	}
	current, err := decimal.NewFromString(oracle.Amounts[optionIdx])
	if err != nil {
		return 0, fmt.Errorf("oracle %s: corrupt amount: %w", oracleAddress, err)
	}
	voteAmount, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid vote amount %q: %w", amount, err)
	}

	if voteAmount.GreaterThanOrEqual(threshold.Sub(current)) {
		return constants.CreateOracleGasLimit, nil
	}
	return constants.DefaultGasLimit, nil
}

// resetApproval submits an approve-for-zero to clear the allowance left by
// a failed approval and records it as a PENDING RESETAPPROVE entry.
func (s *Syncer) resetApproval(ctx context.Context, approval *types.Transaction) error {
	sent, err := s.chain.Approve(ctx, s.contracts.PredToken.Address, approval.ReceiverAddress, "0", approval.SenderAddress)
	if err != nil {
		return fmt.Errorf("failed to submit approval reset: %w", err)
	}
	return s.store.MergeTransaction(followUpRecord(approval, types.TxTypeResetApprove, sent))
}

// deleteSpeculative removes the Topic/Oracle records inserted optimistically
// for a creation workflow that never reached the chain.
func (s *Syncer) deleteSpeculative(txid string) error {
	if err := s.store.DeleteTopic(txid); err != nil {
		return err
	}
	return s.store.DeleteOracle(txid)
}

// followUpRecord builds the PENDING ledger entry for a submitted follow-up,
// carrying the workflow parameters forward from the approval.
func followUpRecord(approval *types.Transaction, txType types.TxType, sent *chain.SentTx) *types.Transaction {
	next := *approval
	next.Txid = sent.Txid
	next.Type = txType
	next.Status = types.TxStatusPending
	next.CreatedTime = time.Now().Unix()
	next.GasLimit = sent.GasLimit
	next.GasPrice = sent.GasPrice
	next.GasUsed = 0
	next.BlockNum = 0
	next.BlockTime = 0
	return &next
}

func (s *Syncer) resolvePendingOrders(ctx context.Context) {
	pending, err := s.store.FindPendingOrders()
	if err != nil {
		s.logger.Error("failed to load pending orders", zap.Error(err))
		return
	}

	for _, order := range pending {
		if err := s.resolveOrder(ctx, order); err != nil {
			s.logger.Error("failed to resolve pending order",
				zap.String("txid", order.Txid),
				zap.String("status", string(order.Status)),
				zap.Error(err))
		}
	}
}

// resolveOrder confirms a locally submitted order or cancellation. A mined
// receipt with an empty log means the call reverted: a pending creation
// fails, a pending cancel falls back to ACTIVE. Success paths go through
// the event stream where possible so the on-chain order id is recorded.
func (s *Syncer) resolveOrder(ctx context.Context, order *types.Order) error {
	receipts, err := s.chain.GetTransactionReceipt(ctx, order.Txid)
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		return nil
	}
	receipt := receipts[0]

	switch order.Status {
	case types.OrderStatusPending:
		if logsEmpty(receipt) {
			order.Status = types.OrderStatusFail
			return s.store.PutOrder(order)
		}
		// confirmed: decode the creation event from the receipt so the
		// order activates without waiting for the next event batch
		for _, raw := range receipt.Log {
			if raw.EventName() != "NewOrder" {
				continue
			}
			decoded, err := decode.Order(receipt.BlockNumber, order.Txid, raw, s.tokens)
			if err != nil {
				return err
			}
			return s.store.MergeOrder(decoded)
		}
		return nil

	case types.OrderStatusPendingCancel:
		next := types.OrderStatusCanceled
		if logsEmpty(receipt) {
			// cancel reverted, the order is still live
			next = types.OrderStatusActive
		}
		if order.Status.CanTransition(next) {
			order.Status = next
			return s.store.PutOrder(order)
		}
		return nil

	default:
		return nil
	}
}

// resolvePendingFundRedeems confirms locally submitted exchange deposits
// and withdrawals. A native-coin deposit is a plain wallet send with no
// contract receipt, so it confirms through the wallet's own view the same
// way a direct transfer does; everything else goes through its receipt.
func (s *Syncer) resolvePendingFundRedeems(ctx context.Context, head uint64) {
	pending, err := s.store.FindPendingFundRedeems()
	if err != nil {
		s.logger.Error("failed to load pending fund/redeems", zap.Error(err))
		return
	}

	for _, fr := range pending {
		if err := s.resolveFundRedeem(ctx, fr, head); err != nil {
			s.logger.Error("failed to resolve pending fund/redeem",
				zap.String("txid", fr.Txid),
				zap.String("type", string(fr.Type)),
				zap.Error(err))
		}
	}
}

func (s *Syncer) resolveFundRedeem(ctx context.Context, fr *types.FundRedeem, head uint64) error {
	if fr.Type == types.FundRedeemFund && fr.TokenName == constants.NativeToken {
		walletTx, err := s.wallet.GetWalletTransaction(ctx, fr.Txid)
		if err != nil {
			return err
		}
		if walletTx.Confirmations <= 0 {
			return nil
		}

		fr.Status = types.TxStatusSuccess
		fr.BlockNum = head - uint64(walletTx.Confirmations) + 1
		if used, err := chain.GasUsedFromFee(walletTx.Fee, constants.DefaultGasPrice); err == nil {
			fr.GasUsed = used
		}
		if hash, err := s.chain.GetBlockHash(ctx, fr.BlockNum); err == nil {
			if header, err := s.chain.GetBlock(ctx, hash); err == nil {
				fr.Time = header.Time
			}
		}
		return s.store.PutFundRedeem(fr)
	}

	receipts, err := s.chain.GetTransactionReceipt(ctx, fr.Txid)
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		// not mined yet
		return nil
	}

	receipt := receipts[0]
	fr.BlockNum = receipt.BlockNumber
	fr.GasUsed = receipt.GasUsed
	if header, err := s.chain.GetBlock(ctx, receipt.BlockHash); err == nil {
		fr.Time = header.Time
	}
	if logsEmpty(receipt) {
		fr.Status = types.TxStatusFail
	} else {
		fr.Status = types.TxStatusSuccess
	}
	return s.store.PutFundRedeem(fr)
}

func (s *Syncer) resolvePendingTrades(ctx context.Context) {
	pending, err := s.store.ListTrades(store.TradeFilter{Status: types.TradeStatusPending})
	if err != nil {
		s.logger.Error("failed to load pending trades", zap.Error(err))
		return
	}

	for _, trade := range pending {
		receipts, err := s.chain.GetTransactionReceipt(ctx, trade.Txid)
		if err != nil {
			s.logger.Error("failed to resolve pending trade",
				zap.String("txid", trade.Txid), zap.Error(err))
			continue
		}
		if len(receipts) == 0 {
			continue
		}

		if logsEmpty(receipts[0]) {
			trade.Status = types.TradeStatusFail
		} else {
			trade.Status = types.TradeStatusConfirmed
			trade.BlockNum = receipts[0].BlockNumber
		}
		if err := s.store.PutTrade(trade); err != nil {
			s.logger.Error("failed to persist resolved trade",
				zap.String("txid", trade.Txid), zap.Error(err))
		}
	}
}
