package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/openpredict/chainsync/types"
)

// GetTransaction returns the ledger record with the given txid
func (s *Store) GetTransaction(txid string) (*types.Transaction, error) {
	var tx types.Transaction
	if err := s.getJSON(TransactionKey(txid), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// MergeTransaction upserts a ledger record by txid. A terminal status never
// regresses to PENDING on replay.
func (s *Store) MergeTransaction(tx *types.Transaction) error {
	existing, err := s.GetTransaction(tx.Txid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	merged := *tx
	if existing != nil && existing.Status.Terminal() && merged.Status == types.TxStatusPending {
		merged.Status = existing.Status
	}

	return s.putJSON(TransactionKey(merged.Txid), &merged)
}

// PutTransaction overwrites a ledger record wholesale
func (s *Store) PutTransaction(tx *types.Transaction) error {
	return s.putJSON(TransactionKey(tx.Txid), tx)
}

// FindPendingTransactions returns all ledger records still awaiting
// confirmation, oldest first so follow-ups submit in creation order.
func (s *Store) FindPendingTransactions() ([]*types.Transaction, error) {
	txs, err := s.ListTransactions(TransactionFilter{
		Statuses: []types.TxStatus{types.TxStatusPending},
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedTime != txs[j].CreatedTime {
			return txs[i].CreatedTime < txs[j].CreatedTime
		}
		return txs[i].Txid < txs[j].Txid
	})
	return txs, nil
}

// TransactionFilter narrows ListTransactions results
type TransactionFilter struct {
	Types    []types.TxType
	Statuses []types.TxStatus
	Sender   string
	Limit    int
	Offset   int
}

// ListTransactions returns ledger records matching the filter, newest
// created first.
func (s *Store) ListTransactions(filter TransactionFilter) ([]*types.Transaction, error) {
	var out []*types.Transaction
	err := s.forEach(prefixTxs, func(val []byte) (bool, error) {
		var tx types.Transaction
		if err := json.Unmarshal(val, &tx); err != nil {
			return false, fmt.Errorf("corrupt transaction record: %w", err)
		}
		if !matchTxType(filter.Types, tx.Type) {
			return true, nil
		}
		if !matchTxStatus(filter.Statuses, tx.Status) {
			return true, nil
		}
		if filter.Sender != "" && tx.SenderAddress != filter.Sender {
			return true, nil
		}
		out = append(out, &tx)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedTime != out[j].CreatedTime {
			return out[i].CreatedTime > out[j].CreatedTime
		}
		return out[i].Txid < out[j].Txid
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

func matchTxType(want []types.TxType, got types.TxType) bool {
	if len(want) == 0 {
		return true
	}
	for _, t := range want {
		if t == got {
			return true
		}
	}
	return false
}

func matchTxStatus(want []types.TxStatus, got types.TxStatus) bool {
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
