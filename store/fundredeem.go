package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/openpredict/chainsync/types"
)

// GetFundRedeem returns the fund/redeem record with the given txid
func (s *Store) GetFundRedeem(txid string) (*types.FundRedeem, error) {
	var fr types.FundRedeem
	if err := s.getJSON(FundRedeemKey(txid), &fr); err != nil {
		return nil, err
	}
	return &fr, nil
}

// MergeFundRedeem upserts a fund/redeem record by txid. A terminal status
// never regresses to PENDING on replay.
func (s *Store) MergeFundRedeem(fr *types.FundRedeem) error {
	existing, err := s.GetFundRedeem(fr.Txid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	merged := *fr
	if existing != nil && existing.Status.Terminal() && merged.Status == types.TxStatusPending {
		merged.Status = existing.Status
	}

	return s.putJSON(FundRedeemKey(merged.Txid), &merged)
}

// PutFundRedeem overwrites a fund/redeem record wholesale
func (s *Store) PutFundRedeem(fr *types.FundRedeem) error {
	return s.putJSON(FundRedeemKey(fr.Txid), fr)
}

// FindPendingFundRedeems returns all fund/redeem records still awaiting
// confirmation, oldest first.
func (s *Store) FindPendingFundRedeems() ([]*types.FundRedeem, error) {
	frs, err := s.ListFundRedeems(FundRedeemFilter{
		Statuses: []types.TxStatus{types.TxStatusPending},
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(frs, func(i, j int) bool {
		if frs[i].CreatedTime != frs[j].CreatedTime {
			return frs[i].CreatedTime < frs[j].CreatedTime
		}
		return frs[i].Txid < frs[j].Txid
	})
	return frs, nil
}

// FundRedeemFilter narrows ListFundRedeems results
type FundRedeemFilter struct {
	Type      types.FundRedeemType
	Statuses  []types.TxStatus
	Owner     string
	TokenName string
	Limit     int
	Offset    int
}

// ListFundRedeems returns fund/redeem records matching the filter, newest
// created first.
func (s *Store) ListFundRedeems(filter FundRedeemFilter) ([]*types.FundRedeem, error) {
	var out []*types.FundRedeem
	err := s.forEach(prefixFundRedeems, func(val []byte) (bool, error) {
		var fr types.FundRedeem
		if err := json.Unmarshal(val, &fr); err != nil {
			return false, fmt.Errorf("corrupt fund/redeem record: %w", err)
		}
		if filter.Type != "" && fr.Type != filter.Type {
			return true, nil
		}
		if !matchTxStatus(filter.Statuses, fr.Status) {
			return true, nil
		}
		if filter.Owner != "" && fr.Owner != filter.Owner {
			return true, nil
		}
		if filter.TokenName != "" && fr.TokenName != filter.TokenName {
			return true, nil
		}
		out = append(out, &fr)
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
