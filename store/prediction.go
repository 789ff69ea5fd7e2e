package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/openpredict/chainsync/types"
)

// GetTopic returns the topic record with the given txid
func (s *Store) GetTopic(txid string) (*types.Topic, error) {
	var t types.Topic
	if err := s.getJSON(TopicKey(txid), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTopicByAddress resolves a topic through its address index
func (s *Store) GetTopicByAddress(address string) (*types.Topic, error) {
	txid, err := s.getRaw(TopicAddressIndexKey(address))
	if err != nil {
		return nil, err
	}
	return s.GetTopic(string(txid))
}

// MergeTopic upserts a topic by txid. An existing record is updated in
// place: the status only moves forward, a nil incoming result index keeps
// the stored one, and reconciled amount totals are not clobbered by the
// decoder's zero slices.
func (s *Store) MergeTopic(t *types.Topic) error {
	existing, err := s.GetTopic(t.Txid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	merged := *t
	if existing != nil {
		if merged.Status != existing.Status && !existing.Status.CanTransition(merged.Status) {
			merged.Status = existing.Status
		}
		if merged.ResultIdx == nil {
			merged.ResultIdx = existing.ResultIdx
		}
		if allZero(merged.BetAmounts) && len(existing.BetAmounts) == len(merged.BetAmounts) {
			merged.BetAmounts = existing.BetAmounts
		}
		if allZero(merged.VoteAmounts) && len(existing.VoteAmounts) == len(merged.VoteAmounts) {
			merged.VoteAmounts = existing.VoteAmounts
		}
		if merged.Address == "" {
			merged.Address = existing.Address
		}
	}

	return s.putTopic(&merged)
}

// PutTopic overwrites a topic record wholesale
func (s *Store) PutTopic(t *types.Topic) error {
	return s.putTopic(t)
}

func (s *Store) putTopic(t *types.Topic) error {
	if err := s.putJSON(TopicKey(t.Txid), t); err != nil {
		return err
	}
	if t.Address != "" {
		return s.putRaw(TopicAddressIndexKey(t.Address), []byte(t.Txid))
	}
	return nil
}

// DeleteTopic removes a speculative topic record and its address index.
// Only records that never reached the chain are ever deleted.
func (s *Store) DeleteTopic(txid string) error {
	t, err := s.GetTopic(txid)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if t.Address != "" {
		if err := s.delete(TopicAddressIndexKey(t.Address)); err != nil {
			return err
		}
	}
	return s.delete(TopicKey(txid))
}

// RepointTopic moves a topic record from one txid key to another, used when
// an approval's follow-up submission takes over a speculative record.
func (s *Store) RepointTopic(oldTxid, newTxid string) error {
	t, err := s.GetTopic(oldTxid)
	if err != nil {
		return err
	}
	t.Txid = newTxid
	if err := s.putTopic(t); err != nil {
		return err
	}
	return s.delete(TopicKey(oldTxid))
}

// TopicFilter narrows ListTopics results
type TopicFilter struct {
	Statuses []types.Phase
	Limit    int
	Offset   int
}

// ListTopics returns topics matching the filter, newest block first
func (s *Store) ListTopics(filter TopicFilter) ([]*types.Topic, error) {
	var out []*types.Topic
	err := s.forEach(prefixTopics, func(val []byte) (bool, error) {
		var t types.Topic
		if err := json.Unmarshal(val, &t); err != nil {
			return false, fmt.Errorf("corrupt topic record: %w", err)
		}
		if matchPhase(filter.Statuses, t.Status) {
			out = append(out, &t)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNum != out[j].BlockNum {
			return out[i].BlockNum > out[j].BlockNum
		}
		return out[i].Txid < out[j].Txid
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

// GetOracle returns the oracle record with the given txid
func (s *Store) GetOracle(txid string) (*types.Oracle, error) {
	var o types.Oracle
	if err := s.getJSON(OracleKey(txid), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOracleByAddress resolves an oracle through its address index
func (s *Store) GetOracleByAddress(address string) (*types.Oracle, error) {
	txid, err := s.getRaw(OracleAddressIndexKey(address))
	if err != nil {
		return nil, err
	}
	return s.GetOracle(string(txid))
}

// MergeOracle upserts an oracle by txid with the same field-level rules as
// MergeTopic.
func (s *Store) MergeOracle(o *types.Oracle) error {
	existing, err := s.GetOracle(o.Txid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	merged := *o
	if existing != nil {
		if merged.Status != existing.Status && !existing.Status.CanTransition(merged.Status) {
			merged.Status = existing.Status
		}
		if merged.ResultIdx == nil {
			merged.ResultIdx = existing.ResultIdx
		}
		if allZero(merged.Amounts) && len(existing.Amounts) == len(merged.Amounts) {
			merged.Amounts = existing.Amounts
		}
		if merged.Address == "" {
			merged.Address = existing.Address
		}
		if merged.Name == "" {
			merged.Name = existing.Name
		}
		if len(merged.Options) == 0 {
			merged.Options = existing.Options
		}
	}

	return s.putOracle(&merged)
}

// PutOracle overwrites an oracle record wholesale
func (s *Store) PutOracle(o *types.Oracle) error {
	return s.putOracle(o)
}

func (s *Store) putOracle(o *types.Oracle) error {
	if err := s.putJSON(OracleKey(o.Txid), o); err != nil {
		return err
	}
	if o.Address != "" {
		return s.putRaw(OracleAddressIndexKey(o.Address), []byte(o.Txid))
	}
	return nil
}

// DeleteOracle removes a speculative oracle record and its address index
func (s *Store) DeleteOracle(txid string) error {
	o, err := s.GetOracle(txid)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if o.Address != "" {
		if err := s.delete(OracleAddressIndexKey(o.Address)); err != nil {
			return err
		}
	}
	return s.delete(OracleKey(txid))
}

// RepointOracle moves an oracle record from one txid key to another
func (s *Store) RepointOracle(oldTxid, newTxid string) error {
	o, err := s.GetOracle(oldTxid)
	if err != nil {
		return err
	}
	o.Txid = newTxid
	if err := s.putOracle(o); err != nil {
		return err
	}
	return s.delete(OracleKey(oldTxid))
}

// OracleFilter narrows ListOracles results
type OracleFilter struct {
	Statuses     []types.Phase
	TopicAddress string
	Token        string
	Limit        int
	Offset       int
}

// ListOracles returns oracles matching the filter, newest block first
func (s *Store) ListOracles(filter OracleFilter) ([]*types.Oracle, error) {
	var out []*types.Oracle
	err := s.forEach(prefixOracles, func(val []byte) (bool, error) {
		var o types.Oracle
		if err := json.Unmarshal(val, &o); err != nil {
			return false, fmt.Errorf("corrupt oracle record: %w", err)
		}
		if !matchPhase(filter.Statuses, o.Status) {
			return true, nil
		}
		if filter.TopicAddress != "" && o.TopicAddress != filter.TopicAddress {
			return true, nil
		}
		if filter.Token != "" && o.Token != filter.Token {
			return true, nil
		}
		out = append(out, &o)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNum != out[j].BlockNum {
			return out[i].BlockNum > out[j].BlockNum
		}
		return out[i].Txid < out[j].Txid
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

// SetOracleResult records a decided round: the oracle gets its result index
// and advances out of VOTING if the voting window close was not yet swept.
func (s *Store) SetOracleResult(address string, resultIdx int) error {
	o, err := s.GetOracleByAddress(address)
	if err != nil {
		return err
	}
	o.ResultIdx = &resultIdx
	if o.Status.CanTransition(types.PhaseWaitResult) {
		o.Status = types.PhaseWaitResult
	}
	return s.putOracle(o)
}

// FinalizeTopic marks a topic and every oracle round under it withdrawn,
// recording the final result index on the topic.
func (s *Store) FinalizeTopic(address string, resultIdx int) error {
	t, err := s.GetTopicByAddress(address)
	if err != nil {
		return err
	}
	t.ResultIdx = &resultIdx
	if t.Status.CanTransition(types.PhaseWithdraw) {
		t.Status = types.PhaseWithdraw
	}
	if err := s.putTopic(t); err != nil {
		return err
	}

	oracles, err := s.ListOracles(OracleFilter{TopicAddress: address})
	if err != nil {
		return err
	}
	for _, o := range oracles {
		if !o.Status.CanTransition(types.PhaseWithdraw) {
			continue
		}
		o.Status = types.PhaseWithdraw
		if err := s.putOracle(o); err != nil {
			return err
		}
	}
	return nil
}

// SweepBettingOpened moves every CREATED oracle whose betting window has
// started by chain time into VOTING, advancing the owning topic with it.
// Returns the number of oracles moved.
func (s *Store) SweepBettingOpened(chainTime int64) (int, error) {
	oracles, err := s.ListOracles(OracleFilter{Statuses: []types.Phase{types.PhaseCreated}})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, o := range oracles {
		if o.StartTime > chainTime {
			continue
		}
		o.Status = types.PhaseVoting
		if err := s.putOracle(o); err != nil {
			return moved, err
		}
		moved++

		if o.TopicAddress == "" {
			continue
		}
		t, err := s.GetTopicByAddress(o.TopicAddress)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return moved, err
		}
		if t.Status.CanTransition(types.PhaseVoting) {
			t.Status = types.PhaseVoting
			if err := s.putTopic(t); err != nil {
				return moved, err
			}
		}
	}
	return moved, nil
}

// SweepVotingClosed moves every VOTING oracle whose voting window has ended
// by chain time into WAITRESULT. Returns the number of oracles moved.
func (s *Store) SweepVotingClosed(chainTime int64) (int, error) {
	oracles, err := s.ListOracles(OracleFilter{Statuses: []types.Phase{types.PhaseVoting}})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, o := range oracles {
		if o.EndTime > chainTime {
			continue
		}
		o.Status = types.PhaseWaitResult
		if err := s.putOracle(o); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// SweepResultSetClosed moves every centralized oracle stuck in WAITRESULT
// past its result-setting deadline into OPENRESULTSET, opening the result to
// anyone. Must run after SweepVotingClosed in the same cycle so an oracle
// can cross both thresholds in one window.
func (s *Store) SweepResultSetClosed(chainTime int64, nativeToken string) (int, error) {
	oracles, err := s.ListOracles(OracleFilter{
		Statuses: []types.Phase{types.PhaseWaitResult},
		Token:    nativeToken,
	})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, o := range oracles {
		if o.ResultSetEndTime > chainTime {
			continue
		}
		o.Status = types.PhaseOpenResultSet
		if err := s.putOracle(o); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// MergeVote inserts a vote if its txid is unseen. Votes are append-only;
// replaying a batch never duplicates or rewrites them.
func (s *Store) MergeVote(v *types.Vote) error {
	var existing types.Vote
	err := s.getJSON(VoteKey(v.Txid), &existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.putJSON(VoteKey(v.Txid), v)
}

// VoteFilter narrows ListVotes results
type VoteFilter struct {
	OracleAddress string
	Voter         string
	Limit         int
	Offset        int
}

// ListVotes returns votes matching the filter, newest block first
func (s *Store) ListVotes(filter VoteFilter) ([]*types.Vote, error) {
	var out []*types.Vote
	err := s.forEach(prefixVotes, func(val []byte) (bool, error) {
		var v types.Vote
		if err := json.Unmarshal(val, &v); err != nil {
			return false, fmt.Errorf("corrupt vote record: %w", err)
		}
		if filter.OracleAddress != "" && v.OracleAddress != filter.OracleAddress {
			return true, nil
		}
		if filter.Voter != "" && v.Voter != filter.Voter {
			return true, nil
		}
		out = append(out, &v)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNum != out[j].BlockNum {
			return out[i].BlockNum > out[j].BlockNum
		}
		return out[i].Txid < out[j].Txid
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

func matchPhase(want []types.Phase, got types.Phase) bool {
	if len(want) == 0 {
		return true
	}
	for _, p := range want {
		if p == got {
			return true
		}
	}
	return false
}

func allZero(amounts []string) bool {
	for _, a := range amounts {
		if a != "0" && a != "" {
			return false
		}
	}
	return true
}

func paginate[T any](in []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
