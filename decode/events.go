package decode

import (
	"fmt"

	"github.com/openpredict/chainsync/types"
)

// zeroAmounts returns an all-"0" per-option total slice
func zeroAmounts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "0"
	}
	return out
}

// Topic decodes a TopicCreated log into a Topic record. Option arrays are
// padded on chain; _numOfResults bounds the real option count.
func Topic(blockNum uint64, txid string, l RawLog) (*types.Topic, error) {
	version, err := l.Uint64("_version")
	if err != nil {
		return nil, err
	}
	address, err := l.Address("_topicAddress")
	if err != nil {
		return nil, err
	}
	creator, err := l.Address("_creatorAddress")
	if err != nil {
		return nil, err
	}
	name, err := l.String("_name")
	if err != nil {
		return nil, err
	}
	options, err := l.StringSlice("_resultNames")
	if err != nil {
		return nil, err
	}
	numResults, err := l.Int("_numOfResults")
	if err != nil {
		return nil, err
	}
	if numResults <= 0 || numResults > len(options) {
		return nil, fmt.Errorf("topic %s: result count %d out of range for %d options", txid, numResults, len(options))
	}
	options = options[:numResults]

	return &types.Topic{
		Txid:        txid,
		BlockNum:    blockNum,
		Address:     address,
		Creator:     creator,
		Version:     uint16(version),
		Name:        name,
		Options:     options,
		Status:      types.PhaseCreated,
		BetAmounts:  zeroAmounts(numResults),
		VoteAmounts: zeroAmounts(numResults),
	}, nil
}

// CentralizedOracle decodes a CentralizedOracleCreated log. The topic's
// name and options are not in the log; the sync step copies them from the
// owning Topic record before merging.
func CentralizedOracle(blockNum uint64, txid string, l RawLog, nativeToken string) (*types.Oracle, error) {
	version, err := l.Uint64("_version")
	if err != nil {
		return nil, err
	}
	address, err := l.Address("_contractAddress")
	if err != nil {
		return nil, err
	}
	topicAddress, err := l.Address("_eventAddress")
	if err != nil {
		return nil, err
	}
	resultSetter, err := l.Address("_oracle")
	if err != nil {
		return nil, err
	}
	numResults, err := l.Int("_numOfResults")
	if err != nil {
		return nil, err
	}
	if numResults <= 0 {
		return nil, fmt.Errorf("oracle %s: result count %d out of range", txid, numResults)
	}
	startTime, err := l.Int64("_bettingStartTime")
	if err != nil {
		return nil, err
	}
	endTime, err := l.Int64("_bettingEndTime")
	if err != nil {
		return nil, err
	}
	resultSetStart, err := l.Int64("_resultSettingStartTime")
	if err != nil {
		return nil, err
	}
	resultSetEnd, err := l.Int64("_resultSettingEndTime")
	if err != nil {
		return nil, err
	}
	threshold, err := l.tokenAmountField("_consensusThreshold")
	if err != nil {
		return nil, err
	}

	optionIdxs := make([]int, numResults)
	for i := range optionIdxs {
		optionIdxs[i] = i
	}

	return &types.Oracle{
		Txid:               txid,
		BlockNum:           blockNum,
		Address:            address,
		TopicAddress:       topicAddress,
		ResultSetter:       resultSetter,
		Version:            uint16(version),
		OptionIdxs:         optionIdxs,
		Status:             types.PhaseCreated,
		Token:              nativeToken,
		Amounts:            zeroAmounts(numResults),
		ConsensusThreshold: threshold,
		StartTime:          startTime,
		EndTime:            endTime,
		ResultSetStartTime: resultSetStart,
		ResultSetEndTime:   resultSetEnd,
	}, nil
}

// DecentralizedOracle decodes a DecentralizedOracleCreated log. The index
// dropped from _lastResultIndex is the previous round's winner and is not
// votable this round.
func DecentralizedOracle(blockNum uint64, txid string, l RawLog, predToken string) (*types.Oracle, error) {
	version, err := l.Uint64("_version")
	if err != nil {
		return nil, err
	}
	address, err := l.Address("_contractAddress")
	if err != nil {
		return nil, err
	}
	topicAddress, err := l.Address("_eventAddress")
	if err != nil {
		return nil, err
	}
	numResults, err := l.Int("_numOfResults")
	if err != nil {
		return nil, err
	}
	lastResultIdx, err := l.Int("_lastResultIndex")
	if err != nil {
		return nil, err
	}
	if numResults <= 0 || lastResultIdx < 0 || lastResultIdx >= numResults {
		return nil, fmt.Errorf("oracle %s: last result index %d out of range for %d options", txid, lastResultIdx, numResults)
	}
	endTime, err := l.Int64("_arbitrationEndTime")
	if err != nil {
		return nil, err
	}
	threshold, err := l.tokenAmountField("_consensusThreshold")
	if err != nil {
		return nil, err
	}

	optionIdxs := make([]int, 0, numResults-1)
	for i := 0; i < numResults; i++ {
		if i != lastResultIdx {
			optionIdxs = append(optionIdxs, i)
		}
	}

	return &types.Oracle{
		Txid:               txid,
		BlockNum:           blockNum,
		Address:            address,
		TopicAddress:       topicAddress,
		Version:            uint16(version),
		OptionIdxs:         optionIdxs,
		Status:             types.PhaseVoting,
		Token:              predToken,
		Amounts:            zeroAmounts(numResults),
		ConsensusThreshold: threshold,
		EndTime:            endTime,
	}, nil
}

// Vote decodes an OracleResultVoted log. The vote's token and the owning
// topic address are oracle attributes; the sync step denormalizes them in.
func Vote(blockNum uint64, txid string, l RawLog) (*types.Vote, error) {
	version, err := l.Uint64("_version")
	if err != nil {
		return nil, err
	}
	oracleAddress, err := l.Address("_oracleAddress")
	if err != nil {
		return nil, err
	}
	voter, err := l.Address("_participant")
	if err != nil {
		return nil, err
	}
	optionIdx, err := l.Int("_resultIndex")
	if err != nil {
		return nil, err
	}
	amount, err := l.tokenAmountField("_votedAmount")
	if err != nil {
		return nil, err
	}

	return &types.Vote{
		Txid:          txid,
		BlockNum:      blockNum,
		OracleAddress: oracleAddress,
		Voter:         voter,
		OptionIdx:     optionIdx,
		Amount:        amount,
		Version:       uint16(version),
	}, nil
}

// ResultSet is the decoded form of an OracleResultSet log
type ResultSet struct {
	Txid          string
	BlockNum      uint64
	OracleAddress string
	ResultIdx     int
}

// OracleResultSet decodes an OracleResultSet log
func OracleResultSet(blockNum uint64, txid string, l RawLog) (*ResultSet, error) {
	oracleAddress, err := l.Address("_oracleAddress")
	if err != nil {
		return nil, err
	}
	resultIdx, err := l.Int("_resultIndex")
	if err != nil {
		return nil, err
	}

	return &ResultSet{
		Txid:          txid,
		BlockNum:      blockNum,
		OracleAddress: oracleAddress,
		ResultIdx:     resultIdx,
	}, nil
}

// FinalResult is the decoded form of a FinalResultSet log
type FinalResult struct {
	Txid         string
	BlockNum     uint64
	TopicAddress string
	ResultIdx    int
}

// FinalResultSet decodes a FinalResultSet log
func FinalResultSet(blockNum uint64, txid string, l RawLog) (*FinalResult, error) {
	topicAddress, err := l.Address("_eventAddress")
	if err != nil {
		return nil, err
	}
	resultIdx, err := l.Int("_finalResultIndex")
	if err != nil {
		return nil, err
	}

	return &FinalResult{
		Txid:         txid,
		BlockNum:     blockNum,
		TopicAddress: topicAddress,
		ResultIdx:    resultIdx,
	}, nil
}
