package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/openpredict/chainsync/decode"
	"github.com/openpredict/chainsync/internal/constants"
)

// callUintWords runs a read-only contract call and parses its word output
func (c *Client) callUintWords(ctx context.Context, contractAddress, data string) ([]string, error) {
	result, err := c.CallContract(ctx, contractAddress, data)
	if err != nil {
		return nil, err
	}
	words, err := parseUintWords(result.ExecutionResult.Output)
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", contractAddress, err)
	}
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = decode.TokenAmount(w)
	}
	return out, nil
}

// GetTotalBets returns an oracle's per-option bet totals in token units,
// trimmed to the option count.
func (c *Client) GetTotalBets(ctx context.Context, oracleAddress string, numOptions int) ([]string, error) {
	amounts, err := c.callUintWords(ctx, oracleAddress, encodeCall(selGetTotalBets))
	if err != nil {
		return nil, err
	}
	if numOptions > 0 && numOptions < len(amounts) {
		amounts = amounts[:numOptions]
	}
	return amounts, nil
}

// GetTotalVotes returns an oracle's per-option vote totals in token units,
// trimmed to the option count.
func (c *Client) GetTotalVotes(ctx context.Context, oracleAddress string, numOptions int) ([]string, error) {
	amounts, err := c.callUintWords(ctx, oracleAddress, encodeCall(selGetTotalVotes))
	if err != nil {
		return nil, err
	}
	if numOptions > 0 && numOptions < len(amounts) {
		amounts = amounts[:numOptions]
	}
	return amounts, nil
}

// TokenBalanceOf returns a holder's token balance in token units
func (c *Client) TokenBalanceOf(ctx context.Context, tokenAddress, holder string) (string, error) {
	amounts, err := c.callUintWords(ctx, tokenAddress,
		encodeCall(selBalanceOf, wordFromAddress(holder)))
	if err != nil {
		return "", err
	}
	if len(amounts) == 0 {
		return "", fmt.Errorf("token %s: empty balanceOf output", tokenAddress)
	}
	return amounts[0], nil
}

// TokenAllowance returns a spender's remaining allowance in token units
func (c *Client) TokenAllowance(ctx context.Context, tokenAddress, owner, spender string) (string, error) {
	amounts, err := c.callUintWords(ctx, tokenAddress,
		encodeCall(selAllowance, wordFromAddress(owner), wordFromAddress(spender)))
	if err != nil {
		return "", err
	}
	if len(amounts) == 0 {
		return "", fmt.Errorf("token %s: empty allowance output", tokenAddress)
	}
	return amounts[0], nil
}

// ExchangeBalanceOf returns a holder's deposited exchange balance for one
// token, in token units.
func (c *Client) ExchangeBalanceOf(ctx context.Context, exchangeAddress, tokenAddress, holder string) (string, error) {
	amounts, err := c.callUintWords(ctx, exchangeAddress,
		encodeCall(selExchangeBalance, wordFromAddress(tokenAddress), wordFromAddress(holder)))
	if err != nil {
		return "", err
	}
	if len(amounts) == 0 {
		return "", fmt.Errorf("exchange %s: empty balanceOf output", exchangeAddress)
	}
	return amounts[0], nil
}

// Approve submits an allowance approval on a token contract. amount is in
// token units; approving "0" resets a stale allowance.
func (c *Client) Approve(ctx context.Context, tokenAddress, spender, amount, sender string) (*SentTx, error) {
	fixed, err := ToFixedPoint(amount)
	if err != nil {
		return nil, err
	}
	data := encodeCall(selApprove, wordFromAddress(spender), wordFromBigInt(fixed))
	return c.SendToContract(ctx, tokenAddress, data, "0",
		constants.DefaultGasLimit, constants.DefaultGasPrice, sender)
}

// TokenTransfer submits a token transfer
func (c *Client) TokenTransfer(ctx context.Context, tokenAddress, to, amount, sender string) (*SentTx, error) {
	fixed, err := ToFixedPoint(amount)
	if err != nil {
		return nil, err
	}
	data := encodeCall(selTransfer, wordFromAddress(to), wordFromBigInt(fixed))
	return c.SendToContract(ctx, tokenAddress, data, "0",
		constants.DefaultGasLimit, constants.DefaultGasPrice, sender)
}

// CreateTopicParams carries the event scheduling parameters of a topic
// creation call.
type CreateTopicParams struct {
	ResultSetter           string
	Name                   string
	Options                []string
	BettingStartTime       int64
	BettingEndTime         int64
	ResultSettingStartTime int64
	ResultSettingEndTime   int64
}

// CreateTopic submits a topic creation call on the event factory. Name and
// option labels occupy fixed bytes32 array slots on chain.
func (c *Client) CreateTopic(ctx context.Context, eventFactoryAddress string, p CreateTopicParams, sender string) (*SentTx, error) {
	if len(p.Options) > nameWords {
		return nil, fmt.Errorf("too many options: %d > %d", len(p.Options), nameWords)
	}

	words := []string{
		wordFromAddress(p.ResultSetter),
		wordsFromString(p.Name, nameWords),
	}
	for _, opt := range p.Options {
		words = append(words, wordsFromString(opt, 1))
	}
	for i := len(p.Options); i < nameWords; i++ {
		words = append(words, wordsFromString("", 1))
	}
	words = append(words,
		wordFromUint64(uint64(p.BettingStartTime)),
		wordFromUint64(uint64(p.BettingEndTime)),
		wordFromUint64(uint64(p.ResultSettingStartTime)),
		wordFromUint64(uint64(p.ResultSettingEndTime)),
	)

	data := encodeCall(selCreateTopic, words...)
	return c.SendToContract(ctx, eventFactoryAddress, data, "0",
		constants.DefaultGasLimit, constants.DefaultGasPrice, sender)
}

// SetResult submits a centralized oracle's result
func (c *Client) SetResult(ctx context.Context, oracleAddress string, resultIdx int, sender string) (*SentTx, error) {
	data := encodeCall(selSetResult, wordFromInt(resultIdx))
	return c.SendToContract(ctx, oracleAddress, data, "0",
		constants.DefaultGasLimit, constants.DefaultGasPrice, sender)
}

// Vote submits a vote on an oracle option. gasLimit is caller-selected: a
// vote expected to cross the consensus threshold deploys the next oracle
// round and needs the larger limit.
func (c *Client) Vote(ctx context.Context, oracleAddress string, resultIdx int, amount string, gasLimit uint64, sender string) (*SentTx, error) {
	fixed, err := ToFixedPoint(amount)
	if err != nil {
		return nil, err
	}
	data := encodeCall(selVote, wordFromInt(resultIdx), wordFromBigInt(fixed))
	return c.SendToContract(ctx, oracleAddress, data, "0",
		gasLimit, constants.DefaultGasPrice, sender)
}

// CreateOrderParams carries an exchange order placement. PriceMul and
// PriceDiv are the exact integer rational the contract stores.
type CreateOrderParams struct {
	SellToken string
	BuyToken  string
	PriceMul  string
	PriceDiv  string
	Amount    string
}

// CreateOrder submits an order placement on the exchange contract
func (c *Client) CreateOrder(ctx context.Context, exchangeAddress string, p CreateOrderParams, sender string) (*SentTx, error) {
	mul, ok := new(big.Int).SetString(p.PriceMul, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price numerator %q", p.PriceMul)
	}
	div, ok := new(big.Int).SetString(p.PriceDiv, 10)
	if !ok || div.Sign() == 0 {
		return nil, fmt.Errorf("invalid price denominator %q", p.PriceDiv)
	}
	fixed, err := ToFixedPoint(p.Amount)
	if err != nil {
		return nil, err
	}

	data := encodeCall(selCreateOrder,
		wordFromAddress(p.SellToken),
		wordFromAddress(p.BuyToken),
		wordFromBigInt(mul),
		wordFromBigInt(div),
		wordFromBigInt(fixed),
	)
	return c.SendToContract(ctx, exchangeAddress, data, "0",
		constants.DefaultGasLimit, constants.DefaultGasPrice, sender)
}

// CancelOrder submits an order cancellation on the exchange contract
func (c *Client) CancelOrder(ctx context.Context, exchangeAddress string, orderID uint64, sender string) (*SentTx, error) {
	data := encodeCall(selCancelOrder, wordFromUint64(orderID))
	return c.SendToContract(ctx, exchangeAddress, data, "0",
		constants.DefaultGasLimit, constants.DefaultGasPrice, sender)
}

// RedeemExchange withdraws a deposited balance from the exchange contract.
// tokenAddress is the zero address for the native coin.
func (c *Client) RedeemExchange(ctx context.Context, exchangeAddress, tokenAddress, amount, sender string) (*SentTx, error) {
	fixed, err := ToFixedPoint(amount)
	if err != nil {
		return nil, err
	}
	data := encodeCall(selRedeem, wordFromAddress(tokenAddress), wordFromBigInt(fixed))
	return c.SendToContract(ctx, exchangeAddress, data, "0",
		constants.DefaultGasLimit, constants.DefaultGasPrice, sender)
}
