// Package chain adapts the node's JSON-RPC surface to what the sync engine
// consumes: block lookups, receipt and log search, contract read calls, and
// transaction submission. The node is treated as remote, fallible and
// rate-limited; every call is context-aware and goes through a limiter.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openpredict/chainsync/internal/constants"
)

// Config holds chain client configuration
type Config struct {
	Endpoint string
	Timeout  time.Duration
	// RatePerSecond caps outgoing RPC calls; 0 disables limiting
	RatePerSecond int
	// SenderAddress is the default sender for read-only contract calls
	SenderAddress string
	Logger        *zap.Logger
}

// Client is the rate-limited JSON-RPC chain client
type Client struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
	timeout time.Duration
	sender  string
	logger  *zap.Logger
}

// Dial connects to the node's RPC endpoint
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultQueryTimeout
	}

	logger.Info("connected to chain RPC", zap.String("endpoint", cfg.Endpoint))

	return &Client{
		rpc:     rpcClient,
		limiter: limiter,
		timeout: timeout,
		sender:  cfg.SenderAddress,
		logger:  logger,
	}, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// call waits for the rate limiter, then issues one RPC call under the
// configured timeout.
func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rpc.CallContext(callCtx, result, method, args...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// GetBlockCount returns the current chain height
func (c *Client) GetBlockCount(ctx context.Context) (uint64, error) {
	var count uint64
	if err := c.call(ctx, &count, "getblockcount"); err != nil {
		return 0, err
	}
	return count, nil
}

// GetBlockHash returns the hash of the block at the given height
func (c *Client) GetBlockHash(ctx context.Context, height uint64) (string, error) {
	var hash string
	if err := c.call(ctx, &hash, "getblockhash", height); err != nil {
		return "", err
	}
	return hash, nil
}

// GetBlock returns the header fields of the block with the given hash
func (c *Client) GetBlock(ctx context.Context, hash string) (*BlockHeader, error) {
	var header BlockHeader
	if err := c.call(ctx, &header, "getblock", hash); err != nil {
		return nil, err
	}
	return &header, nil
}

// GetTransactionReceipt returns the receipts recorded for a transaction.
// An empty slice means the transaction is not mined yet.
func (c *Client) GetTransactionReceipt(ctx context.Context, txid string) ([]Receipt, error) {
	var receipts []Receipt
	if err := c.call(ctx, &receipts, "gettransactionreceipt", txid); err != nil {
		return nil, err
	}
	return receipts, nil
}

// SearchLogs returns every log in [fromBlock, toBlock] emitted by the given
// contract addresses for the given event signatures, with arguments decoded
// into name-keyed sets.
func (c *Client) SearchLogs(ctx context.Context, fromBlock, toBlock uint64, addresses, topics []string) ([]SearchLogEntry, error) {
	addrFilter := map[string][]string{"addresses": addresses}
	topicFilter := map[string][]string{"topics": topics}

	var entries []SearchLogEntry
	if err := c.call(ctx, &entries, "searchlogs", fromBlock, toBlock, addrFilter, topicFilter); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetPeerInfo returns the connected peers
func (c *Client) GetPeerInfo(ctx context.Context) ([]Peer, error) {
	var peers []Peer
	if err := c.call(ctx, &peers, "getpeerinfo"); err != nil {
		return nil, err
	}
	return peers, nil
}

// CallContract executes a read-only contract call and returns its output
func (c *Client) CallContract(ctx context.Context, contractAddress, data string) (*ExecutionResult, error) {
	var result ExecutionResult
	if err := c.call(ctx, &result, "callcontract", contractAddress, data, c.sender); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendToContract submits a state-changing contract call through the wallet.
// amount is in token units of the native coin.
func (c *Client) SendToContract(ctx context.Context, contractAddress, data, amount string, gasLimit uint64, gasPrice, sender string) (*SentTx, error) {
	var sent SentTx
	if err := c.call(ctx, &sent, "sendtocontract",
		contractAddress, data, amount, gasLimit, gasPrice, sender); err != nil {
		return nil, err
	}
	sent.GasLimit = gasLimit
	sent.GasPrice = gasPrice
	return &sent, nil
}

// SendToAddress submits a direct-value transfer through the wallet
func (c *Client) SendToAddress(ctx context.Context, address, amount string) (string, error) {
	var txid string
	if err := c.call(ctx, &txid, "sendtoaddress", address, amount); err != nil {
		return "", err
	}
	return txid, nil
}

// GetHexAddress converts a wallet base58 address to its hex form, the form
// contract calls take.
func (c *Client) GetHexAddress(ctx context.Context, address string) (string, error) {
	var hexAddr string
	if err := c.call(ctx, &hexAddr, "gethexaddress", address); err != nil {
		return "", err
	}
	return hexAddr, nil
}

// GetWalletTransaction returns the wallet's view of a transaction, used to
// confirm direct-value transfers that produce no receipt.
func (c *Client) GetWalletTransaction(ctx context.Context, txid string) (*WalletTx, error) {
	var tx WalletTx
	if err := c.call(ctx, &tx, "gettransaction", txid); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListAddressGroupings returns every wallet address with its native-coin
// balance. The node answers with nested [address, amount, ...] tuples.
func (c *Client) ListAddressGroupings(ctx context.Context) ([]AddressAmount, error) {
	var groups [][][]json.RawMessage
	if err := c.call(ctx, &groups, "listaddressgroupings"); err != nil {
		return nil, err
	}

	var out []AddressAmount
	for _, group := range groups {
		for _, entry := range group {
			if len(entry) < 2 {
				continue
			}
			var address string
			if err := json.Unmarshal(entry[0], &address); err != nil {
				return nil, fmt.Errorf("listaddressgroupings: bad address: %w", err)
			}
			var amount json.Number
			if err := json.Unmarshal(entry[1], &amount); err != nil {
				return nil, fmt.Errorf("listaddressgroupings: bad amount for %s: %w", address, err)
			}
			dec, err := decimal.NewFromString(amount.String())
			if err != nil {
				return nil, fmt.Errorf("listaddressgroupings: bad amount for %s: %w", address, err)
			}
			out = append(out, AddressAmount{Address: address, Amount: dec.String()})
		}
	}
	return out, nil
}

// ToFixedPoint converts a token-unit decimal string to the chain's
// fixed-point integer representation.
func ToFixedPoint(amount string) (*big.Int, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	shifted := dec.Shift(constants.FixedPointDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, constants.FixedPointDecimals)
	}
	return shifted.BigInt(), nil
}

// GasUsedFromFee back-computes the gas consumed by a direct-value transfer
// from the wallet's reported fee and a fixed gas price.
func GasUsedFromFee(fee float64, gasPrice string) (uint64, error) {
	price, err := decimal.NewFromString(gasPrice)
	if err != nil || price.IsZero() {
		return 0, fmt.Errorf("invalid gas price %q", gasPrice)
	}
	feeDec := decimal.NewFromFloat(fee).Abs()
	gas := feeDec.Div(price).Floor()
	used, err := strconv.ParseUint(gas.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("gas out of range: %w", err)
	}
	return used, nil
}
