// Package decode turns raw contract event logs into domain records. Decoders
// are pure: one raw log plus its block/transaction context in, one record
// out, no I/O. Empty logs decode to nothing; callers guard for that before
// merging.
package decode

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/openpredict/chainsync/internal/constants"
)

// RawLog is one decoded event log as the node's log search returns it:
// argument values keyed by name, plus the event name under _eventName.
type RawLog map[string]any

// EventNameKey is the raw-log key carrying the event's name
const EventNameKey = "_eventName"

// Empty reports whether the log carries no arguments. The node returns an
// empty log object for receipts of reverted transactions.
func (l RawLog) Empty() bool {
	return len(l) == 0
}

// EventName returns the event name recorded in the log, or ""
func (l RawLog) EventName() string {
	s, _ := l[EventNameKey].(string)
	return s
}

// String returns a string argument
func (l RawLog) String(key string) (string, error) {
	v, ok := l[key]
	if !ok {
		return "", fmt.Errorf("raw log missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("raw log field %q: expected string, got %T", key, v)
	}
	return s, nil
}

// BigInt returns an integer argument. The node renders big numbers as
// decimal or 0x-prefixed hex strings depending on width, and small ones as
// native numbers; all three forms are accepted.
func (l RawLog) BigInt(key string) (*big.Int, error) {
	v, ok := l[key]
	if !ok {
		return nil, fmt.Errorf("raw log missing field %q", key)
	}
	switch n := v.(type) {
	case *big.Int:
		return new(big.Int).Set(n), nil
	case string:
		s := n
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s = s[2:]
			base = 16
		}
		i, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, fmt.Errorf("raw log field %q: cannot parse %q as integer", key, n)
		}
		return i, nil
	case float64:
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("raw log field %q: non-integral number %v", key, n)
		}
		return big.NewInt(int64(n)), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, fmt.Errorf("raw log field %q: expected integer, got %T", key, v)
	}
}

// Uint64 returns an integer argument narrowed to uint64
func (l RawLog) Uint64(key string) (uint64, error) {
	i, err := l.BigInt(key)
	if err != nil {
		return 0, err
	}
	if !i.IsUint64() {
		return 0, fmt.Errorf("raw log field %q: %s overflows uint64", key, i)
	}
	return i.Uint64(), nil
}

// Int returns an integer argument narrowed to int
func (l RawLog) Int(key string) (int, error) {
	i, err := l.BigInt(key)
	if err != nil {
		return 0, err
	}
	if !i.IsInt64() || i.Int64() > int64(int(^uint(0)>>1)) {
		return 0, fmt.Errorf("raw log field %q: %s overflows int", key, i)
	}
	return int(i.Int64()), nil
}

// Int64 returns an integer argument narrowed to int64
func (l RawLog) Int64(key string) (int64, error) {
	i, err := l.BigInt(key)
	if err != nil {
		return 0, err
	}
	if !i.IsInt64() {
		return 0, fmt.Errorf("raw log field %q: %s overflows int64", key, i)
	}
	return i.Int64(), nil
}

// StringSlice returns a string-array argument
func (l RawLog) StringSlice(key string) ([]string, error) {
	v, ok := l[key]
	if !ok {
		return nil, fmt.Errorf("raw log missing field %q", key)
	}
	switch s := v.(type) {
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out, nil
	case []any:
		out := make([]string, 0, len(s))
		for i, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("raw log field %q[%d]: expected string, got %T", key, i, e)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("raw log field %q: expected string array, got %T", key, v)
	}
}

// Address returns an address argument normalized to lowercase hex without
// the 0x prefix, the form contract metadata and store keys use.
func (l RawLog) Address(key string) (string, error) {
	s, err := l.String(key)
	if err != nil {
		return "", err
	}
	return NormalizeAddress(s), nil
}

// NormalizeAddress canonicalizes a hex address to 40 lowercase hex chars
func NormalizeAddress(s string) string {
	if s == "" {
		return ""
	}
	addr := common.HexToAddress(s)
	return hex.EncodeToString(addr.Bytes())
}

// TokenAmount renders a chain-native fixed-point integer as a decimal string
// in token units. The rendering is deterministic: re-decoding the same log
// always yields the same string.
func TokenAmount(v *big.Int) string {
	return decimal.NewFromBigInt(v, -constants.FixedPointDecimals).String()
}

// tokenAmountField reads an integer field and converts it to token units
func (l RawLog) tokenAmountField(key string) (string, error) {
	v, err := l.BigInt(key)
	if err != nil {
		return "", err
	}
	return TokenAmount(v), nil
}

// RationalPrice derives the display price from the exact on-chain rational.
// Eight fractional digits, round half up; exact matching always goes
// through the retained mul/div pair, never this rendering.
func RationalPrice(priceMul, priceDiv string) (string, error) {
	mul, err := decimal.NewFromString(priceMul)
	if err != nil {
		return "", fmt.Errorf("invalid price numerator %q: %w", priceMul, err)
	}
	div, err := decimal.NewFromString(priceDiv)
	if err != nil {
		return "", fmt.Errorf("invalid price denominator %q: %w", priceDiv, err)
	}
	if div.IsZero() {
		return "", fmt.Errorf("price denominator is zero")
	}
	return mul.DivRound(div, constants.FixedPointDecimals).String(), nil
}
