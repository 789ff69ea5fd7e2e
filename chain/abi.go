package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Function selectors for the platform contracts. All parameter lists are
// static types (fixed-size bytes32 arrays included), so call data is the
// selector followed by one 32-byte word per slot.
const (
	selApprove         = "095ea7b3"
	selTransfer        = "a9059cbb"
	selBalanceOf       = "70a08231"
	selAllowance       = "dd62ed3e"
	selCreateTopic     = "662edd20"
	selSetResult       = "a6b4218b"
	selVote            = "6f02d1fb"
	selGetTotalBets    = "58e1df72"
	selGetTotalVotes   = "2e6e5a57"
	selExchangeBalance = "f7888aec"
	selCreateOrder     = "4a1f0c26"
	selCancelOrder     = "514fcac7"
	selRedeem          = "1e9a6950"
)

const wordBytes = 32

// nameWords is the number of bytes32 slots a topic name or option label
// occupies on chain.
const nameWords = 10

func wordFromBigInt(v *big.Int) string {
	return fmt.Sprintf("%064x", v)
}

func wordFromUint64(v uint64) string {
	return fmt.Sprintf("%064x", v)
}

func wordFromInt(v int) string {
	return fmt.Sprintf("%064x", v)
}

// wordFromAddress left-pads a 20-byte hex address into one slot
func wordFromAddress(address string) string {
	addr := common.HexToAddress(address)
	return fmt.Sprintf("%064x", addr.Big())
}

// wordsFromString encodes a UTF-8 string into n right-padded bytes32 slots,
// truncating past n*32 bytes.
func wordsFromString(s string, n int) string {
	raw := []byte(s)
	if len(raw) > n*wordBytes {
		raw = raw[:n*wordBytes]
	}
	padded := make([]byte, n*wordBytes)
	copy(padded, raw)
	return hex.EncodeToString(padded)
}

// encodeCall assembles call data from a selector and pre-encoded hex words
func encodeCall(selector string, words ...string) string {
	var b strings.Builder
	b.WriteString(selector)
	for _, w := range words {
		b.WriteString(w)
	}
	return b.String()
}

// parseUintWords splits a contract call's output into 32-byte unsigned
// integer words.
func parseUintWords(output string) ([]*big.Int, error) {
	output = strings.TrimPrefix(output, "0x")
	if len(output)%(wordBytes*2) != 0 {
		return nil, fmt.Errorf("output length %d is not word aligned", len(output))
	}

	var out []*big.Int
	for i := 0; i < len(output); i += wordBytes * 2 {
		word, ok := new(big.Int).SetString(output[i:i+wordBytes*2], 16)
		if !ok {
			return nil, fmt.Errorf("invalid word %q at offset %d", output[i:i+wordBytes*2], i)
		}
		out = append(out, word)
	}
	return out, nil
}
