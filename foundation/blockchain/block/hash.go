package block

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// hashLength is the size in bytes of a block hash.
const hashLength = 32

// ParseHash accepts a block hash with or without the 0x prefix and in any
// case, and returns it in the lowercase form stored on blocks.
func ParseHash(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	data, err := hexutil.Decode("0x" + s[2:])
	if err != nil {
		return "", fmt.Errorf("parse hash: %w", err)
	}

	if len(data) != hashLength {
		return "", fmt.Errorf("parse hash: got %d bytes, exp %d", len(data), hashLength)
	}

	return hex.EncodeToString(data), nil
}
