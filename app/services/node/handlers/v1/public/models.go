package public

import (
	"encoding/json"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
)

// newBlock is the request to mine a new block. The payload is any JSON value.
type newBlock struct {
	Payload   json.RawMessage `json:"payload" validate:"required"`
	Timestamp *float64        `json:"timestamp" validate:"omitempty,gt=0"`
}

// blockInfo is a block along with its position in the chain.
type blockInfo struct {
	Number uint64 `json:"number"`
	chain.Record
}

type status struct {
	Blocks         int     `json:"blocks"`
	Difficulty     int     `json:"difficulty"`
	TargetInterval float64 `json:"target_interval"`
	LatestHash     string  `json:"latest_hash"`
}

type validation struct {
	Valid bool   `json:"valid"`
	Index *int   `json:"index,omitempty"`
	Error string `json:"error,omitempty"`
}
