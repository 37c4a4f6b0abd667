package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
)

// Record represents a block as it is exported, written to storage and sent
// over the API.
type Record struct {
	Payload      json.RawMessage `json:"payload"`
	Timestamp    float64         `json:"timestamp"`
	Nonce        uint64          `json:"nonce"`
	Hash         string          `json:"hash"`
	PreviousHash *string         `json:"previous_hash"`
}

// NewRecord constructs the exported form of a block.
func NewRecord(b block.Block) Record {
	rec := Record{
		Payload:   json.RawMessage(b.Payload().CanonicalBytes()),
		Timestamp: b.Timestamp(),
		Nonce:     b.Nonce(),
		Hash:      b.Hash(),
	}

	// The genesis block has no parent, which is exported as null.
	if prev := b.PreviousHash(); prev != "" {
		rec.PreviousHash = &prev
	}

	return rec
}

// ToBlock converts a record back into a sealed block.
func (r Record) ToBlock() (block.Block, error) {
	payload, err := block.DecodePayload(r.Payload)
	if err != nil {
		return block.Block{}, fmt.Errorf("record[%s]: %w", r.Hash, err)
	}

	var prev string
	if r.PreviousHash != nil {
		prev = *r.PreviousHash
	}

	return block.Load(r.Timestamp, payload, prev, r.Nonce, r.Hash), nil
}

// ToBlocks converts a set of records into blocks.
func ToBlocks(records []Record) ([]block.Block, error) {
	blocks := make([]block.Block, len(records))
	for i, rec := range records {
		b, err := rec.ToBlock()
		if err != nil {
			return nil, err
		}
		blocks[i] = b
	}

	return blocks, nil
}

// =============================================================================

// Export returns the records for every block in chain order.
func (c *Chain) Export() []Record {
	records := make([]Record, len(c.blocks))
	for i, b := range c.blocks {
		records[i] = NewRecord(b)
	}
	return records
}

// MarshalJSON implements the json.Marshaler interface.
func (c *Chain) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Export())
}

// String implements the fmt.Stringer interface by rendering the chain as
// indented JSON.
func (c *Chain) String() string {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c.Export()); err != nil {
		return fmt.Sprintf("chain: %s", err)
	}

	return strings.TrimSuffix(buf.String(), "\n")
}
