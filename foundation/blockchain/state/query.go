package state

import (
	"errors"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
)

// ErrNotFound is returned when a block can't be located.
var ErrNotFound = errors.New("block not found")

// =============================================================================

// QueryBlockByNumber returns the block at the specified position in the
// chain. Genesis is block 0.
func (s *State) QueryBlockByNumber(number uint64) (chain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if number >= uint64(len(s.records)) {
		return chain.Record{}, ErrNotFound
	}

	return s.records[number], nil
}

// QueryBlockByHash returns the block with the specified hash along with its
// number in the chain.
func (s *State) QueryBlockByHash(hash string) (uint64, chain.Record, error) {
	hash = strings.ToLower(hash)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, rec := range s.records {
		if rec.Hash == hash {
			return uint64(i), rec, nil
		}
	}

	return 0, chain.Record{}, ErrNotFound
}

// Validate checks the integrity of the current chain. The error identifies
// the first block that failed.
func (s *State) Validate() error {
	blocks, err := chain.ToBlocks(s.RetrieveBlocks())
	if err != nil {
		return err
	}

	_, err = chain.Restore(chain.Config{}, blocks)
	return err
}
