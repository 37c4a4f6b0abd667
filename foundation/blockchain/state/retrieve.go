package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
)

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() chain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records[len(s.records)-1]
}

// RetrieveBlocks returns a copy of every block in chain order.
func (s *State) RetrieveBlocks() []chain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]chain.Record, len(s.records))
	copy(records, s.records)
	return records
}

// RetrieveDifficulty returns the difficulty the next block will be mined at.
func (s *State) RetrieveDifficulty() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.difficulty
}

// RetrieveTargetInterval returns the configured interval between blocks.
func (s *State) RetrieveTargetInterval() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.targetInterval
}
