// Package memory implements the ability to read and write blocks to memory
// using a slice.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// ErrNotExist is returned when a block number is past the end of the chain.
var ErrNotExist = errors.New("block does not exist")

// Memory represents the serialization implementation for reading and storing
// blocks in memory using a slice. This implements the state.Storage
// interface.
type Memory struct {
	mu      sync.RWMutex
	records []chain.Record
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified block and stores it in memory. Blocks must be
// written in order starting with genesis as block 0.
func (m *Memory) Write(number uint64, rec chain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l := uint64(len(m.records)); number != l {
		return fmt.Errorf("block is out of order, got %d, exp %d", number, l)
	}

	m.records = append(m.records, rec)

	return nil
}

// GetBlock searches the blockchain to locate and return the contents of
// the specified block by number.
func (m *Memory) GetBlock(number uint64) (chain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if number >= uint64(len(m.records)) {
		return chain.Record{}, ErrNotExist
	}

	return m.records[number], nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with the genesis block.
func (m *Memory) ForEach() state.Iterator {
	return &iterator{storage: m}
}

// Reset will clear out the blockchain in memory.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	return nil
}

// =============================================================================

// iterator represents the iteration implementation for walking
// through and reading blocks in memory. This implements the state
// Iterator interface.
type iterator struct {
	storage *Memory // Access to the storage API.
	current uint64  // Current block number being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from memory.
func (it *iterator) Next() (chain.Record, error) {
	if it.eoc {
		return chain.Record{}, errors.New("end of chain")
	}

	rec, err := it.storage.GetBlock(it.current)
	if errors.Is(err, ErrNotExist) {
		it.eoc = true
	}
	it.current++

	return rec, err
}

// Done returns the end of chain value.
func (it *iterator) Done() bool {
	return it.eoc
}
