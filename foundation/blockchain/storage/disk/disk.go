// Package disk implements the ability to read and write blocks to disk
// using a separate JSON file for each block.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// state.Storage interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified block and stores it on disk in a file labeled
// with the block number.
func (d *Disk) Write(number uint64, rec chain.Record) error {

	// Marshal the block for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	// Create a new file for this block and name it based on the block number.
	f, err := os.OpenFile(d.getPath(number), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	// Write the new block to disk.
	if _, err := f.Write(data); err != nil {
		return err
	}

	return nil
}

// GetBlock searches the blockchain on disk to locate and return the
// contents of the specified block by number.
func (d *Disk) GetBlock(number uint64) (chain.Record, error) {

	// Open the block file for the specified number.
	f, err := os.OpenFile(d.getPath(number), os.O_RDONLY, 0600)
	if err != nil {
		return chain.Record{}, err
	}
	defer f.Close()

	// Decode the contents of the block.
	var rec chain.Record
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return chain.Record{}, fmt.Errorf("decode blk[%d]: %w", number, err)
	}

	return rec, nil
}

// ForEach returns an iterator to walk through all the blocks starting
// with the genesis block.
func (d *Disk) ForEach() state.Iterator {
	return &Iterator{disk: d}
}

// Reset will clear out the blockchain on disk.
func (d *Disk) Reset() error {
	if err := os.RemoveAll(d.dbPath); err != nil {
		return err
	}

	return os.MkdirAll(d.dbPath, 0755)
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(number uint64) string {
	name := strconv.FormatUint(number, 10)
	return filepath.Join(d.dbPath, fmt.Sprintf("%s.json", name))
}

// =============================================================================

// Iterator represents the iteration implementation for walking
// through and reading blocks on disk. This implements the state
// Iterator interface.
type Iterator struct {
	disk    *Disk  // Access to the disk storage API.
	current uint64 // Current block number being iterated over.
	eoc     bool   // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (it *Iterator) Next() (chain.Record, error) {
	if it.eoc {
		return chain.Record{}, errors.New("end of chain")
	}

	rec, err := it.disk.GetBlock(it.current)
	if errors.Is(err, fs.ErrNotExist) {
		it.eoc = true
	}
	it.current++

	return rec, err
}

// Done returns the end of chain value.
func (it *Iterator) Done() bool {
	return it.eoc
}
