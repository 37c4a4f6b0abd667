// Package state is the core API for the blockchain node. It owns the chain,
// makes sure only one block is mined at a time and keeps storage in step
// with the chain.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(number uint64, rec chain.Record) error
	GetBlock(number uint64) (chain.Record, error)
	ForEach() Iterator
	Reset() error
	Close() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (chain.Record, error)
	Done() bool
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Storage        Storage
	TargetInterval float64
	Clock          block.Clock
	EvHandler      EventHandler
}

// State manages the blockchain.
type State struct {
	storage   Storage
	clock     block.Clock
	evHandler EventHandler
	chainCfg  chain.Config

	// appendMu makes sure only one block is mined at a time since mining
	// requires knowing the true latest block. persisted is the number of
	// blocks known to be in storage.
	appendMu  sync.Mutex
	chain     *chain.Chain
	persisted uint64

	// mu protects the copy of the chain used to answer reads so they don't
	// have to wait on mining.
	mu             sync.RWMutex
	records        []chain.Record
	difficulty     int
	targetInterval float64
}

// New constructs a new blockchain for data management. Any blocks found in
// storage are loaded and must form a valid chain. With an empty storage a new
// chain is started and the genesis block is written.
func New(cfg Config) (*State, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	chainCfg := chain.Config{
		TargetInterval: cfg.TargetInterval,
		Clock:          cfg.Clock,
		EvHandler:      chain.EventHandler(ev),
	}

	s := State{
		storage:   cfg.Storage,
		clock:     cfg.Clock,
		evHandler: ev,
		chainCfg:  chainCfg,
	}

	// Load all existing blocks from storage into memory for processing.
	records, err := readAll(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("reading blocks: %w", err)
	}

	switch len(records) {
	case 0:
		if err := s.startChain(); err != nil {
			return nil, err
		}

	default:
		blocks, err := chain.ToBlocks(records)
		if err != nil {
			return nil, err
		}

		ch, err := chain.Restore(chainCfg, blocks)
		if err != nil {
			return nil, err
		}

		s.chain = ch
		s.persisted = uint64(len(records))
		s.updateSnapshot()
	}

	ev("state: New: blocks[%d]: difficulty[%d]", len(s.records), s.difficulty)

	return &s, nil
}

// Shutdown cleanly brings the node down. Any blocks that failed to be
// written earlier get one more attempt before storage is closed.
func (s *State) Shutdown() error {
	s.evHandler("state: Shutdown: started")
	defer s.evHandler("state: Shutdown: completed")

	// Wait for any mining in progress to finish.
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	err := s.persist()
	if err != nil {
		s.evHandler("state: Shutdown: ERROR: %s", err)
	}

	return errors.Join(err, s.storage.Close())
}

// Truncate resets the chain both in storage and in memory back to a new
// genesis block. If the new genesis block can't be written the current
// chain is kept and written back on the next mine.
func (s *State) Truncate() error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	s.evHandler("state: Truncate: reset storage")

	if err := s.storage.Reset(); err != nil {
		return err
	}
	s.persisted = 0

	return s.startChain()
}

// =============================================================================

// startChain constructs a new chain and writes the genesis block. The new
// chain replaces the current one only once genesis is in storage.
func (s *State) startChain() error {
	ch := chain.New(s.chainCfg)

	genesis, err := ch.Latest()
	if err != nil {
		return err
	}

	if err := s.storage.Write(0, chain.NewRecord(genesis)); err != nil {
		return fmt.Errorf("writing genesis: %w", err)
	}

	s.chain = ch
	s.persisted = 1
	s.updateSnapshot()

	return nil
}

// persist writes every block that is in the chain but not yet in storage,
// in order. The caller must hold appendMu.
func (s *State) persist() error {
	for number := s.persisted; number < uint64(s.chain.Len()); number++ {
		blk, err := s.chain.Block(int(number))
		if err != nil {
			return err
		}

		if err := s.storage.Write(number, chain.NewRecord(blk)); err != nil {
			return fmt.Errorf("write blk[%d]: %w", number, err)
		}

		s.persisted = number + 1
	}

	return nil
}

// updateSnapshot copies the chain for readers. The caller must hold appendMu.
func (s *State) updateSnapshot() {
	records := s.chain.Export()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = records
	s.difficulty = s.chain.Difficulty()
	s.targetInterval = s.chain.TargetInterval()
}

// readAll reads every block from storage in order.
func readAll(strg Storage) ([]chain.Record, error) {
	var records []chain.Record

	iter := strg.ForEach()
	for rec, err := iter.Next(); !iter.Done(); rec, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}
