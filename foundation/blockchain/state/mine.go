package state

import (
	"context"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
)

// MineNewBlock constructs a block for the payload stamped with the current
// time, mines it onto the chain and writes it to storage. Mining can be
// cancelled through the context. The number of the new block in the chain
// is returned with it.
//
// If the write to storage fails the block stays in the chain, the block and
// the error are both returned, and the write is tried again on the next mine
// and at shutdown.
func (s *State) MineNewBlock(ctx context.Context, payload block.Payload) (uint64, chain.Record, error) {
	return s.mineBlock(ctx, block.New(s.clock, payload))
}

// MineNewBlockAt is like MineNewBlock but uses the specified timestamp.
func (s *State) MineNewBlockAt(ctx context.Context, timestamp float64, payload block.Payload) (uint64, chain.Record, error) {
	return s.mineBlock(ctx, block.NewAt(timestamp, payload))
}

// =============================================================================

// mineBlock appends the block to the chain and updates the local state.
func (s *State) mineBlock(ctx context.Context, b *block.Block) (uint64, chain.Record, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	s.evHandler("state: MineNewBlock: MINING: started")
	defer s.evHandler("state: MineNewBlock: MINING: completed")

	// Attempt to add the block by solving the POW puzzle. This can be cancelled.
	if err := s.chain.Append(ctx, b); err != nil {
		return 0, chain.Record{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	rec := chain.NewRecord(*b)
	number := uint64(s.chain.Len() - 1)

	s.updateSnapshot()

	// Write the new block, and any earlier ones that failed, to storage.
	if err := s.persist(); err != nil {
		s.evHandler("state: MineNewBlock: ERROR: %s", err)
		return number, rec, err
	}

	s.evHandler("viewer: block: blk[%d]: hash[%s]: nonce[%d]: difficulty[%d]", number, rec.Hash, rec.Nonce, s.RetrieveDifficulty())

	return number, rec, nil
}
