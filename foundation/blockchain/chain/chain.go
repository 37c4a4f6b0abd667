// Package chain maintains the ordered sequence of blocks, links and mines new
// blocks, adjusts the mining difficulty and validates the integrity of the
// whole sequence.
package chain

import (
	"context"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
)

// DefaultTargetInterval is the desired time between consecutive blocks. The
// value has no declared unit and is compared directly against the difference
// of two second based timestamps.
const DefaultTargetInterval = 30000.0

// minDifficulty is the floor for difficulty retargeting.
const minDifficulty = 1

// EventHandler defines a function that is called when events occur in the
// processing of appending blocks.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to construct a chain.
type Config struct {
	TargetInterval float64
	Clock          block.Clock
	EvHandler      EventHandler
}

// Chain manages the sequence of blocks. Index 0 is the genesis block. A
// Chain is not safe for concurrent use, callers must serialize access.
type Chain struct {
	blocks         []block.Block
	difficulty     int
	targetInterval float64
	clock          block.Clock
	evHandler      EventHandler
}

// New constructs a chain with a genesis block. The genesis block is stamped
// with the current whole second and is not mined.
func New(cfg Config) *Chain {
	c := newChain(cfg)

	genesis := block.NewAt(float64(c.clock.Now().Unix()), block.Empty())
	genesis.Seal()

	c.blocks = append(c.blocks, *genesis)

	c.evHandler("chain: New: genesis: blk[%s]", genesis.Hash())

	return c
}

// Restore constructs a chain from a set of previously sealed blocks. The
// blocks must form a valid chain. The difficulty starts back at the floor.
func Restore(cfg Config, blocks []block.Block) (*Chain, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyChain
	}

	c := newChain(cfg)
	for _, b := range blocks {
		b.Seal()
		c.blocks = append(c.blocks, b)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	c.evHandler("chain: Restore: blocks[%d]: latest[%s]", len(c.blocks), c.blocks[len(c.blocks)-1].Hash())

	return c, nil
}

func newChain(cfg Config) *Chain {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	targetInterval := cfg.TargetInterval
	if targetInterval <= 0 {
		targetInterval = DefaultTargetInterval
	}

	return &Chain{
		difficulty:     minDifficulty,
		targetInterval: targetInterval,
		clock:          cfg.Clock,
		evHandler:      ev,
	}
}

// =============================================================================

// Latest returns the most recent block in the chain.
func (c *Chain) Latest() (block.Block, error) {
	if len(c.blocks) == 0 {
		return block.Block{}, ErrEmptyChain
	}

	return c.blocks[len(c.blocks)-1], nil
}

// Append links the block to the current tail, mines it at the current
// difficulty and adds it to the chain. Once appended the caller's block is
// sealed. If mining is cancelled the chain is left unchanged.
func (c *Chain) Append(ctx context.Context, b *block.Block) error {
	if b.Sealed() {
		return block.ErrSealed
	}

	if err := block.CheckPayload(b.Payload()); err != nil {
		return err
	}

	prev, err := c.Latest()
	if err != nil {
		return err
	}

	number := len(c.blocks)
	c.evHandler("chain: Append: started: blk[%d]: difficulty[%d]", number, c.difficulty)
	defer c.evHandler("chain: Append: completed: blk[%d]", number)

	// Commit to the parent block. This refreshes the block hash.
	if err := b.Link(prev.Hash()); err != nil {
		return err
	}

	if err := b.Mine(ctx, c.difficulty, block.EventHandler(c.evHandler)); err != nil {
		return fmt.Errorf("append blk[%d]: %w", number, err)
	}

	b.Seal()
	c.blocks = append(c.blocks, *b)

	c.retarget(prev)

	return nil
}

// retarget raises the difficulty when the new block arrived sooner than the
// target interval after its parent, otherwise lowers it to no less than
// the floor.
func (c *Chain) retarget(prev block.Block) {
	elapsed := block.Seconds(c.clock.Now()) - prev.Timestamp()

	old := c.difficulty
	switch {
	case elapsed < c.targetInterval:
		c.difficulty++
	case c.difficulty > minDifficulty:
		c.difficulty--
	}

	c.evHandler("chain: retarget: elapsed[%.3f]: target[%.0f]: difficulty[%d -> %d]", elapsed, c.targetInterval, old, c.difficulty)
}

// Validate walks the chain from the first block after genesis and checks
// that every stored hash matches the block contents and that every block
// points at the actual hash of its parent. The first failure is returned.
func (c *Chain) Validate() error {
	if len(c.blocks) == 0 {
		return ErrEmptyChain
	}

	for i := 1; i < len(c.blocks); i++ {
		current := c.blocks[i]
		parent := c.blocks[i-1]

		if current.Hash() != current.ComputeHash() {
			return &ValidationError{Index: i, Err: ErrHashMismatch}
		}

		if current.PreviousHash() != parent.Hash() {
			return &ValidationError{Index: i, Err: ErrLinkMismatch}
		}
	}

	return nil
}

// IsValid reports if the chain passes validation.
func (c *Chain) IsValid() bool {
	return c.Validate() == nil
}

// =============================================================================

// Difficulty returns the number of leading zeros the next block must have.
func (c *Chain) Difficulty() int {
	return c.difficulty
}

// TargetInterval returns the desired interval between blocks.
func (c *Chain) TargetInterval() float64 {
	return c.targetInterval
}

// Len returns the number of blocks including genesis.
func (c *Chain) Len() int {
	return len(c.blocks)
}

// Block returns the block at the specified index.
func (c *Chain) Block(index int) (block.Block, error) {
	if index < 0 || index >= len(c.blocks) {
		return block.Block{}, fmt.Errorf("block index %d out of range [0, %d)", index, len(c.blocks))
	}

	return c.blocks[index], nil
}

// Blocks returns a copy of the blocks in chain order.
func (c *Chain) Blocks() []block.Block {
	blocks := make([]block.Block, len(c.blocks))
	copy(blocks, c.blocks)
	return blocks
}
