// Package block provides the block data structure, its content derived hash
// and the proof of work mining algorithm.
package block

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Set of error variables for block processing.
var (
	ErrSealed          = errors.New("block is sealed")
	ErrMiningCancelled = errors.New("mining cancelled")
)

// EventHandler defines a function that is called when events occur while
// a block is being mined.
type EventHandler func(v string, args ...any)

// Clock returns the current time. Tests provide their own clock to get
// deterministic timestamps.
type Clock func() time.Time

// Now returns the current time from the clock, defaulting to the system
// clock when nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Seconds converts a time into the fractional seconds since the epoch used
// as a block timestamp.
func Seconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// =============================================================================

// Block represents a single record in the chain. A block can be linked and
// mined until it is sealed. After that it is read only.
type Block struct {
	timestamp    float64
	payload      Payload
	previousHash string
	nonce        uint64
	hash         string
	sealed       bool
}

// New constructs an unmined block stamped with the current time from the
// clock. A nil payload is replaced with an empty one.
func New(clock Clock, payload Payload) *Block {
	return NewAt(Seconds(clock.Now()), payload)
}

// NewAt constructs an unmined block with the specified timestamp.
func NewAt(timestamp float64, payload Payload) *Block {
	if payload == nil {
		payload = Empty()
	}

	b := Block{
		timestamp: timestamp,
		payload:   payload,
	}
	b.hash = b.ComputeHash()

	return &b
}

// Load reconstructs a sealed block from stored values. The stored hash is
// kept as provided so chain validation can detect tampering.
func Load(timestamp float64, payload Payload, previousHash string, nonce uint64, hash string) Block {
	if payload == nil {
		payload = Empty()
	}

	return Block{
		timestamp:    timestamp,
		payload:      payload,
		previousHash: previousHash,
		nonce:        nonce,
		hash:         hash,
		sealed:       true,
	}
}

// Timestamp returns the block timestamp in seconds since the epoch.
func (b Block) Timestamp() float64 {
	return b.timestamp
}

// Payload returns the opaque content of the block.
func (b Block) Payload() Payload {
	return b.payload
}

// PreviousHash returns the hash of the preceding block. It is empty for
// the genesis block.
func (b Block) PreviousHash() string {
	return b.previousHash
}

// Nonce returns the value found by mining.
func (b Block) Nonce() uint64 {
	return b.nonce
}

// Hash returns the stored hash for the block.
func (b Block) Hash() string {
	return b.hash
}

// Sealed reports if the block has been made part of a chain.
func (b Block) Sealed() bool {
	return b.sealed
}

// Seal marks the block as read only.
func (b *Block) Seal() {
	b.sealed = true
}

// ComputeHash returns the hash of the current field values. Each field is
// written to the hash separately and in a fixed order: previous hash,
// timestamp, payload, nonce.
func (b Block) ComputeHash() string {
	h := sha256.New()

	h.Write([]byte(b.previousHash))
	h.Write([]byte(strconv.FormatFloat(b.timestamp, 'f', -1, 64)))
	if b.payload != nil {
		h.Write(b.payload.CanonicalBytes())
	}
	h.Write([]byte(strconv.FormatUint(b.nonce, 10)))

	return hex.EncodeToString(h.Sum(nil))
}

// Link points the block at its predecessor and refreshes the hash.
func (b *Block) Link(previousHash string) error {
	if b.sealed {
		return ErrSealed
	}

	b.previousHash = previousHash
	b.hash = b.ComputeHash()

	return nil
}

// Mine does the work of finding a nonce that produces a hash with the
// specified number of leading zeros. Pointer semantics are being used since
// a nonce is being discovered. The context is checked on every attempt.
func (b *Block) Mine(ctx context.Context, difficulty int, ev EventHandler) error {
	if b.sealed {
		return ErrSealed
	}

	if ev == nil {
		ev = func(string, ...any) {}
	}

	ev("block: Mine: MINING: started: difficulty[%d]", difficulty)

	var attempts uint64
	for !IsHashSolved(difficulty, b.hash) {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("block: Mine: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if err := ctx.Err(); err != nil {
			ev("block: Mine: MINING: CANCELLED: attempts[%d]", attempts)
			return fmt.Errorf("%w: %w", ErrMiningCancelled, err)
		}

		b.nonce++
		b.hash = b.ComputeHash()
	}

	ev("block: Mine: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: nonce[%d]", b.previousHash, b.hash, b.nonce)

	return nil
}

// =============================================================================

// IsHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of 0's.
func IsHashSolved(difficulty int, hash string) bool {
	if difficulty <= 0 {
		return true
	}

	if difficulty > len(hash) {
		return false
	}

	return hash[:difficulty] == strings.Repeat("0", difficulty)
}

// LeadingZeros returns the number of leading 0 characters in the hash.
func LeadingZeros(hash string) int {
	return len(hash) - len(strings.TrimLeft(hash, "0"))
}
