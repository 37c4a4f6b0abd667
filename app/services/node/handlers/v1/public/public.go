// Package public maintains the group of handlers for public access.
package public

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/block"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/validate"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log           *zap.SugaredLogger
	State         *state.State
	Evts          *events.Events
	WS            websocket.Upgrader
	MiningTimeout time.Duration
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting to receive events and send them into the websocket.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Chain returns every block in chain order in the export format.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveBlocks(), http.StatusOK)
}

// Status returns summary information about the chain.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.RetrieveBlocks()

	st := status{
		Blocks:         len(blocks),
		Difficulty:     h.State.RetrieveDifficulty(),
		TargetInterval: h.State.RetrieveTargetInterval(),
		LatestHash:     blocks[len(blocks)-1].Hash,
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Validate checks the integrity of the chain and reports the first block
// that failed if any.
func (h Handlers) Validate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := validation{Valid: true}

	if err := h.State.Validate(); err != nil {
		ve := chain.GetValidationError(err)
		if ve == nil {
			return err
		}

		index := ve.Index
		resp = validation{
			Valid: false,
			Index: &index,
			Error: ve.Error(),
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Truncate resets the chain back to a new genesis block.
func (h Handlers) Truncate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.Truncate(); err != nil {
		return err
	}

	return web.Respond(ctx, w, h.State.RetrieveLatestBlock(), http.StatusOK)
}

// LatestBlock returns the newest block in the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.RetrieveBlocks()

	bi := blockInfo{
		Number: uint64(len(blocks) - 1),
		Record: blocks[len(blocks)-1],
	}

	return web.Respond(ctx, w, bi, http.StatusOK)
}

// BlockByNumber returns the block at the specified position. Genesis is 0.
func (h Handlers) BlockByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	num, err := strconv.ParseUint(web.Param(r, "num"), 10, 64)
	if err != nil {
		return errs.NewTrusted(errors.New("invalid block number"), http.StatusBadRequest)
	}

	rec, err := h.State.QueryBlockByNumber(num)
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, blockInfo{Number: num, Record: rec}, http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := block.ParseHash(web.Param(r, "hash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	num, rec, err := h.State.QueryBlockByHash(hash)
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, blockInfo{Number: num, Record: rec}, http.StatusOK)
}

// MineBlock mines a new block for the provided payload and adds it to the
// chain. The request waits for mining to complete or time out.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nb newBlock
	if err := web.Decode(r, &nb); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(nb); err != nil {
		return err
	}

	if bytes.Equal(bytes.TrimSpace(nb.Payload), []byte("null")) {
		return validate.FieldErrors{{Field: "payload", Error: "payload is a required field"}}
	}

	payload, err := block.DecodePayload(nb.Payload)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if h.MiningTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.MiningTimeout)
		defer cancel()
	}

	h.Log.Infow("mine block", "traceid", v.TraceID, "payload", string(payload.CanonicalBytes()))

	var num uint64
	var rec chain.Record
	switch nb.Timestamp {
	case nil:
		num, rec, err = h.State.MineNewBlock(ctx, payload)
	default:
		num, rec, err = h.State.MineNewBlockAt(ctx, *nb.Timestamp, payload)
	}
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, blockInfo{Number: num, Record: rec}, http.StatusCreated)
}
