package state_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

// slowClock moves forward 40000 seconds on every call so the difficulty
// stays at the floor.
func slowClock() block.Clock {
	var mu sync.Mutex
	now := time.Unix(1700000000, 0)

	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		now = now.Add(40000 * time.Second)
		return now
	}
}

// flakyStorage wraps a storage and can fail or hold writes.
type flakyStorage struct {
	state.Storage

	mu      sync.Mutex
	fail    int
	gate    chan struct{}
	entered chan struct{}
}

func (fs *flakyStorage) failNext(n int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.fail = n
}

func (fs *flakyStorage) hold() (entered <-chan struct{}, release func()) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.gate = make(chan struct{})
	fs.entered = make(chan struct{}, 1)

	gate := fs.gate
	return fs.entered, func() { close(gate) }
}

func (fs *flakyStorage) Write(number uint64, rec chain.Record) error {
	fs.mu.Lock()
	if fs.fail > 0 {
		fs.fail--
		fs.mu.Unlock()
		return errors.New("disk full")
	}
	gate, entered := fs.gate, fs.entered
	fs.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}

	return fs.Storage.Write(number, rec)
}

// =============================================================================

func Test_MineNewBlock(t *testing.T) {
	var mu sync.Mutex
	var events []string
	ev := func(v string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, v)
	}

	strg := memory.New()
	st, err := state.New(state.Config{
		Storage:   strg,
		Clock:     slowClock(),
		EvHandler: ev,
	})
	ifErrFailNow(t, err)
	defer st.Shutdown()

	t.Log("Given the need to mine blocks through the node state.")
	{
		t.Logf("\tTest 0:\tWhen starting with empty storage.")
		{
			if _, err := strg.GetBlock(0); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould write genesis to storage: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould write genesis to storage.", success)

			if len(st.RetrieveBlocks()) != 1 || st.RetrieveDifficulty() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould start with genesis at difficulty 1.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould start with genesis at difficulty 1.", success)
		}

		t.Logf("\tTest 1:\tWhen mining blocks from several goroutines.")
		{
			const g = 4

			var wg sync.WaitGroup
			wg.Add(g)

			errs := make(chan error, g)
			for i := 0; i < g; i++ {
				go func() {
					defer wg.Done()
					_, _, err := st.MineNewBlock(context.Background(), block.Text("A->B:10"))
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				ifErrFailNow(t, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to mine every block.", success)

			blocks := st.RetrieveBlocks()
			if len(blocks) != g+1 {
				t.Fatalf("\t%s\tTest 1:\tShould have %d blocks, got %d.", failed, g+1, len(blocks))
			}

			for i := 1; i < len(blocks); i++ {
				if blocks[i].PreviousHash == nil || *blocks[i].PreviousHash != blocks[i-1].Hash {
					t.Fatalf("\t%s\tTest 1:\tShould link block %d to its parent.", failed, i)
				}

				stored, err := strg.GetBlock(uint64(i))
				ifErrFailNow(t, err)
				if stored.Hash != blocks[i].Hash {
					t.Fatalf("\t%s\tTest 1:\tShould write block %d to storage.", failed, i)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould link and store every block.", success)

			if err := st.Validate(); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould have a valid chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould have a valid chain.", success)
		}

		t.Logf("\tTest 2:\tWhen querying blocks.")
		{
			latest := st.RetrieveLatestBlock()

			number, rec, err := st.QueryBlockByHash(strings.ToUpper(latest.Hash))
			ifErrFailNow(t, err)
			if number != 4 || rec.Hash != latest.Hash {
				t.Fatalf("\t%s\tTest 2:\tShould find the latest block by hash.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould find the latest block by hash.", success)

			rec, err = st.QueryBlockByNumber(4)
			ifErrFailNow(t, err)
			if rec.Hash != latest.Hash {
				t.Fatalf("\t%s\tTest 2:\tShould find the latest block by number.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould find the latest block by number.", success)

			if _, err := st.QueryBlockByNumber(5); !errors.Is(err, state.ErrNotFound) {
				t.Fatalf("\t%s\tTest 2:\tShould not find a missing block: %v", failed, err)
			}
			if _, _, err := st.QueryBlockByHash("abc"); !errors.Is(err, state.ErrNotFound) {
				t.Fatalf("\t%s\tTest 2:\tShould not find a missing hash: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould not find missing blocks.", success)
		}

		t.Logf("\tTest 3:\tWhen mining is cancelled.")
		{
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			// At difficulty 1 a nonce of zero solves the puzzle about one time
			// in sixteen before the context is ever checked.
			before := len(st.RetrieveBlocks())
			_, _, err := st.MineNewBlock(ctx, block.Text("A->B:10"))
			switch {
			case err == nil:
				if len(st.RetrieveBlocks()) != before+1 {
					t.Fatalf("\t%s\tTest 3:\tShould add the block that was solved.", failed)
				}
			case errors.Is(err, block.ErrMiningCancelled):
				if len(st.RetrieveBlocks()) != before {
					t.Fatalf("\t%s\tTest 3:\tShould leave the chain unchanged.", failed)
				}
			default:
				t.Fatalf("\t%s\tTest 3:\tShould get a mining cancelled error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould handle the cancelled mining.", success)
		}

		t.Logf("\tTest 4:\tWhen truncating the chain.")
		{
			ifErrFailNow(t, st.Truncate())

			if len(st.RetrieveBlocks()) != 1 {
				t.Fatalf("\t%s\tTest 4:\tShould be back to genesis.", failed)
			}

			if _, err := strg.GetBlock(1); err == nil {
				t.Fatalf("\t%s\tTest 4:\tShould clear storage.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould be back to genesis.", success)
		}

		t.Logf("\tTest 5:\tWhen checking the event handler.")
		{
			mu.Lock()
			defer mu.Unlock()

			var found bool
			for _, e := range events {
				if strings.HasPrefix(e, "viewer: block:") {
					found = true
					break
				}
			}

			if !found {
				t.Fatalf("\t%s\tTest 5:\tShould send block events.", failed)
			}
			t.Logf("\t%s\tTest 5:\tShould send block events.", success)
		}
	}
}

func Test_New(t *testing.T) {
	t.Log("Given the need to construct the node state.")
	{
		t.Logf("\tTest 0:\tWhen no storage is provided.")
		{
			if _, err := state.New(state.Config{}); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould require storage.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould require storage.", success)
		}

		t.Logf("\tTest 1:\tWhen storage holds an existing chain.")
		{
			strg := memory.New()

			st, err := state.New(state.Config{Storage: strg, Clock: slowClock()})
			ifErrFailNow(t, err)

			_, rec, err := st.MineNewBlockAt(context.Background(), 1700000001.5, block.Text("A->B:10"))
			ifErrFailNow(t, err)

			if rec.Timestamp != 1700000001.5 {
				t.Fatalf("\t%s\tTest 1:\tShould keep the provided timestamp, got %f.", failed, rec.Timestamp)
			}

			restarted, err := state.New(state.Config{Storage: strg})
			ifErrFailNow(t, err)

			if restarted.RetrieveLatestBlock().Hash != rec.Hash || restarted.RetrieveTargetInterval() != 30000 {
				t.Fatalf("\t%s\tTest 1:\tShould restore the chain from storage.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould restore the chain from storage.", success)
		}
	}
}

func Test_StorageFailure(t *testing.T) {
	t.Log("Given the need to keep storage in step with the chain when writes fail.")
	{
		t.Logf("\tTest 0:\tWhen a block write fails once.")
		{
			strg := memory.New()
			fs := flakyStorage{Storage: strg}

			st, err := state.New(state.Config{Storage: &fs, Clock: slowClock()})
			ifErrFailNow(t, err)

			fs.failNext(1)
			number, rec, err := st.MineNewBlock(context.Background(), block.Text("A->B:10"))
			if err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould get the write error.", failed)
			}
			if number != 1 || rec.Hash != st.RetrieveLatestBlock().Hash {
				t.Fatalf("\t%s\tTest 0:\tShould keep block 1 in the chain.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get the write error and keep the block.", success)

			for i := 0; i < 3; i++ {
				if _, _, err := st.MineNewBlock(context.Background(), block.Text("B->C:5")); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to mine after the failure: %v", failed, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould be able to mine after the failure.", success)

			blocks := st.RetrieveBlocks()
			for i, blk := range blocks {
				stored, err := strg.GetBlock(uint64(i))
				if err != nil || stored.Hash != blk.Hash {
					t.Fatalf("\t%s\tTest 0:\tShould have block %d in storage: %v", failed, i, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould write the missed block with the next one.", success)

			fs.failNext(1)
			if _, _, err := st.MineNewBlock(context.Background(), block.Text("C->D:1")); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould get the write error.", failed)
			}

			ifErrFailNow(t, st.Shutdown())

			restarted, err := state.New(state.Config{Storage: strg})
			ifErrFailNow(t, err)

			if len(restarted.RetrieveBlocks()) != len(blocks)+1 {
				t.Fatalf("\t%s\tTest 0:\tShould write the missed block at shutdown, got %d blocks.", failed, len(restarted.RetrieveBlocks()))
			}
			t.Logf("\t%s\tTest 0:\tShould write the missed block at shutdown.", success)
		}

		t.Logf("\tTest 1:\tWhen the genesis write fails during a truncate.")
		{
			strg := memory.New()
			fs := flakyStorage{Storage: strg}

			st, err := state.New(state.Config{Storage: &fs, Clock: slowClock()})
			ifErrFailNow(t, err)

			_, _, err = st.MineNewBlock(context.Background(), block.Text("A->B:10"))
			ifErrFailNow(t, err)
			before := st.RetrieveBlocks()

			fs.failNext(1)
			if err := st.Truncate(); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould get the write error.", failed)
			}

			after := st.RetrieveBlocks()
			if len(after) != len(before) || after[len(after)-1].Hash != before[len(before)-1].Hash {
				t.Fatalf("\t%s\tTest 1:\tShould keep the current chain.", failed)
			}
			if err := st.Validate(); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould keep a valid chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the current chain.", success)

			number, _, err := st.MineNewBlock(context.Background(), block.Text("B->C:5"))
			ifErrFailNow(t, err)

			for i := uint64(0); i <= number; i++ {
				if _, err := strg.GetBlock(i); err != nil {
					t.Fatalf("\t%s\tTest 1:\tShould write the chain back to storage, block %d: %v", failed, i, err)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould write the chain back to storage.", success)
		}
	}
}

func Test_ReadsDuringMining(t *testing.T) {
	t.Log("Given the need to answer reads while a block is being mined.")
	{
		t.Logf("\tTest 0:\tWhen mining holds the chain.")
		{
			fs := flakyStorage{Storage: memory.New()}

			st, err := state.New(state.Config{Storage: &fs, Clock: slowClock()})
			ifErrFailNow(t, err)

			entered, release := fs.hold()

			mined := make(chan error, 1)
			go func() {
				_, _, err := st.MineNewBlock(context.Background(), block.Text("A->B:10"))
				mined <- err
			}()

			// The write happens while mining still holds the chain.
			<-entered

			done := make(chan struct{})
			go func() {
				defer close(done)

				st.RetrieveTargetInterval()
				st.RetrieveDifficulty()
				st.RetrieveLatestBlock()
				st.RetrieveBlocks()
				st.QueryBlockByNumber(0)
				st.Validate()
			}()

			select {
			case <-done:
				t.Logf("\t%s\tTest 0:\tShould answer reads without waiting on mining.", success)
			case <-time.After(5 * time.Second):
				release()
				t.Fatalf("\t%s\tTest 0:\tShould answer reads without waiting on mining.", failed)
			}

			release()
			ifErrFailNow(t, <-mined)

			if st.RetrieveTargetInterval() != 30000 {
				t.Fatalf("\t%s\tTest 0:\tShould report the default target interval.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould report the default target interval.", success)
		}
	}
}
