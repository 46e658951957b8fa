// Package miner implements multithreaded proof-of-work search: a pool
// of worker goroutines race to find a nonce on the current candidate
// block, reporting every hash that meets the target difficulty, while a
// controller goroutine restarts the pool whenever it is told the chain
// tip has changed underneath it.
package miner

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/logger"
)

// progressInterval is how many nonce attempts a single worker makes
// between progress log lines.
const progressInterval = 250_000

// CommandKind distinguishes the two things a running controller can be
// told to do.
type CommandKind int

const (
	// Stop halts every worker and returns control to the caller.
	Stop CommandKind = iota
	// UpdateBlock halts the current pool, builds a fresh candidate block,
	// and restarts mining on it. Sent whenever a block is handled by the
	// protocol handler or command dispatcher; new transactions do not
	// trigger it.
	UpdateBlock
)

// Command is sent on the controller's command channel.
type Command struct {
	Kind CommandKind
}

// NextBlockFunc builds the next candidate block to mine, reflecting
// whatever chain tip and mempool contents are current at call time.
type NextBlockFunc func() *block.Block

// Controller owns a pool of mining worker goroutines and restarts them
// in response to Command values.
type Controller struct {
	log       *logger.Logger
	nextBlock NextBlockFunc
	found     chan<- *block.Block
	commands  <-chan Command
	threads   int
}

// NewController builds a Controller. threads <= 0 defaults to
// runtime.NumCPU(), matching one worker per available core.
func NewController(nextBlock NextBlockFunc, found chan<- *block.Block, commands <-chan Command, threads int) *Controller {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &Controller{
		log:       logger.Default().WithPrefix("miner"),
		nextBlock: nextBlock,
		found:     found,
		commands:  commands,
		threads:   threads,
	}
}

// Run drives the controller loop until a Stop command arrives or the
// command channel is closed. It blocks, so callers run it in its own
// goroutine.
func (c *Controller) Run() {
	c.log.Info("mining controller started with %d threads", c.threads)

	stop := &atomic.Bool{}
	var wg sync.WaitGroup
	c.spawn(stop, &wg, c.nextBlock())

	for cmd := range c.commands {
		switch cmd.Kind {
		case Stop:
			c.log.Info("stopping mining threads")
			stop.Store(true)
			wg.Wait()
			return
		case UpdateBlock:
			stop.Store(true)
			wg.Wait()
			stop = &atomic.Bool{}
			c.spawn(stop, &wg, c.nextBlock())
		}
	}
	stop.Store(true)
	wg.Wait()
}

func (c *Controller) spawn(stop *atomic.Bool, wg *sync.WaitGroup, candidate *block.Block) {
	if candidate == nil {
		c.log.Warn("no candidate block available, mining threads idle")
		return
	}
	c.log.Info("spawning %d mining threads for block %d", c.threads, candidate.Header.Height)
	for i := 0; i < c.threads; i++ {
		wg.Add(1)
		go c.worker(i, candidate.Clone(), stop, wg)
	}
}

// worker searches nonces on its own clone of the candidate block until
// stop is set. It never halts itself on success — finding a valid hash
// only emits it on the found channel; the search continues so other
// threads keep racing until the controller tells every worker to stop.
func (c *Controller) worker(id int, b *block.Block, stop *atomic.Bool, wg *sync.WaitGroup) {
	defer wg.Done()

	count := 1
	for !stop.Load() {
		b.RerollNonce()
		if block.MeetsDifficulty(b.Hash(), b.Header.Difficulty) {
			c.log.Info("thread %d found a valid nonce for block %d", id, b.Header.Height)
			select {
			case c.found <- b.Clone():
			default:
				c.log.Warn("mining output channel full, dropping found block")
			}
		}
		if id == 0 && count%progressInterval == 0 {
			c.log.Info("thread 0 has tried %d nonces", count)
		}
		count++
	}
}
