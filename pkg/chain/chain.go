// Package chain implements a strictly tip-only append-only block
// sequence: a block is accepted only if its height is exactly tip+1, and
// a second block at an already-occupied height is simply rejected rather
// than compared or buffered. There is no reorganization or fork choice.
package chain

import (
	"encoding/hex"
	"sync"

	"github.com/nodechain/nodechain/pkg/block"
)

// Chain is an ordered sequence of blocks; block i has height i.
type Chain struct {
	mu            sync.RWMutex
	byHash        map[string]*block.Block
	byHeight      map[uint64]*block.Block
	tip           *block.Block
}

// New returns an empty chain (no genesis block accepted yet).
func New() *Chain {
	return &Chain{
		byHash:   make(map[string]*block.Block),
		byHeight: make(map[uint64]*block.Block),
	}
}

// Tip returns the current best block, or nil if the chain is empty.
func (c *Chain) Tip() *block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

// Height returns the tip's height and whether a tip exists.
func (c *Chain) Height() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tip == nil {
		return 0, false
	}
	return c.tip.Header.Height, true
}

// NextHeight returns 0 when the chain is empty (genesis), else tip+1.
func (c *Chain) NextHeight() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tip == nil {
		return 0
	}
	return c.tip.Header.Height + 1
}

// TipHash returns the tip's hash, or the genesis anchor if the chain is
// empty.
func (c *Chain) TipHash() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tip == nil {
		return block.GenesisAnchor()
	}
	return c.tip.Hash()
}

// AddBlock appends b to the chain. The caller must have already verified
// b.Header.Height == NextHeight() (no fork choice: a block at an already-
// occupied height, or skipping ahead, is simply rejected here rather than
// buffered or reconciled).
func (c *Chain) AddBlock(b *block.Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expected uint64
	if c.tip != nil {
		expected = c.tip.Header.Height + 1
	}
	if b.Header.Height != expected {
		return false
	}

	h := hex.EncodeToString(b.Hash())
	c.byHash[h] = b
	c.byHeight[b.Header.Height] = b
	c.tip = b
	return true
}

// GetByHeight returns the block at a given height, if present.
func (c *Chain) GetByHeight(height uint64) (*block.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.byHeight[height]
	return b, ok
}

// GetByHash returns the block with a given hash, if present.
func (c *Chain) GetByHash(hash []byte) (*block.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.byHash[hex.EncodeToString(hash)]
	return b, ok
}

// Blocks returns every block in height order, for persistence.
func (c *Chain) Blocks() []*block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*block.Block, 0, len(c.byHeight))
	for i := uint64(0); i < uint64(len(c.byHeight)); i++ {
		b, ok := c.byHeight[i]
		if !ok {
			break
		}
		out = append(out, b)
	}
	return out
}

// LoadBlocks repopulates the chain from a previously-persisted,
// height-ordered block list (used by node.Load).
func (c *Chain) LoadBlocks(blocks []*block.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHash = make(map[string]*block.Block)
	c.byHeight = make(map[uint64]*block.Block)
	c.tip = nil
	for _, b := range blocks {
		h := hex.EncodeToString(b.Hash())
		c.byHash[h] = b
		c.byHeight[b.Header.Height] = b
		c.tip = b
	}
}
