// Package node aggregates the chain, mempool, UTXO set, and wallet
// behind one reader-writer lock, and implements the admission checks
// (is_new_block, is_new_transaction) and candidate-block assembly that
// every other task — protocol handler, command dispatcher, mining
// controller — drives through.
package node

import (
	"fmt"
	"sync"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/chain"
	"github.com/nodechain/nodechain/pkg/mempool"
	"github.com/nodechain/nodechain/pkg/utxo"
	"github.com/nodechain/nodechain/pkg/wallet"
)

// State is the node-wide aggregate. Compound mutations (AddBlock,
// AddTransaction, UpdateMempool) take the write lock; read-only queries
// (IsNewBlock, IsNewTransaction, GetNextBlock, NextHeight) take the read
// lock. The UTXO set has its own internal lock so validation reads can
// proceed independent of this outer lock when called directly.
type State struct {
	mu sync.RWMutex

	Chain   *chain.Chain
	Mempool *mempool.Mempool
	UTXOs   *utxo.Set
	Wallet  *wallet.Wallet
	Config  *Config
}

// New builds a fresh node state around a newly generated wallet keypair.
func New(cfg *Config) (*State, error) {
	w, err := wallet.New()
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	return &State{
		Chain:   chain.New(),
		Mempool: mempool.New(),
		UTXOs:   utxo.New(),
		Wallet:  w,
		Config:  cfg,
	}, nil
}

// Height returns the chain tip's height, and false before genesis.
func (s *State) Height() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Chain.Height()
}

// NextHeight returns 0 before genesis, else tip+1.
func (s *State) NextHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Chain.NextHeight()
}

// AddBlock appends b to the chain and folds its effects into the
// mempool, wallet, and UTXO set. Returns false if the chain rejected it
// (wrong height). Callers must have already gated on IsNewBlock.
func (s *State) AddBlock(b *block.Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Chain.AddBlock(b) {
		return false
	}
	s.UTXOs.ApplyBlock(b)
	s.Mempool.AddBlock(b)
	s.Wallet.ApplyBlock(b)
	return true
}

// AddTransaction computes tx's fee against the current UTXO set and adds
// it to the mempool. Callers must have already gated on IsNewTransaction.
func (s *State) AddTransaction(tx *block.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fee := s.UTXOs.CalculateFee(tx)
	s.Mempool.Add(tx, fee)
}

// UpdateMempool merges a peer's mempool snapshot, keeping only entries
// that still validate against the current UTXO set.
func (s *State) UpdateMempool(entries []utxo.MempoolEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if s.UTXOs.ValidatePending(e.Transaction) {
			s.Mempool.Add(e.Transaction, e.Fee)
		}
	}
}

// IsNewBlock reports whether b is acceptable: it validates against the
// current UTXO snapshot and its height matches the expected next height.
func (s *State) IsNewBlock(b *block.Block) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.UTXOs.ValidateBlock(b, s.Config.Reward) {
		return false
	}
	return b.Header.Height == s.Chain.NextHeight()
}

// IsNewTransaction reports whether tx is admissible: it validates
// against the current UTXO set and is not already pending.
func (s *State) IsNewTransaction(tx *block.Transaction) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.UTXOs.ValidatePending(tx) {
		return false
	}
	return !s.Mempool.Contains(tx)
}

// GetNextBlock assembles a candidate block for the miner: the next
// height's transactions drawn from the mempool, rooted at the current
// tip (or the genesis anchor if the chain is empty).
func (s *State) GetNextBlock() *block.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txs := s.Mempool.GetNextTransactions(s.UTXOs, s.Wallet.Keypair.PublicKeyHash(), s.Config.Reward, s.Config.Version)
	return block.NewBlock(s.Chain.NextHeight(), s.Config.Difficulty, s.Config.Version, txs, s.Chain.TipHash())
}
