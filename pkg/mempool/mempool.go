// Package mempool implements the fee-ordered, deduplicated queue of
// pending transactions and the block-assembly pass that drains it.
package mempool

import (
	"container/heap"
	"encoding/hex"
	"sync"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/utxo"
)

// TransactionsPerBlock caps how many transactions, the coinbase included,
// a single block-assembly pass returns.
const TransactionsPerBlock = 10

// entry pairs a pending transaction with its recorded fee; index is
// maintained by container/heap for O(log n) pop.
type entry struct {
	tx    *block.Transaction
	fee   uint64
	index int
}

// feeHeap is a max-heap ordered by fee, descending.
type feeHeap []*entry

func (h feeHeap) Len() int            { return len(h) }
func (h feeHeap) Less(i, j int) bool  { return h[i].fee > h[j].fee }
func (h feeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *feeHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *feeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Mempool is a heap-set pair: a max-heap ordered by fee plus a hash-keyed
// set for O(1) duplicate detection. Insertion is idempotent on
// transaction hash.
type Mempool struct {
	mu      sync.RWMutex
	byHash  map[string]*entry
	byFee   feeHeap
}

// New returns an empty mempool.
func New() *Mempool {
	m := &Mempool{byHash: make(map[string]*entry)}
	heap.Init(&m.byFee)
	return m
}

func txKey(tx *block.Transaction) string {
	return hex.EncodeToString(tx.Hash())
}

// Add inserts a transaction with its fee. Duplicate transactions (by
// hash) are silently dropped.
func (m *Mempool) Add(tx *block.Transaction, fee uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := txKey(tx)
	if _, exists := m.byHash[k]; exists {
		return
	}
	e := &entry{tx: tx, fee: fee}
	m.byHash[k] = e
	heap.Push(&m.byFee, e)
}

// Contains reports whether a transaction (by hash) is already pending.
func (m *Mempool) Contains(tx *block.Transaction) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byHash[txKey(tx)]
	return ok
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byHash)
}

// Entries returns a snapshot of every pending (transaction, fee) pair,
// e.g. for utxo.ValidateMempool.
func (m *Mempool) Entries() []utxo.MempoolEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]utxo.MempoolEntry, 0, len(m.byHash))
	for _, e := range m.byHash {
		out = append(out, utxo.MempoolEntry{Transaction: e.tx, Fee: e.fee})
	}
	return out
}

// remove drops a batch of transactions by hash. Because random-access
// heap removal isn't supported, this drains the heap into a filter pass
// — linear in heap size, not logarithmic — which is acceptable because
// removal is only triggered on block acceptance, at most once per block.
func (m *Mempool) remove(hashes map[string]bool) {
	kept := make([]*entry, 0, len(m.byHash))
	for k, e := range m.byHash {
		if hashes[k] {
			delete(m.byHash, k)
			continue
		}
		kept = append(kept, e)
	}
	m.byFee = m.byFee[:0]
	heap.Init(&m.byFee)
	for _, e := range kept {
		heap.Push(&m.byFee, e)
	}
}

// AddBlock removes b's (fee-less) transactions from the mempool — called
// once a block has been accepted.
func (m *Mempool) AddBlock(b *block.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hashes := make(map[string]bool, len(b.Transactions))
	for _, tx := range b.Transactions {
		hashes[hex.EncodeToString(tx.Hash())] = true
	}
	m.remove(hashes)
}

// Update merges another mempool's entries into this one, preserving set
// uniqueness — used when a peer shares its mempool via Inv.
func (m *Mempool) Update(other *Mempool) {
	for _, e := range other.Entries() {
		m.Add(e.Transaction, e.Fee)
	}
}

// GetNextTransactions assembles a candidate block's transaction list:
// seed with a coinbase, then repeatedly pop the highest-fee pending
// transaction, attach its fee as a miner-paid output if it still
// validates against utxos, until TransactionsPerBlock is reached or the
// heap drains; anything found invalid (stale input) is evicted from the
// live mempool as a side effect.
func (m *Mempool) GetNextTransactions(utxos *utxo.Set, minerPKH []byte, reward uint64, version uint32) []*block.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []*block.Transaction{block.NewCoinbase(reward, minerPKH, version)}

	working := make(feeHeap, len(m.byFee))
	copy(working, m.byFee)
	heap.Init(&working)

	invalid := make(map[string]bool)
	for len(working) > 0 && len(result) < TransactionsPerBlock {
		e := heap.Pop(&working).(*entry)
		if !utxos.ValidatePending(e.tx) {
			invalid[txKey(e.tx)] = true
			continue
		}
		fee := utxos.CalculateFee(e.tx)
		attached := e.tx.Clone()
		attached.AddFee(minerPKH, fee)
		result = append(result, attached)
	}

	if len(invalid) > 0 {
		m.remove(invalid)
	}
	return result
}
