package mempool

import (
	"testing"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/crypto"
	"github.com/nodechain/nodechain/pkg/utxo"
)

func init() {
	block.SetSignatureVerifier(crypto.Verify)
}

func spendTx(t *testing.T, kp *crypto.Keypair, prevHash []byte, funding block.Script, outValue uint64) *block.Transaction {
	t.Helper()
	spec := &block.TransactionSpec{
		Keypair: kp,
		Inputs:  []block.InputSpec{{Prev: prevHash, OutputIndex: 0, FundingLocking: funding}},
		Outputs: []block.OutputSpec{{Value: outValue, RecipientPKH: []byte("recipient")}},
		Version: 1,
	}
	tx, err := spec.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return tx
}

func TestAddIsIdempotentOnHash(t *testing.T) {
	m := New()
	tx := &block.Transaction{Timestamp: 1}
	m.Add(tx, 5)
	m.Add(tx, 5)
	if m.Len() != 1 {
		t.Fatalf("expected duplicate insertion to be a no-op, got size %d", m.Len())
	}
}

func TestEmptyMempoolYieldsCoinbaseOnly(t *testing.T) {
	m := New()
	set := utxo.New()
	txs := m.GetNextTransactions(set, []byte("minerpkh"), 10, 1)
	if len(txs) != 1 || !txs[0].IsCoinbase(10) {
		t.Fatalf("expected exactly one coinbase transaction, got %d txs", len(txs))
	}
}

func TestGetNextTransactionsAttachesFee(t *testing.T) {
	kp, _ := crypto.Generate()
	set := utxo.New()
	funding := block.P2PKHLocking(kp.PublicKeyHash())
	fundingTx := &block.Transaction{Outputs: []block.TxOutput{{Value: 100, LockingScript: funding}}}
	set.ApplyBlock(&block.Block{Transactions: []*block.Transaction{fundingTx}})

	tx := spendTx(t, kp, fundingTx.Hash(), funding, 60) // fee = 40

	m := New()
	m.Add(tx, 40)

	txs := m.GetNextTransactions(set, []byte("minerpkh"), 10, 1)
	if len(txs) != 2 {
		t.Fatalf("expected coinbase + 1 tx, got %d", len(txs))
	}
	included := txs[1]
	if included.Outputs[0].Value != 40 {
		t.Fatalf("expected fee output of 40 at position 0, got %+v", included.Outputs[0])
	}
}

func TestGetNextTransactionsEvictsStaleEntries(t *testing.T) {
	kp, _ := crypto.Generate()
	set := utxo.New()
	funding := block.P2PKHLocking(kp.PublicKeyHash())
	fundingTx := &block.Transaction{Outputs: []block.TxOutput{{Value: 100, LockingScript: funding}}}
	set.ApplyBlock(&block.Block{Transactions: []*block.Transaction{fundingTx}})

	tx := spendTx(t, kp, fundingTx.Hash(), funding, 60)
	m := New()
	m.Add(tx, 40)

	// Spend the funding UTXO via a block before assembly runs — tx is now
	// stale (double-spend).
	set.ApplyBlock(&block.Block{Transactions: []*block.Transaction{tx}})

	txs := m.GetNextTransactions(set, []byte("minerpkh"), 10, 1)
	if len(txs) != 1 {
		t.Fatalf("expected stale tx to be excluded, got %d txs", len(txs))
	}
	if m.Len() != 0 {
		t.Fatalf("expected stale tx evicted from mempool, size is %d", m.Len())
	}
}

func TestGetNextTransactionsEvictsEveryInvalidEntry(t *testing.T) {
	set := utxo.New()
	m := New()
	for i := 0; i < TransactionsPerBlock+5; i++ {
		tx := &block.Transaction{Timestamp: int64(i), Version: uint32(i)}
		m.Add(tx, uint64(i))
	}
	// These plain transactions have no valid funding UTXO, so they are all
	// evicted as invalid. More entries than TransactionsPerBlock are queued
	// to confirm invalid entries past the cap are also popped and cleared.
	txs := m.GetNextTransactions(set, []byte("pkh"), 10, 1)
	if len(txs) != 1 {
		t.Fatalf("expected only the coinbase since every entry is invalid, got %d", len(txs))
	}
	if m.Len() != 0 {
		t.Fatalf("expected all invalid entries evicted, size is %d", m.Len())
	}
}

func TestAddBlockRemovesIncludedTransactions(t *testing.T) {
	m := New()
	tx := &block.Transaction{Timestamp: 1}
	m.Add(tx, 5)

	b := &block.Block{Transactions: []*block.Transaction{tx}}
	m.AddBlock(b)

	if m.Contains(tx) {
		t.Fatal("expected included transaction to be removed from mempool")
	}
}

func TestUpdateMergesPreservingUniqueness(t *testing.T) {
	a := New()
	b := New()
	tx1 := &block.Transaction{Timestamp: 1}
	tx2 := &block.Transaction{Timestamp: 2}
	a.Add(tx1, 1)
	b.Add(tx1, 1)
	b.Add(tx2, 2)

	a.Update(b)
	if a.Len() != 2 {
		t.Fatalf("expected merged mempool to have 2 unique entries, got %d", a.Len())
	}
}
