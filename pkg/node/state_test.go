package node

import (
	"testing"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/crypto"
)

func init() {
	block.SetSignatureVerifier(crypto.Verify)
}

func testConfig() *Config {
	return &Config{Version: 1, Reward: 10, Difficulty: 0, Port: 8080, LocalIP: "127.0.0.1"}
}

func TestGenesisMineFlow(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := s.GetNextBlock()
	if b.Header.Height != 0 {
		t.Fatalf("expected genesis candidate at height 0, got %d", b.Header.Height)
	}
	if !s.IsNewBlock(b) {
		t.Fatal("expected freshly assembled genesis candidate to be accepted")
	}
	if !s.AddBlock(b) {
		t.Fatal("expected AddBlock to succeed")
	}

	height, ok := s.Height()
	if !ok || height != 0 {
		t.Fatalf("expected height 0 after genesis, got %d (ok=%v)", height, ok)
	}
	if s.Wallet.Funds() != 10 {
		t.Fatalf("expected wallet funds == reward (10), got %d", s.Wallet.Funds())
	}
	if s.UTXOs.Len() != 1 {
		t.Fatalf("expected exactly 1 utxo after genesis, got %d", s.UTXOs.Len())
	}
}

func TestIsNewBlockRejectsWrongHeight(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b := s.GetNextBlock()
	s.AddBlock(b)

	stale := s.GetNextBlock() // still height 1 relative to new tip... build a skip instead
	skip := block.NewBlock(5, 0, 1, stale.Transactions, b.Hash())
	if s.IsNewBlock(skip) {
		t.Fatal("expected a block skipping ahead in height to be rejected")
	}
}

func TestAddTransactionAndIsNewTransaction(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	genesis := s.GetNextBlock()
	s.AddBlock(genesis)

	funding := genesis.Transactions[0]
	fundingLocking := funding.Outputs[0].LockingScript
	spec := &block.TransactionSpec{
		Keypair: s.Wallet.Keypair,
		Inputs:  []block.InputSpec{{Prev: funding.Hash(), OutputIndex: 0, FundingLocking: fundingLocking}},
		Outputs: []block.OutputSpec{{Value: 5, RecipientPKH: []byte("someone")}},
		Version: 1,
	}
	tx, err := spec.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if !s.IsNewTransaction(tx) {
		t.Fatal("expected valid spending transaction to be admissible")
	}
	s.AddTransaction(tx)
	if s.IsNewTransaction(tx) {
		t.Fatal("expected transaction already in mempool to no longer be new")
	}
}

func TestNextHeightAdvancesAfterAddBlock(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.NextHeight() != 0 {
		t.Fatalf("expected NextHeight() == 0 before genesis, got %d", s.NextHeight())
	}
	b := s.GetNextBlock()
	s.AddBlock(b)
	if s.NextHeight() != 1 {
		t.Fatalf("expected NextHeight() == 1 after genesis, got %d", s.NextHeight())
	}
}
