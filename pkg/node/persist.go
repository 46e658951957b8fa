package node

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/chain"
	"github.com/nodechain/nodechain/pkg/mempool"
	"github.com/nodechain/nodechain/pkg/utxo"
	"github.com/nodechain/nodechain/pkg/wallet"
)

// SnapshotPath is the fixed location of the whole-node JSON snapshot.
const SnapshotPath = "configs/node.json"

type snapshot struct {
	Blocks  []*block.Block      `json:"blocks"`
	Mempool []utxo.MempoolEntry `json:"mempool"`
	UTXOs   *utxo.Set           `json:"utxos"`
	Wallet  *wallet.Wallet      `json:"wallet"`
	Config  *Config             `json:"config"`
}

// Save persists the entire node state — chain, mempool, UTXO set,
// wallet, and config — as a single JSON document.
func (s *State) Save() error {
	s.mu.RLock()
	snap := snapshot{
		Blocks:  s.Chain.Blocks(),
		Mempool: s.Mempool.Entries(),
		UTXOs:   s.UTXOs,
		Wallet:  s.Wallet,
		Config:  s.Config,
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("node: marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(SnapshotPath), 0755); err != nil {
		return fmt.Errorf("node: create snapshot directory: %w", err)
	}
	if err := os.WriteFile(SnapshotPath, data, 0644); err != nil {
		return fmt.Errorf("node: write snapshot: %w", err)
	}
	return nil
}

// Load restores node state from the snapshot written by Save.
func Load() (*State, error) {
	data, err := os.ReadFile(SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("node: read snapshot: %w", err)
	}

	snap := snapshot{
		UTXOs:  utxo.New(),
		Wallet: &wallet.Wallet{},
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("node: decode snapshot: %w", err)
	}

	c := chain.New()
	c.LoadBlocks(snap.Blocks)

	mp := mempool.New()
	for _, e := range snap.Mempool {
		mp.Add(e.Transaction, e.Fee)
	}

	s := &State{
		Chain:   c,
		Mempool: mp,
		UTXOs:   snap.UTXOs,
		Wallet:  snap.Wallet,
		Config:  snap.Config,
	}
	return s, nil
}
