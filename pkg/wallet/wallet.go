// Package wallet maintains a single node's keypair, its subset of the
// UTXO set it owns, and the transaction builder used to spend from that
// subset. There is deliberately one keypair per wallet: no encrypted
// wallet file, no multi-account map, no key derivation hierarchy.
package wallet

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/crypto"
	"github.com/nodechain/nodechain/pkg/utxo"
)

// Wallet is {keypair, owned-utxo subset, cached funds}.
type Wallet struct {
	mu      sync.RWMutex
	Keypair *crypto.Keypair
	owned   map[utxo.OutPoint]block.TxOutput
	funds   uint64
}

// New creates a wallet around a fresh keypair.
func New() (*Wallet, error) {
	kp, err := crypto.Generate()
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	return &Wallet{Keypair: kp, owned: make(map[utxo.OutPoint]block.TxOutput)}, nil
}

// FromKeypair builds a wallet with an empty owned set around an
// already-generated keypair.
func FromKeypair(kp *crypto.Keypair) *Wallet {
	return &Wallet{Keypair: kp, owned: make(map[utxo.OutPoint]block.TxOutput)}
}

// Funds returns the cached sum of owned-output values.
func (w *Wallet) Funds() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.funds
}

// OwnedCount returns the number of UTXOs currently tracked as owned.
func (w *Wallet) OwnedCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.owned)
}

// ApplyBlock updates the owned subset after a block is accepted: for
// each transaction, remove any owned outpoint it spends, then inspect
// each output's locking script for this wallet's pkh and adopt any
// match.
func (w *Wallet) ApplyBlock(b *block.Block) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pkh := w.Keypair.PublicKeyHash()
	for _, tx := range b.Transactions {
		for _, in := range tx.Inputs {
			op := utxo.OutPoint{TxHash: in.Prev, Index: in.OutputIndex}
			if out, ok := w.owned[op]; ok {
				delete(w.owned, op)
				w.funds -= out.Value
			}
		}
		hash := tx.Hash()
		for i, out := range tx.Outputs {
			outPKH := block.LockingPublicKeyHash(out.LockingScript)
			if outPKH == nil || !bytes.Equal(outPKH, pkh) {
				continue
			}
			op := utxo.OutPoint{TxHash: hash, Index: uint32(i)}
			w.owned[op] = out
			w.funds += out.Value
		}
	}
}

// NewTransaction builds a transaction spending `spend = sum(outputs)`
// plus fee from the owned UTXO set, in arbitrary (map iteration) order,
// appending a self-paying change output for any remainder. Callers are
// expected to have already checked Funds() >= spend+fee; this returns an
// error rather than panicking when that check was skipped.
func (w *Wallet) NewTransaction(version uint32, outputs []block.OutputSpec, fee uint64) (*block.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var spend uint64
	for _, o := range outputs {
		spend += o.Value
	}
	need := spend + fee

	var inputs []block.InputSpec
	var drained uint64
	for op, out := range w.owned {
		inputs = append(inputs, block.InputSpec{
			Prev:           op.TxHash,
			OutputIndex:    op.Index,
			FundingLocking: out.LockingScript,
		})
		drained += out.Value
		if drained >= need {
			break
		}
	}

	if drained < need {
		return nil, fmt.Errorf("wallet: insufficient funds: have %d, need %d", drained, need)
	}

	allOutputs := make([]block.OutputSpec, len(outputs))
	copy(allOutputs, outputs)
	if change := drained - need; change > 0 {
		allOutputs = append(allOutputs, block.OutputSpec{
			Value:        change,
			RecipientPKH: w.Keypair.PublicKeyHash(),
		})
	}

	spec := &block.TransactionSpec{
		Keypair: w.Keypair,
		Inputs:  inputs,
		Outputs: allOutputs,
		Version: version,
	}
	return spec.Finalize()
}
