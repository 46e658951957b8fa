// Package utxo implements the authoritative unspent-output ledger and the
// validators that check transactions and blocks against it.
package utxo

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nodechain/nodechain/pkg/block"
)

// OutPoint is the composite key identifying a UTXO: the producing
// transaction's hash and the output's position within it.
type OutPoint struct {
	TxHash []byte
	Index  uint32
}

func (o OutPoint) key() string {
	return fmt.Sprintf("%s:%d", hex.EncodeToString(o.TxHash), o.Index)
}

// Set is a mapping from OutPoint to the TxOutput it still holds. It is
// the sole source of truth for spendability.
type Set struct {
	mu  sync.RWMutex
	out map[string]block.TxOutput
	// keys mirrors out's OutPoints so MarshalJSON can emit them without
	// re-parsing the "hash:index" string form back apart.
	keys map[string]OutPoint
}

// New returns an empty UTXO set.
func New() *Set {
	return &Set{
		out:  make(map[string]block.TxOutput),
		keys: make(map[string]OutPoint),
	}
}

func (s *Set) insert(op OutPoint, out block.TxOutput) {
	k := op.key()
	s.out[k] = out
	s.keys[k] = op
}

func (s *Set) remove(op OutPoint) {
	k := op.key()
	delete(s.out, k)
	delete(s.keys, k)
}

// Get looks up a UTXO by outpoint.
func (s *Set) Get(op OutPoint) (block.TxOutput, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.out[op.key()]
	return out, ok
}

// Contains reports whether an outpoint is currently unspent.
func (s *Set) Contains(op OutPoint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.out[op.key()]
	return ok
}

// Len returns the number of unspent outputs.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.out)
}

// Snapshot returns a copy of every (OutPoint, TxOutput) pair.
func (s *Set) Snapshot() map[OutPoint]block.TxOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[OutPoint]block.TxOutput, len(s.out))
	for k, v := range s.out {
		out[s.keys[k]] = v
	}
	return out
}

// ApplyBlock performs no validation — the caller guarantees block
// validity (via ValidateBlock) before calling this. For each transaction
// in order: remove every outpoint referenced by an input, insert every
// output.
func (s *Set) ApplyBlock(b *block.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range b.Transactions {
		hash := tx.Hash()
		for _, in := range tx.Inputs {
			s.remove(OutPoint{TxHash: in.Prev, Index: in.OutputIndex})
		}
		for i, out := range tx.Outputs {
			s.insert(OutPoint{TxHash: hash, Index: uint32(i)}, out)
		}
	}
}

func (s *Set) fundingLocking(in block.TxInput) (block.Script, block.TxOutput, bool) {
	out, ok := s.out[OutPoint{TxHash: in.Prev, Index: in.OutputIndex}.key()]
	if !ok {
		return nil, block.TxOutput{}, false
	}
	return out.LockingScript, out, true
}

// validateScripts checks every input's unlocking script against its
// funding output's locking script. Missing UTXOs and script failures are
// both reported as boolean false; callers decide whether the event is
// fatal (error-handling design section 7: validation failures are
// silently dropped, never escalated as typed errors).
func (s *Set) validateScripts(tx *block.Transaction) bool {
	for i, in := range tx.Inputs {
		locking, _, ok := s.fundingLocking(in)
		if !ok {
			return false
		}
		if !block.Validate(in.UnlockingScript, locking, tx, i, locking) {
			return false
		}
	}
	return true
}

func (s *Set) inputValue(tx *block.Transaction) (uint64, bool) {
	var total uint64
	for _, in := range tx.Inputs {
		_, out, ok := s.fundingLocking(in)
		if !ok {
			return 0, false
		}
		total += out.Value
	}
	return total, true
}

func outputValue(tx *block.Transaction) uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		total += out.Value
	}
	return total
}

// ValidatePending reports whether a non-coinbase transaction's scripts
// validate and it does not spend more than it's worth
// (sum(inputs) >= sum(outputs)) — used for mempool admission, where the
// fee has not yet been attached.
func (s *Set) ValidatePending(tx *block.Transaction) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validateScripts(tx) {
		return false
	}
	in, ok := s.inputValue(tx)
	if !ok {
		return false
	}
	return in >= outputValue(tx)
}

// ValidateConfirmed reports whether a transaction's scripts validate and
// it conserves value exactly (sum(inputs) == sum(outputs)) — used inside
// block validation, where the fee has already been redirected to the
// coinbase rather than lost.
func (s *Set) ValidateConfirmed(tx *block.Transaction) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validateScripts(tx) {
		return false
	}
	in, ok := s.inputValue(tx)
	if !ok {
		return false
	}
	return in == outputValue(tx)
}

// CalculateFee returns sum(inputs) - sum(outputs). Precondition:
// ValidatePending(tx) holds (inputs >= outputs), so the subtraction
// cannot underflow for a transaction this was actually called on.
func (s *Set) CalculateFee(tx *block.Transaction) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.inputValue(tx)
	if !ok {
		return 0
	}
	out := outputValue(tx)
	if in < out {
		return 0
	}
	return in - out
}

// ValidateBlock reports whether b's first transaction is coinbase paying
// exactly reward and every subsequent transaction validates as confirmed
// against this (pre-block) UTXO snapshot.
func (s *Set) ValidateBlock(b *block.Block, reward uint64) bool {
	if len(b.Transactions) == 0 {
		return false
	}
	if !b.Transactions[0].IsCoinbase(reward) {
		return false
	}
	for _, tx := range b.Transactions[1:] {
		if !s.ValidateConfirmed(tx) {
			return false
		}
	}
	return true
}

// MempoolEntry pairs a pending transaction with its recorded fee, for
// ValidateMempool.
type MempoolEntry struct {
	Transaction *block.Transaction
	Fee         uint64
}

// ValidateMempool reports whether every entry validates as pending and
// its recorded fee matches CalculateFee.
func (s *Set) ValidateMempool(entries []MempoolEntry) bool {
	for _, e := range entries {
		if !s.ValidatePending(e.Transaction) {
			return false
		}
		if s.CalculateFee(e.Transaction) != e.Fee {
			return false
		}
	}
	return true
}

// MarshalJSON emits the UTXO set as a plain object keyed by
// "<hex-hash>:<index>" strings, since s.out is already string-keyed.
func (s *Set) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.out)
}

// UnmarshalJSON restores a UTXO set from its plain-object form.
func (s *Set) UnmarshalJSON(data []byte) error {
	var out map[string]block.TxOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode utxo set: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = out
	s.keys = make(map[string]OutPoint, len(out))
	for k := range out {
		op, err := parseKey(k)
		if err != nil {
			return err
		}
		s.keys[k] = op
	}
	return nil
}

func parseKey(k string) (OutPoint, error) {
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] == ':' {
			hash, err := hex.DecodeString(k[:i])
			if err != nil {
				return OutPoint{}, fmt.Errorf("parse utxo key %q: %w", k, err)
			}
			var idx uint32
			if _, err := fmt.Sscanf(k[i+1:], "%d", &idx); err != nil {
				return OutPoint{}, fmt.Errorf("parse utxo key %q: %w", k, err)
			}
			return OutPoint{TxHash: hash, Index: idx}, nil
		}
	}
	return OutPoint{}, fmt.Errorf("malformed utxo key %q", k)
}
