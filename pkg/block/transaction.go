package block

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nodechain/nodechain/pkg/crypto"
)

// TxInput references a funding output by its producing transaction's
// hash and output position, plus the script that unlocks it.
type TxInput struct {
	Prev            []byte `json:"prev"`
	OutputIndex     uint32 `json:"output_index"`
	UnlockingScript Script `json:"unlocking_script"`
}

// TxOutput is a value paired with the script that locks it.
type TxOutput struct {
	Value         uint64 `json:"value"`
	LockingScript Script `json:"locking_script"`
}

// Transaction is the node's canonical value-transfer record.
type Transaction struct {
	Timestamp int64      `json:"timestamp"`
	Version   uint32     `json:"version"`
	Inputs    []TxInput  `json:"inputs"`
	Outputs   []TxOutput `json:"outputs"`
}

// CanonicalBytes returns the deterministic serialization a transaction's
// hash and signature hashes are computed over. JSON's struct-field
// ordering is stable in Go, so encoding/json is sufficient for a
// canonical form without hand-rolling a binary codec — the same idiom the
// teacher uses throughout (grep confirms it never reaches for
// encoding/gob).
func (t *Transaction) CanonicalBytes() []byte {
	b, err := json.Marshal(t)
	if err != nil {
		// Transaction fields are all JSON-safe primitives/slices; a
		// marshal failure here means a programming error, not bad input.
		panic(fmt.Sprintf("transaction: canonical serialization failed: %v", err))
	}
	return b
}

// Hash is SHA-256 over the transaction's canonical serialization.
func (t *Transaction) Hash() []byte {
	sum := sha256.Sum256(t.CanonicalBytes())
	return sum[:]
}

// Clone returns a deep copy, used by SignatureHash so the original
// transaction's unlocking scripts are never mutated in place.
func (t *Transaction) Clone() *Transaction {
	c := &Transaction{
		Timestamp: t.Timestamp,
		Version:   t.Version,
		Inputs:    make([]TxInput, len(t.Inputs)),
		Outputs:   make([]TxOutput, len(t.Outputs)),
	}
	for i, in := range t.Inputs {
		prev := make([]byte, len(in.Prev))
		copy(prev, in.Prev)
		script := make(Script, len(in.UnlockingScript))
		copy(script, in.UnlockingScript)
		c.Inputs[i] = TxInput{Prev: prev, OutputIndex: in.OutputIndex, UnlockingScript: script}
	}
	for i, out := range t.Outputs {
		script := make(Script, len(out.LockingScript))
		copy(script, out.LockingScript)
		c.Outputs[i] = TxOutput{Value: out.Value, LockingScript: script}
	}
	return c
}

// IsCoinbase reports whether tx is a block's reward transaction: zero
// inputs, exactly one output whose value equals reward.
func (t *Transaction) IsCoinbase(reward uint64) bool {
	return len(t.Inputs) == 0 && len(t.Outputs) == 1 && t.Outputs[0].Value == reward
}

// NewCoinbase builds the first transaction of a block: a single output
// of reward paying the miner's public-key-hash.
func NewCoinbase(reward uint64, minerPKH []byte, version uint32) *Transaction {
	return &Transaction{
		Timestamp: time.Now().Unix(),
		Version:   version,
		Inputs:    nil,
		Outputs: []TxOutput{
			{Value: reward, LockingScript: P2PKHLocking(minerPKH)},
		},
	}
}

// AddFee inserts a coinbase-style output paying fee to the miner at
// position 0 — the miner's block-assembly step performs this; the
// mempool always stores transactions in their pre-fee form.
func (t *Transaction) AddFee(minerPKH []byte, fee uint64) {
	feeOutput := TxOutput{Value: fee, LockingScript: P2PKHLocking(minerPKH)}
	t.Outputs = append([]TxOutput{feeOutput}, t.Outputs...)
}

// RemoveFee pops the position-0 fee output added by AddFee.
func (t *Transaction) RemoveFee() {
	if len(t.Outputs) == 0 {
		return
	}
	t.Outputs = t.Outputs[1:]
}

// InputSpec describes one input to be built by TransactionSpec: the
// funding outpoint plus the funding output's locking script (needed to
// compute the sig-hash and build the unlocking script).
type InputSpec struct {
	Prev           []byte
	OutputIndex    uint32
	FundingLocking Script
}

// OutputSpec describes one output to be built: a value and the
// recipient's public-key-hash.
type OutputSpec struct {
	Value        uint64
	RecipientPKH []byte
}

// TransactionSpec is a two-phase transaction builder: the sig-hash must
// see every input and output but no unlocking scripts, so finalization
// first materializes the transaction with empty input scripts, then
// signs each input against its own sig-hash and only then fills in the
// unlocking script.
type TransactionSpec struct {
	Keypair *crypto.Keypair
	Inputs  []InputSpec
	Outputs []OutputSpec
	Version uint32
}

// Finalize performs the two-phase build described above.
func (s *TransactionSpec) Finalize() (*Transaction, error) {
	tx := &Transaction{
		Timestamp: time.Now().Unix(),
		Version:   s.Version,
		Inputs:    make([]TxInput, len(s.Inputs)),
		Outputs:   make([]TxOutput, len(s.Outputs)),
	}
	for i, in := range s.Inputs {
		tx.Inputs[i] = TxInput{Prev: in.Prev, OutputIndex: in.OutputIndex, UnlockingScript: nil}
	}
	for i, out := range s.Outputs {
		tx.Outputs[i] = TxOutput{Value: out.Value, LockingScript: P2PKHLocking(out.RecipientPKH)}
	}

	// Phase two: the transaction above (with empty unlocking scripts) is
	// exactly what every sig-hash must see. Sign each input in place.
	pubkey := s.Keypair.PublicKeyBytes()
	for i, in := range s.Inputs {
		digest := SignatureHash(tx, i, in.FundingLocking)
		sig, err := s.Keypair.Sign(digest)
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", i, err)
		}
		tx.Inputs[i].UnlockingScript = P2PKHUnlocking(sig, pubkey)
	}
	return tx, nil
}
