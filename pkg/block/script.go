// Package block implements the closed-set script VM, the transaction and
// block data model, and the Merkle-root algorithm. They live in one
// package because CHECKSIG's signature hash needs the owning Transaction
// type, and splitting script and transaction into separate packages
// would create an import cycle.
package block

import (
	"bytes"
	"crypto/sha256"
)

// OpKind enumerates the fixed opcode set the script VM allows.
type OpKind int

const (
	OpPush OpKind = iota
	OpDup
	OpSHA256
	OpCheckSig
	OpEqualVerify
)

// Op is a single script opcode; Data is only meaningful for OpPush.
type Op struct {
	Kind OpKind
	Data []byte
}

// Script is an ordered sequence of opcodes.
type Script []Op

// Push constructs a PUSH opcode.
func Push(b []byte) Op { return Op{Kind: OpPush, Data: b} }

// Concat returns the concatenation of two scripts — used to build the
// unlocking-then-locking evaluation sequence.
func Concat(a, b Script) Script {
	out := make(Script, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// P2PKHLocking builds the canonical pay-to-public-key-hash locking
// script: DUP, SHA256, PUSH(pkh), EQUALVERIFY, CHECKSIG.
func P2PKHLocking(pkh []byte) Script {
	return Script{
		{Kind: OpDup},
		{Kind: OpSHA256},
		Push(pkh),
		{Kind: OpEqualVerify},
		{Kind: OpCheckSig},
	}
}

// P2PKHUnlocking builds the canonical unlocking script: PUSH(sig),
// PUSH(pubkey).
func P2PKHUnlocking(sig, pubkey []byte) Script {
	return Script{Push(sig), Push(pubkey)}
}

// LockingPublicKeyHash extracts the pkh embedded in a P2PKH locking
// script (the PUSH at index 2), or nil if the script isn't shaped like
// one.
func LockingPublicKeyHash(s Script) []byte {
	if len(s) != 5 || s[2].Kind != OpPush {
		return nil
	}
	return s[2].Data
}

// sigVerifier abstracts the concrete signature scheme so the script VM
// does not call pkg/crypto directly, keeping opcode interpretation
// separate from the signature algorithm.
var sigVerifier func(pubkey, digest, sig []byte) bool

// SetSignatureVerifier installs the ECDSA verification function used by
// CHECKSIG. Called once from the node's composition root.
func SetSignatureVerifier(v func(pubkey, digest, sig []byte) bool) {
	sigVerifier = v
}

// Validate evaluates `unlocking ∥ locking` against an empty byte-stack
// and reports whether the top of stack, after execution, holds at least
// one non-zero byte.
func Validate(unlocking, locking Script, tx *Transaction, inputIndex int, fundingLocking Script) bool {
	full := Concat(unlocking, locking)
	var stack [][]byte

	pop := func() ([]byte, bool) {
		n := len(stack)
		if n == 0 {
			return nil, false
		}
		v := stack[n-1]
		stack = stack[:n-1]
		return v, true
	}

	for _, op := range full {
		switch op.Kind {
		case OpPush:
			stack = append(stack, op.Data)
		case OpDup:
			if len(stack) == 0 {
				return false
			}
			top := stack[len(stack)-1]
			cp := make([]byte, len(top))
			copy(cp, top)
			stack = append(stack, cp)
		case OpSHA256:
			x, ok := pop()
			if !ok {
				return false
			}
			sum := sha256.Sum256(x)
			stack = append(stack, sum[:])
		case OpEqualVerify:
			x1, ok1 := pop()
			x2, ok2 := pop()
			if !ok1 || !ok2 || !bytes.Equal(x1, x2) {
				return false
			}
		case OpCheckSig:
			pubkey, ok1 := pop()
			sig, ok2 := pop()
			if !ok1 || !ok2 {
				return false
			}
			digest := SignatureHash(tx, inputIndex, fundingLocking)
			if sigVerifier == nil || !sigVerifier(pubkey, digest, sig) {
				return false
			}
			stack = append(stack, []byte{1})
		}
	}

	if len(stack) == 0 {
		return false
	}
	top := stack[len(stack)-1]
	for _, b := range top {
		if b != 0 {
			return true
		}
	}
	return false
}

// SignatureHash computes the deterministic digest CHECKSIG verifies
// against: clone the transaction, zero every input's unlocking script,
// overwrite inputIndex's unlocking script with the funding UTXO's locking
// script, canonical-serialize, SHA-256. This couples the signature to
// the outputs, the spent script, and the input's position, but not to
// sibling unlocking scripts.
func SignatureHash(tx *Transaction, inputIndex int, fundingLocking Script) []byte {
	clone := tx.Clone()
	for i := range clone.Inputs {
		clone.Inputs[i].UnlockingScript = nil
	}
	clone.Inputs[inputIndex].UnlockingScript = fundingLocking
	sum := sha256.Sum256(clone.CanonicalBytes())
	return sum[:]
}
