package block

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// BlockHeader carries everything needed to prove work and chain a block
// to its predecessor. Nonce is 32 random bytes, regenerated fresh on
// every mining attempt rather than incremented (see pkg/miner).
type BlockHeader struct {
	PrevHash   []byte `json:"prev_hash"`
	MerkleRoot []byte `json:"merkle_root"`
	Timestamp  int64  `json:"timestamp"`
	Difficulty uint64 `json:"difficulty"`
	Nonce      []byte `json:"nonce"`
	Version    uint32 `json:"version"`
	Height     uint64 `json:"height"`
}

// Block is a header plus its ordered transaction list. Its hash covers
// the full serialization (header + body), not just the header.
type Block struct {
	Header       *BlockHeader   `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// GenesisAnchor is the prev_hash value used for the candidate block built
// when the chain is empty (no genesis block accepted yet).
func GenesisAnchor() []byte {
	sum := sha256.Sum256([]byte("hello world"))
	return sum[:]
}

// NewBlock assembles a candidate block: computes the Merkle root over
// transactions, and stamps a fresh random nonce and wall-clock timestamp.
func NewBlock(height uint64, difficulty uint64, version uint32, transactions []*Transaction, prevHash []byte) *Block {
	nonce := randomNonce()
	return &Block{
		Header: &BlockHeader{
			PrevHash:   prevHash,
			MerkleRoot: MerkleRoot(transactions),
			Timestamp:  time.Now().Unix(),
			Difficulty: difficulty,
			Nonce:      nonce,
			Version:    version,
			Height:     height,
		},
		Transactions: transactions,
	}
}

func randomNonce() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the OS entropy source is broken; there
		// is no sane fallback for a proof-of-work nonce.
		panic(fmt.Sprintf("block: failed to generate nonce: %v", err))
	}
	return b
}

// RerollNonce regenerates the header's nonce in place — called once per
// mining attempt by each worker.
func (b *Block) RerollNonce() {
	b.Header.Nonce = randomNonce()
}

// Clone returns a copy with its own header (including Nonce), so
// concurrent mining workers each iterate their own header without
// racing on Nonce. The Transactions slice is shared with the original.
func (b *Block) Clone() *Block {
	h := *b.Header
	h.PrevHash = append([]byte{}, b.Header.PrevHash...)
	h.MerkleRoot = append([]byte{}, b.Header.MerkleRoot...)
	h.Nonce = append([]byte{}, b.Header.Nonce...)
	return &Block{Header: &h, Transactions: b.Transactions}
}

// CanonicalBytes serializes the full block (header + body) — the input
// to both the block hash and the proof-of-work check.
func (b *Block) CanonicalBytes() []byte {
	out, err := json.Marshal(b)
	if err != nil {
		panic(fmt.Sprintf("block: canonical serialization failed: %v", err))
	}
	return out
}

// Hash is SHA-256 of CanonicalBytes.
func (b *Block) Hash() []byte {
	sum := sha256.Sum256(b.CanonicalBytes())
	return sum[:]
}

// MeetsDifficulty reports whether hash has at least `difficulty` leading
// zero bytes.
func MeetsDifficulty(hash []byte, difficulty uint64) bool {
	n := int(difficulty)
	if n > len(hash) {
		n = len(hash)
	}
	for i := 0; i < n; i++ {
		if hash[i] != 0 {
			return false
		}
	}
	return true
}
