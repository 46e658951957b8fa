package block

import "crypto/sha256"

// MerkleRoot computes the pairwise SHA-256 reduction over a transaction
// list's hashes. An empty level yields SHA-256 of the literal sentinel
// string "Hello World" (not SHA-256 of the empty byte string), a single
// leaf is hashed concatenated with itself, and an odd trailing element at
// any level is duplicated rather than dropped.
func MerkleRoot(txs []*Transaction) []byte {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.Hash()
	}
	return merkleReduce(leaves)
}

func merkleReduce(level [][]byte) []byte {
	switch len(level) {
	case 0:
		sum := sha256.Sum256([]byte("Hello World"))
		return sum[:]
	case 1:
		doubled := append(append([]byte{}, level[0]...), level[0]...)
		sum := sha256.Sum256(doubled)
		return sum[:]
	case 2:
		combined := append(append([]byte{}, level[0]...), level[1]...)
		sum := sha256.Sum256(combined)
		return sum[:]
	default:
		var next [][]byte
		for i := 0; i < len(level); i += 2 {
			var combined []byte
			if i+1 < len(level) {
				combined = append(append([]byte{}, level[i]...), level[i+1]...)
			} else {
				combined = append(append([]byte{}, level[i]...), level[i]...)
			}
			sum := sha256.Sum256(combined)
			next = append(next, sum[:])
		}
		return merkleReduce(next)
	}
}
