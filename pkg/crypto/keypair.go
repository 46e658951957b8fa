// Package crypto wraps the node's single cryptographic primitive:
// secp256k1 ECDSA keypairs, used for transaction signing and identity.
// A public-key-hash is a single SHA-256 digest of the SEC1-compressed
// public key — not a double hash, and no Base58Check encoding.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Keypair is a secp256k1 signing key with its derived verifying key.
type Keypair struct {
	Private *btcec.PrivateKey
	Public  *btcec.PublicKey
}

// Generate produces a fresh random keypair.
func Generate() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{Private: priv, Public: priv.PubKey()}, nil
}

// PublicKeyBytes returns the SEC1-compressed serialization of the public
// key — the canonical on-wire/on-disk byte form.
func (k *Keypair) PublicKeyBytes() []byte {
	return k.Public.SerializeCompressed()
}

// PublicKeyHash returns SHA-256 of the compressed public key. This is the
// node's sole notion of address: every locking script commits to this
// hash, not to a Base58Check-style human-readable address.
func (k *Keypair) PublicKeyHash() []byte {
	return HashPublicKey(k.PublicKeyBytes())
}

// HashPublicKey computes the public-key-hash (single SHA-256) for an
// arbitrary SEC1-compressed public key byte slice.
func HashPublicKey(pubkeyBytes []byte) []byte {
	sum := sha256.Sum256(pubkeyBytes)
	return sum[:]
}

// Sign produces an ECDSA signature over a 32-byte digest.
func (k *Keypair) Sign(digest []byte) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("sign: digest must be %d bytes, got %d", sha256.Size, len(digest))
	}
	sig := ecdsa.Sign(k.Private, digest)
	return sig.Serialize(), nil
}

// Verify checks a signature over a digest against a SEC1-compressed
// public key. Returns false (never an error) on malformed key/signature,
// matching the script VM's boolean-failure contract.
func Verify(pubkeyBytes, digest, sigBytes []byte) bool {
	pub, err := btcec.ParsePubKey(pubkeyBytes)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(digest, pub)
}

// PrivateKeyHex returns the hex encoding of the raw 32-byte private
// scalar.
func (k *Keypair) PrivateKeyHex() string {
	return hex.EncodeToString(k.Private.Serialize())
}

// KeypairFromPrivateHex reconstructs a Keypair from a hex-encoded private
// scalar, deriving the public key.
func KeypairFromPrivateHex(s string) (*Keypair, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key hex: %w", err)
	}
	priv, pub := btcec.PrivKeyFromBytes(raw)
	return &Keypair{Private: priv, Public: pub}, nil
}
