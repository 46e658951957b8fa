package wallet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/crypto"
	"github.com/nodechain/nodechain/pkg/utxo"
)

type walletJSON struct {
	PrivateKeyHex string                     `json:"private_key_hex"`
	Owned         map[string]block.TxOutput `json:"owned"`
	Funds         uint64                     `json:"funds"`
}

// MarshalJSON persists the keypair as hex of its canonical byte form and
// the owned set as a plain object keyed by "<hex-hash>:<index>" strings.
func (w *Wallet) MarshalJSON() ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	owned := make(map[string]block.TxOutput, len(w.owned))
	for op, out := range w.owned {
		key := fmt.Sprintf("%s:%d", hex.EncodeToString(op.TxHash), op.Index)
		owned[key] = out
	}
	return json.Marshal(walletJSON{
		PrivateKeyHex: w.Keypair.PrivateKeyHex(),
		Owned:         owned,
		Funds:         w.funds,
	})
}

// UnmarshalJSON restores a wallet from its persisted form.
func (w *Wallet) UnmarshalJSON(data []byte) error {
	var raw walletJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode wallet: %w", err)
	}
	kp, err := crypto.KeypairFromPrivateHex(raw.PrivateKeyHex)
	if err != nil {
		return fmt.Errorf("decode wallet keypair: %w", err)
	}

	owned := make(map[utxo.OutPoint]block.TxOutput, len(raw.Owned))
	for key, out := range raw.Owned {
		op, err := parseOwnedKey(key)
		if err != nil {
			return err
		}
		owned[op] = out
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.Keypair = kp
	w.owned = owned
	w.funds = raw.Funds
	return nil
}

func parseOwnedKey(k string) (utxo.OutPoint, error) {
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] == ':' {
			hash, err := hex.DecodeString(k[:i])
			if err != nil {
				return utxo.OutPoint{}, fmt.Errorf("parse wallet utxo key %q: %w", k, err)
			}
			var idx uint32
			if _, err := fmt.Sscanf(k[i+1:], "%d", &idx); err != nil {
				return utxo.OutPoint{}, fmt.Errorf("parse wallet utxo key %q: %w", k, err)
			}
			return utxo.OutPoint{TxHash: hash, Index: idx}, nil
		}
	}
	return utxo.OutPoint{}, fmt.Errorf("malformed wallet utxo key %q", k)
}
