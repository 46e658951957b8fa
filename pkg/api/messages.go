package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/logger"
)

// NodeStatus is the operator-facing snapshot of chain/mempool state.
type NodeStatus struct {
	Height     uint64 `json:"height"`
	MempoolLen int    `json:"mempool_size"`
	Difficulty uint64 `json:"difficulty"`
}

// UserStatus is the operator-facing snapshot of the node's own wallet.
type UserStatus struct {
	Amount uint64 `json:"amount"`
	PK     string `json:"pk"`
}

// Recipient is one payee in a TransactionRequest: a hex pubkey-hash
// address paired with a value, wire-encoded as a 2-element JSON array
// (["<hex>", value]) rather than an object.
type Recipient struct {
	Address string
	Value   uint64
}

func (r Recipient) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{r.Address, r.Value})
}

func (r *Recipient) UnmarshalJSON(data []byte) error {
	var pair [2]interface{}
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("api: decode recipient: %w", err)
	}
	address, ok := pair[0].(string)
	if !ok {
		return fmt.Errorf("api: recipient address must be a string")
	}
	value, ok := pair[1].(float64)
	if !ok {
		return fmt.Errorf("api: recipient value must be a number")
	}
	r.Address = address
	r.Value = uint64(value)
	return nil
}

// TransactionRequest is the operator's spend instruction: who gets
// paid what, plus the fee offered to the miner that includes it.
type TransactionRequest struct {
	Recipients []Recipient `json:"recipients"`
	Fee        uint64      `json:"fee"`
}

func (r TransactionRequest) log(log *logger.Logger) {
	log.Info("new transaction requested, fee=%d", r.Fee)
	for _, rec := range r.Recipients {
		log.Info("  recipient %s: %d", rec.Address, rec.Value)
	}
}

func (r TransactionRequest) totalSpend() uint64 {
	total := r.Fee
	for _, rec := range r.Recipients {
		total += rec.Value
	}
	return total
}

func (r TransactionRequest) outputs() ([]block.OutputSpec, error) {
	outputs := make([]block.OutputSpec, 0, len(r.Recipients))
	for _, rec := range r.Recipients {
		pkh, err := hex.DecodeString(rec.Address)
		if err != nil {
			return nil, fmt.Errorf("api: invalid recipient address %q: %w", rec.Address, err)
		}
		outputs = append(outputs, block.OutputSpec{Value: rec.Value, RecipientPKH: pkh})
	}
	return outputs, nil
}

// TransactionResponse reports whether a submitted transaction was
// accepted for broadcast.
type TransactionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
