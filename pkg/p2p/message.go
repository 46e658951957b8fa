// Package p2p implements the node's wire protocol and gossip machinery:
// length-prefixed connection framing, a peer registry, the inbound
// protocol state machine, and the outbound command dispatcher.
package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/utxo"
)

// MessageKind tags the variant carried by a Message.
type MessageKind int

const (
	MsgGetBlock MessageKind = iota
	MsgNewBlock
	MsgVerack
	MsgTransaction
	MsgGetInv
	MsgInv
	MsgGetPeers
	MsgPeers
	MsgPing
	MsgPong
)

// Verack carries the two-message handshake payload: index 0 from the
// dialer, 1 from the acceptor, each stamped with the sender's tip
// height (absent before genesis).
type Verack struct {
	Index  uint8   `json:"index"`
	Height *uint64 `json:"height,omitempty"`
}

// Message is the canonical-encoded tagged union exchanged between
// peers. Only the field matching Kind is populated.
type Message struct {
	Kind        MessageKind          `json:"kind"`
	Height      uint64               `json:"height,omitempty"`
	Block       *block.Block         `json:"block,omitempty"`
	Verack      *Verack              `json:"verack,omitempty"`
	Transaction *block.Transaction   `json:"transaction,omitempty"`
	Mempool     []utxo.MempoolEntry  `json:"mempool,omitempty"`
	Peers       []string             `json:"peers,omitempty"`
}

func GetBlock(height uint64) Message        { return Message{Kind: MsgGetBlock, Height: height} }
func NewBlockMsg(b *block.Block) Message    { return Message{Kind: MsgNewBlock, Block: b} }
func VerackMsg(index uint8, height *uint64) Message {
	return Message{Kind: MsgVerack, Verack: &Verack{Index: index, Height: height}}
}
func TransactionMsg(tx *block.Transaction) Message { return Message{Kind: MsgTransaction, Transaction: tx} }
func GetInv() Message                              { return Message{Kind: MsgGetInv} }
func InvMsg(entries []utxo.MempoolEntry) Message   { return Message{Kind: MsgInv, Mempool: entries} }
func GetPeers() Message                            { return Message{Kind: MsgGetPeers} }
func PeersMsg(addrs []string) Message              { return Message{Kind: MsgPeers, Peers: addrs} }
func Ping() Message                                { return Message{Kind: MsgPing} }
func Pong() Message                                { return Message{Kind: MsgPong} }

// Encode serializes m to its canonical wire form (pre length-prefixing).
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("p2p: encode message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a Message from its wire form.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("p2p: decode message: %w", err)
	}
	return m, nil
}
