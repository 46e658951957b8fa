package node

import "github.com/nodechain/nodechain/pkg/block"

// NetworkCommandKind distinguishes the three intents that flow through
// the command dispatcher.
type NetworkCommandKind int

const (
	// CommandBlock admits and broadcasts a locally- or peer-sourced block.
	CommandBlock NetworkCommandKind = iota
	// CommandTransaction admits and broadcasts a pending transaction.
	CommandTransaction
	// CommandConnect dials a peer address.
	CommandConnect
)

// NetworkCommand is the tagged union consumed by the command dispatcher.
// Block and Transaction commands go through the same admit-broadcast
// path whether they originated locally (miner, operator API) or from an
// inbound protocol message; Connect dials a new peer.
type NetworkCommand struct {
	Kind        NetworkCommandKind
	Block       *block.Block
	Transaction *block.Transaction
	Addr        string
}
