package p2p

import (
	"net"
	"strconv"
	"time"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/logger"
	"github.com/nodechain/nodechain/pkg/miner"
	"github.com/nodechain/nodechain/pkg/node"
)

// dialTimeout bounds how long an outbound connect attempt may take.
const dialTimeout = 5 * time.Second

// Dispatcher consumes node.NetworkCommand values — the local-origin
// counterpart to Handler's peer-origin messages — and applies the same
// admission rules before broadcasting, plus owns outbound dialing.
type Dispatcher struct {
	log      *logger.Logger
	state    *node.State
	peers    *PeerManager
	minerCmd chan<- miner.Command
	events   chan<- ConnectionEvent
}

// NewDispatcher builds a command Dispatcher. events is the shared
// inbound event channel; dialed connections' readers feed it exactly
// like accepted connections' readers do.
func NewDispatcher(state *node.State, peers *PeerManager, minerCmd chan<- miner.Command, events chan<- ConnectionEvent) *Dispatcher {
	return &Dispatcher{
		log:      logger.Default().WithPrefix("dispatcher"),
		state:    state,
		peers:    peers,
		minerCmd: minerCmd,
		events:   events,
	}
}

// Run drains commands until the channel closes. It blocks; callers run
// it in its own goroutine.
func (d *Dispatcher) Run(commands <-chan node.NetworkCommand) {
	for cmd := range commands {
		switch cmd.Kind {
		case node.CommandBlock:
			d.handleBlock(cmd.Block)
		case node.CommandTransaction:
			d.handleTransaction(cmd.Transaction)
		case node.CommandConnect:
			d.handleConnect(cmd.Addr)
		}
	}
}

func (d *Dispatcher) broadcast(msg Message) {
	payload, err := msg.Encode()
	if err != nil {
		d.log.Error("encode broadcast: %v", err)
		return
	}
	d.peers.Broadcast(ConnectionResponse{Kind: Message, Payload: payload})
}

// handleBlock admits a locally mined block exactly like a peer-sourced
// one. Old blocks are simply dropped: duplicate submissions from
// mining threads that kept racing after another thread already won are
// expected and harmless. The miner is always told to update its
// candidate, whether or not this particular submission was accepted.
func (d *Dispatcher) handleBlock(b *block.Block) {
	if d.state.IsNewBlock(b) {
		d.state.AddBlock(b)
		d.broadcast(NewBlockMsg(b))
	} else {
		d.log.Warn("dropping stale locally mined block at height %d", b.Header.Height)
	}
	select {
	case d.minerCmd <- miner.Command{Kind: miner.UpdateBlock}:
	default:
		d.log.Warn("miner command channel full")
	}
}

func (d *Dispatcher) handleTransaction(tx *block.Transaction) {
	if !d.state.IsNewTransaction(tx) {
		return
	}
	d.state.AddTransaction(tx)
	d.broadcast(TransactionMsg(tx))
}

// handleConnect dials addr unless it is already a peer or resolves to
// this node's own listening address.
func (d *Dispatcher) handleConnect(addr string) {
	if d.peers.Contains(addr) {
		return
	}
	if d.isSelf(addr) {
		return
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		d.log.Warn("dial %s: %v", addr, err)
		return
	}

	responses := make(chan ConnectionResponse, 100)
	d.peers.Insert(addr, responses)
	go Receiver(conn, addr, d.events, d.log)
	go Sender(conn, responses, addr, d.log)

	localHeight, ok := d.state.Height()
	var h *uint64
	if ok {
		h = &localHeight
	}
	payload, err := VerackMsg(0, h).Encode()
	if err != nil {
		d.log.Error("encode opening verack: %v", err)
		return
	}
	if err := d.peers.Send(addr, ConnectionResponse{Kind: Message, Payload: payload}); err != nil {
		d.log.Warn("send opening verack to %s: %v", addr, err)
	}
}

func (d *Dispatcher) isSelf(addr string) bool {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return false
	}
	cfg := d.state.Config
	return uint16(port) == cfg.Port && (host == cfg.LocalIP || host == cfg.GlobalIP || host == "127.0.0.1" || host == "localhost")
}
