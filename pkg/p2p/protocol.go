package p2p

import (
	"github.com/nodechain/nodechain/pkg/logger"
	"github.com/nodechain/nodechain/pkg/miner"
	"github.com/nodechain/nodechain/pkg/node"
)

// Handler is the inbound protocol state machine: it consumes decoded
// connection events, mutates node state, and emits outbound peer
// responses and network commands in reaction.
type Handler struct {
	log      *logger.Logger
	state    *node.State
	peers    *PeerManager
	minerCmd chan<- miner.Command
	netCmd   chan<- node.NetworkCommand
}

// NewHandler builds a protocol Handler.
func NewHandler(state *node.State, peers *PeerManager, minerCmd chan<- miner.Command, netCmd chan<- node.NetworkCommand) *Handler {
	return &Handler{
		log:      logger.Default().WithPrefix("protocol"),
		state:    state,
		peers:    peers,
		minerCmd: minerCmd,
		netCmd:   netCmd,
	}
}

// Run drains events until the channel closes. It blocks; callers run it
// in its own goroutine.
func (h *Handler) Run(events <-chan ConnectionEvent) {
	for ev := range events {
		switch ev.Kind {
		case Close:
			h.log.Info("closed: %s", ev.Addr)
			h.peers.Remove(ev.Addr)
		case Message:
			h.handleMessage(ev.Addr, ev.Payload)
		}
	}
}

func (h *Handler) reply(addr string, msg Message) {
	payload, err := msg.Encode()
	if err != nil {
		h.log.Error("encode reply to %s: %v", addr, err)
		return
	}
	if err := h.peers.Send(addr, ConnectionResponse{Kind: Message, Payload: payload}); err != nil {
		h.log.Warn("send to %s: %v", addr, err)
	}
}

func (h *Handler) broadcast(msg Message) {
	payload, err := msg.Encode()
	if err != nil {
		h.log.Error("encode broadcast: %v", err)
		return
	}
	h.peers.Broadcast(ConnectionResponse{Kind: Message, Payload: payload})
}

func (h *Handler) handleMessage(addr string, payload []byte) {
	msg, err := DecodeMessage(payload)
	if err != nil {
		h.log.Warn("unable to decode message from %s: %v", addr, err)
		return
	}

	switch msg.Kind {
	case MsgGetBlock:
		if b, ok := h.state.Chain.GetByHeight(msg.Height); ok {
			h.reply(addr, NewBlockMsg(b))
		}

	case MsgNewBlock:
		b := msg.Block
		if !h.state.IsNewBlock(b) {
			h.log.Warn("old block received from %s", addr)
			return
		}
		h.state.AddBlock(b)
		select {
		case h.minerCmd <- miner.Command{Kind: miner.UpdateBlock}:
		default:
			h.log.Warn("miner command channel full")
		}
		h.log.Info("requesting next block")
		h.broadcast(NewBlockMsg(b))
		h.reply(addr, GetBlock(h.state.NextHeight()))

	case MsgVerack:
		v := msg.Verack
		if v.Index == 0 {
			localHeight, ok := h.state.Height()
			var reply *uint64
			if ok {
				reply = &localHeight
			}
			h.reply(addr, VerackMsg(1, reply))
		}

		localHeight, haveLocal := h.state.Height()
		switch {
		case v.Height == nil:
			return
		case !haveLocal:
			h.reply(addr, GetBlock(0))
		case *v.Height > localHeight:
			h.reply(addr, GetBlock(localHeight+1))
		}

	case MsgTransaction:
		tx := msg.Transaction
		if !h.state.IsNewTransaction(tx) {
			return
		}
		h.state.AddTransaction(tx)
		h.broadcast(TransactionMsg(tx))

	case MsgGetInv:
		h.reply(addr, InvMsg(h.state.Mempool.Entries()))

	case MsgInv:
		h.state.UpdateMempool(msg.Mempool)

	case MsgGetPeers:
		h.reply(addr, PeersMsg(h.peers.GetPeers()))
		h.peers.ResetTick(addr)

	case MsgPeers:
		for _, p := range msg.Peers {
			select {
			case h.netCmd <- node.NetworkCommand{Kind: node.CommandConnect, Addr: p}:
			default:
				h.log.Warn("network command channel full, dropping connect to %s", p)
			}
		}

	case MsgPing:
		h.reply(addr, Pong())

	case MsgPong:
	}
}
