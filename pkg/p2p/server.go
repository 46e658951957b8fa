package p2p

import (
	"fmt"
	"net"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/logger"
	"github.com/nodechain/nodechain/pkg/miner"
	"github.com/nodechain/nodechain/pkg/node"
)

// commandQueueSize bounds the buffered network command channel; sends
// past this are dropped with a logged warning rather than blocking the
// caller (the mining pump, the operator API, or a gossip handler).
const commandQueueSize = 100

// Server owns the listening socket and the goroutines that turn it,
// the peer registry, and node state into a running gossiping node.
type Server struct {
	log        *logger.Logger
	state      *node.State
	peers      *PeerManager
	handler    *Handler
	dispatcher *Dispatcher
	events     chan ConnectionEvent
	commands   chan node.NetworkCommand
}

// NewServer wires a Handler and Dispatcher around shared state, a fresh
// peer registry, and the given miner command channel (used to restart
// mining whenever the chain tip advances).
func NewServer(state *node.State, minerCmd chan<- miner.Command) *Server {
	peers := NewPeerManager()
	events := make(chan ConnectionEvent, commandQueueSize)
	commands := make(chan node.NetworkCommand, commandQueueSize)

	return &Server{
		log:        logger.Default().WithPrefix("p2p"),
		state:      state,
		peers:      peers,
		handler:    NewHandler(state, peers, minerCmd, commands),
		dispatcher: NewDispatcher(state, peers, minerCmd, events),
		events:     events,
		commands:   commands,
	}
}

// Commands returns the channel used to drive outbound network effects:
// a locally mined block, a locally submitted transaction, or a peer to
// dial. The operator API and the mining pump both send on this.
func (s *Server) Commands() chan<- node.NetworkCommand {
	return s.commands
}

// PumpMinedBlocks forwards every block the miner finds onto the
// command channel as a CommandBlock, until found closes.
func (s *Server) PumpMinedBlocks(found <-chan *block.Block) {
	go func() {
		for b := range found {
			select {
			case s.commands <- node.NetworkCommand{Kind: node.CommandBlock, Block: b}:
			default:
				s.log.Warn("network command channel full, dropping mined block at height %d", b.Header.Height)
			}
		}
	}()
}

// Listen binds port, then starts the accept loop and every supporting
// goroutine (protocol handler, command dispatcher, peer refresh). It
// returns once the listener is bound; the accept loop itself runs in
// the background.
func (s *Server) Listen(port uint16) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("p2p: listen on port %d: %w", port, err)
	}

	go s.handler.Run(s.events)
	go s.dispatcher.Run(s.commands)
	go s.peers.RunRefreshLoop()
	go s.acceptLoop(ln)

	s.log.Info("listening on %s", ln.Addr())
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.log.Error("accept: %v", err)
			return
		}
		addr := conn.RemoteAddr().String()
		responses := make(chan ConnectionResponse, commandQueueSize)
		s.peers.Insert(addr, responses)
		go Receiver(conn, addr, s.events, s.log)
		go Sender(conn, responses, addr, s.log)
		s.log.Info("accepted connection from %s", addr)
	}
}
