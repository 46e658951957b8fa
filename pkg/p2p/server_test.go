package p2p

import (
	"net"
	"testing"
	"time"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/miner"
	"github.com/nodechain/nodechain/pkg/node"
)

func TestServerListenBindsPort(t *testing.T) {
	s := testState(t)
	minerCmd := make(chan miner.Command, 4)
	srv := NewServer(s, minerCmd)

	if err := srv.Listen(0); err != nil {
		t.Fatalf("Listen: %v", err)
	}
}

func TestServerAcceptLoopRegistersPeer(t *testing.T) {
	s := testState(t)
	minerCmd := make(chan miner.Command, 4)
	srv := NewServer(s, minerCmd)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.acceptLoop(ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(srv.peers.GetPeers()) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected exactly one registered peer after a connection")
}

func TestServerPumpMinedBlocksForwardsToCommands(t *testing.T) {
	s := testState(t)
	minerCmd := make(chan miner.Command, 4)
	srv := NewServer(s, minerCmd)

	found := make(chan *block.Block, 1)
	srv.PumpMinedBlocks(found)

	candidate := s.GetNextBlock()
	found <- candidate
	close(found)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		select {
		case cmd := <-srv.commands:
			if cmd.Kind != node.CommandBlock || cmd.Block != candidate {
				t.Fatalf("got %+v, want CommandBlock carrying the mined candidate", cmd)
			}
			return
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatal("expected the mined block to be forwarded to the command channel")
}
