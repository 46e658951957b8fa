package p2p

import (
	"testing"

	"github.com/nodechain/nodechain/pkg/block"
	"github.com/nodechain/nodechain/pkg/crypto"
	"github.com/nodechain/nodechain/pkg/miner"
	"github.com/nodechain/nodechain/pkg/node"
)

func init() {
	block.SetSignatureVerifier(crypto.Verify)
}

func testState(t *testing.T) *node.State {
	t.Helper()
	s, err := node.New(&node.Config{Version: 1, Reward: 10, Difficulty: 0, Port: 8080, LocalIP: "127.0.0.1"})
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}
	return s
}

func newTestHandler(s *node.State) (*Handler, *PeerManager, <-chan miner.Command, chan ConnectionResponse) {
	peers := NewPeerManager()
	minerCmd := make(chan miner.Command, 4)
	netCmd := make(chan node.NetworkCommand, 4)
	resp := make(chan ConnectionResponse, 4)
	peers.Insert("peer1", resp)
	h := NewHandler(s, peers, minerCmd, netCmd)
	return h, peers, minerCmd, resp
}

func TestHandlerGetBlockRepliesWithBlockWhenPresent(t *testing.T) {
	s := testState(t)
	genesis := s.GetNextBlock()
	s.AddBlock(genesis)

	h, _, _, resp := newTestHandler(s)
	msg, err := GetBlock(0).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	h.handleMessage("peer1", msg)

	select {
	case got := <-resp:
		decoded, err := DecodeMessage(got.Payload)
		if err != nil {
			t.Fatalf("decode reply: %v", err)
		}
		if decoded.Kind != MsgNewBlock || decoded.Block == nil || decoded.Block.Header.Height != 0 {
			t.Fatalf("got %+v, want MsgNewBlock height 0", decoded)
		}
	default:
		t.Fatal("expected a reply on the peer's response channel")
	}
}

func TestHandlerGetBlockSilentWhenAbsent(t *testing.T) {
	s := testState(t)
	h, _, _, resp := newTestHandler(s)
	msg, _ := GetBlock(99).Encode()
	h.handleMessage("peer1", msg)

	select {
	case got := <-resp:
		t.Fatalf("expected no reply, got %+v", got)
	default:
	}
}

func TestHandlerNewBlockAdmitsAndBroadcastsAndRequestsNext(t *testing.T) {
	s := testState(t)
	h, _, minerCmd, resp := newTestHandler(s)
	genesis := s.GetNextBlock()

	msg, _ := NewBlockMsg(genesis).Encode()
	h.handleMessage("peer1", msg)

	height, ok := s.Height()
	if !ok || height != 0 {
		t.Fatalf("expected block to be admitted, height=%d ok=%v", height, ok)
	}

	select {
	case cmd := <-minerCmd:
		if cmd.Kind != miner.UpdateBlock {
			t.Fatalf("got %v, want UpdateBlock", cmd.Kind)
		}
	default:
		t.Fatal("expected an UpdateBlock miner command")
	}

	seenBroadcast, seenGetBlock := false, false
	for i := 0; i < 2; i++ {
		select {
		case r := <-resp:
			decoded, err := DecodeMessage(r.Payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch decoded.Kind {
			case MsgNewBlock:
				seenBroadcast = true
			case MsgGetBlock:
				seenGetBlock = true
				if decoded.Height != 1 {
					t.Fatalf("expected GetBlock(1), got GetBlock(%d)", decoded.Height)
				}
			}
		default:
			t.Fatal("expected two replies: a rebroadcast and a next-block request")
		}
	}
	if !seenBroadcast || !seenGetBlock {
		t.Fatalf("seenBroadcast=%v seenGetBlock=%v", seenBroadcast, seenGetBlock)
	}
}

func TestHandlerNewBlockRejectsStale(t *testing.T) {
	s := testState(t)
	h, _, _, resp := newTestHandler(s)

	genesis := s.GetNextBlock()
	s.AddBlock(genesis)

	stale := block.NewBlock(0, 0, 1, genesis.Transactions, block.GenesisAnchor())
	msg, _ := NewBlockMsg(stale).Encode()
	h.handleMessage("peer1", msg)

	select {
	case r := <-resp:
		t.Fatalf("expected no reply for a stale block, got %+v", r)
	default:
	}
}

func TestHandlerGetPeersRepliesAndResetsTick(t *testing.T) {
	s := testState(t)
	h, peers, _, resp := newTestHandler(s)
	peers.incrementTicks()
	peers.incrementTicks()

	msg, _ := GetPeers().Encode()
	h.handleMessage("peer1", msg)

	select {
	case r := <-resp:
		decoded, err := DecodeMessage(r.Payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.Kind != MsgPeers {
			t.Fatalf("got kind %v, want MsgPeers", decoded.Kind)
		}
	default:
		t.Fatal("expected a Peers reply")
	}

	if stale := peers.incrementTicks(); len(stale) != 0 {
		t.Fatalf("expected tick to have been reset, got stale=%v", stale)
	}
}

func TestHandlerPingRepliesPong(t *testing.T) {
	s := testState(t)
	h, _, _, resp := newTestHandler(s)

	msg, _ := Ping().Encode()
	h.handleMessage("peer1", msg)

	select {
	case r := <-resp:
		decoded, err := DecodeMessage(r.Payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.Kind != MsgPong {
			t.Fatalf("got %v, want MsgPong", decoded.Kind)
		}
	default:
		t.Fatal("expected a Pong reply")
	}
}

func TestHandlerCloseEventRemovesPeer(t *testing.T) {
	s := testState(t)
	h, peers, _, _ := newTestHandler(s)
	events := make(chan ConnectionEvent, 1)
	events <- ConnectionEvent{Addr: "peer1", Kind: Close}
	close(events)

	h.Run(events)

	if peers.Contains("peer1") {
		t.Fatal("expected peer to be removed on Close")
	}
}
