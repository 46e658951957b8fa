package p2p

import "testing"

func TestInsertContainsRemove(t *testing.T) {
	m := NewPeerManager()
	ch := make(chan ConnectionResponse, 1)
	m.Insert("10.0.0.1:8080", ch)

	if !m.Contains("10.0.0.1:8080") {
		t.Fatal("expected peer to be registered")
	}
	m.Remove("10.0.0.1:8080")
	if m.Contains("10.0.0.1:8080") {
		t.Fatal("expected peer to be deregistered")
	}
}

func TestSendDeliversToRegisteredPeer(t *testing.T) {
	m := NewPeerManager()
	ch := make(chan ConnectionResponse, 1)
	m.Insert("10.0.0.1:8080", ch)

	resp := ConnectionResponse{Kind: Message, Payload: []byte("hi")}
	if err := m.Send("10.0.0.1:8080", resp); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-ch:
		if string(got.Payload) != "hi" {
			t.Fatalf("got %q", got.Payload)
		}
	default:
		t.Fatal("expected a queued response")
	}
}

func TestSendUnknownPeerErrors(t *testing.T) {
	m := NewPeerManager()
	if err := m.Send("nope:1", ConnectionResponse{}); err == nil {
		t.Fatal("expected an error for an unknown peer")
	}
}

func TestSendFullQueueErrors(t *testing.T) {
	m := NewPeerManager()
	ch := make(chan ConnectionResponse)
	m.Insert("10.0.0.1:8080", ch)
	if err := m.Send("10.0.0.1:8080", ConnectionResponse{}); err == nil {
		t.Fatal("expected an error when the queue has no capacity and nobody is reading")
	}
}

func TestBroadcastReachesEveryPeer(t *testing.T) {
	m := NewPeerManager()
	a := make(chan ConnectionResponse, 1)
	b := make(chan ConnectionResponse, 1)
	m.Insert("a:1", a)
	m.Insert("b:1", b)

	failed := m.Broadcast(ConnectionResponse{Kind: Message, Payload: []byte("x")})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if len(a) != 1 || len(b) != 1 {
		t.Fatal("expected both peers to receive the broadcast")
	}
}

func TestGetPeersSnapshotsAddresses(t *testing.T) {
	m := NewPeerManager()
	m.Insert("a:1", make(chan ConnectionResponse, 1))
	m.Insert("b:1", make(chan ConnectionResponse, 1))

	got := m.GetPeers()
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 addresses", got)
	}
}

func TestIncrementTicksReportsStalePeers(t *testing.T) {
	m := NewPeerManager()
	m.Insert("a:1", make(chan ConnectionResponse, 1))

	for i := 0; i < staleTicks-1; i++ {
		if stale := m.incrementTicks(); len(stale) != 0 {
			t.Fatalf("tick %d: unexpected stale peers %v", i, stale)
		}
	}
	stale := m.incrementTicks()
	if len(stale) != 1 || stale[0] != "a:1" {
		t.Fatalf("got %v, want [a:1]", stale)
	}

	m.ResetTick("a:1")
	if stale := m.incrementTicks(); len(stale) != 0 {
		t.Fatalf("unexpected stale peers right after reset: %v", stale)
	}
}
