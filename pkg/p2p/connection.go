package p2p

import (
	"errors"
	"io"
	"net"

	"github.com/nodechain/nodechain/pkg/logger"
)

// EventKind tags a ConnectionEvent or ConnectionResponse payload.
type EventKind int

const (
	Message EventKind = iota
	Close
)

// ConnectionEvent is emitted by a peer's reader task: either a decoded
// message frame, or notice that the connection closed.
type ConnectionEvent struct {
	Addr    string
	Kind    EventKind
	Payload []byte
}

// ConnectionResponse is consumed by a peer's writer task: either a
// message frame to send, or an instruction to close the socket.
type ConnectionResponse struct {
	Kind    EventKind
	Payload []byte
}

// Receiver reads length-prefixed frames from conn and emits a
// ConnectionEvent per frame onto events, tagged with addr. It returns
// (emitting a Close event first) on read error or clean EOF — the
// protocol handler is responsible for deregistering the peer.
func Receiver(conn net.Conn, addr string, events chan<- ConnectionEvent, log *logger.Logger) {
	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("read error from %s: %v", addr, err)
			}
			events <- ConnectionEvent{Addr: addr, Kind: Close}
			return
		}
		events <- ConnectionEvent{Addr: addr, Kind: Message, Payload: payload}
	}
}

// Sender drains responses and writes each as a length-prefixed frame to
// conn, shutting the connection down on a Close response or channel
// close.
func Sender(conn net.Conn, responses <-chan ConnectionResponse, addr string, log *logger.Logger) {
	for resp := range responses {
		if resp.Kind == Close {
			conn.Close()
			return
		}
		if err := WriteFrame(conn, resp.Payload); err != nil {
			log.Warn("write error to %s: %v", addr, err)
			conn.Close()
			return
		}
	}
	conn.Close()
}
