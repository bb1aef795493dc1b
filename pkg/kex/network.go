package kex

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/twmb/franz-go/pkg/kbin"
)

// NetworkClient is the §6.5 collaborator: raw socket lifecycle and
// strictly-synchronous (or fire-and-forget) request/reply exchange. No
// implementation in this package multiplexes more than one in-flight
// request over a single socket — the spec forbids it (§1 Non-goals).
type NetworkClient interface {
	CreateSocket(host string, port int32) (Socket, error)
	CloseSocket(s Socket)
	SendSyncRequest(s Socket, payload []byte, timeout time.Duration) ([]byte, error)
	SendAsyncRequest(s Socket, payload []byte) error
	Connected(s Socket) bool
}

// Socket is an opaque live connection handle. The real implementation wraps
// a net.Conn; tests substitute an in-memory fake.
type Socket interface {
	// Addr returns the "host:port" the socket was opened against, for
	// logging and diagnostics only.
	Addr() string
}

// tcpNetworkClient is the production NetworkClient: plain TCP with Kafka's
// 4-byte big-endian length-prefixed framing, modeled on the teacher's
// brokerCxn.writeConn/readConn but collapsed to one request in flight per
// socket at a time.
type tcpNetworkClient struct {
	dialTimeout time.Duration
}

func newTCPNetworkClient() *tcpNetworkClient {
	return &tcpNetworkClient{dialTimeout: 5 * time.Second}
}

type tcpSocket struct {
	addr string
	conn net.Conn
	dead bool
}

func (s *tcpSocket) Addr() string { return s.addr }

func (nc *tcpNetworkClient) CreateSocket(host string, port int32) (Socket, error) {
	addr := BrokerAddr{Host: host, Port: port}.String()
	conn, err := net.DialTimeout("tcp", addr, nc.dialTimeout)
	if err != nil {
		return nil, ErrNoDial
	}
	return &tcpSocket{addr: addr, conn: conn}, nil
}

func (nc *tcpNetworkClient) CloseSocket(s Socket) {
	ts, ok := s.(*tcpSocket)
	if !ok || ts == nil {
		return
	}
	ts.dead = true
	ts.conn.Close()
}

func (nc *tcpNetworkClient) Connected(s Socket) bool {
	ts, ok := s.(*tcpSocket)
	return ok && ts != nil && !ts.dead
}

// SendSyncRequest writes payload (already a fully-formed request, minus the
// size prefix) and blocks for a size-prefixed reply. Returns nil, nil on
// timeout or a broken connection, per §6.5's contract.
func (nc *tcpNetworkClient) SendSyncRequest(s Socket, payload []byte, timeout time.Duration) ([]byte, error) {
	ts, ok := s.(*tcpSocket)
	if !ok || ts == nil || ts.dead {
		return nil, nil
	}
	if timeout > 0 {
		ts.conn.SetDeadline(time.Now().Add(timeout))
		defer ts.conn.SetDeadline(time.Time{})
	}

	if err := writeFrame(ts.conn, payload); err != nil {
		ts.dead = true
		return nil, nil
	}

	resp, err := readFrame(ts.conn)
	if err != nil {
		ts.dead = true
		return nil, nil
	}
	return resp, nil
}

// SendAsyncRequest writes the payload and does not wait for (or expect) a
// reply, used for produce with required_acks == 0.
func (nc *tcpNetworkClient) SendAsyncRequest(s Socket, payload []byte) error {
	ts, ok := s.(*tcpSocket)
	if !ok || ts == nil || ts.dead {
		return ErrConnDead
	}
	if err := writeFrame(ts.conn, payload); err != nil {
		ts.dead = true
		return ErrConnDead
	}
	return nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(len(payload)))
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := int32(binary.BigEndian.Uint32(sizeBuf[:]))
	if size < 0 {
		return nil, kbin.ErrNotEnoughData
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
