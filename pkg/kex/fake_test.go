package kex

import (
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kmsg"
)

// fakeSocket is a Socket that carries no real connection; fakeNetworkClient
// keys its canned behavior off the socket's address.
type fakeSocket struct {
	addr string
	dead bool
}

func (s *fakeSocket) Addr() string { return s.addr }

// fakeNetworkClient is the in-memory NetworkClient test seam, installed by
// setting cfg.dialer. Every dial succeeds unless the address is listed in
// failDial; every synchronous exchange is answered by respond, which tests
// configure per scenario.
type fakeNetworkClient struct {
	mu sync.Mutex

	failDial map[string]bool
	respond  func(addr string, payload []byte) ([]byte, error)

	asyncSent int
	syncSent  int
	closed    []string
}

func newFakeNetworkClient() *fakeNetworkClient {
	return &fakeNetworkClient{failDial: map[string]bool{}}
}

func (f *fakeNetworkClient) CreateSocket(host string, port int32) (Socket, error) {
	addr := BrokerAddr{Host: host, Port: port}.String()
	f.mu.Lock()
	fail := f.failDial[addr]
	f.mu.Unlock()
	if fail {
		return nil, ErrNoDial
	}
	return &fakeSocket{addr: addr}, nil
}

func (f *fakeNetworkClient) CloseSocket(s Socket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sock := s.(*fakeSocket)
	f.closed = append(f.closed, sock.addr)
	sock.dead = true
}

func (f *fakeNetworkClient) SendSyncRequest(s Socket, payload []byte, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.syncSent++
	respond := f.respond
	f.mu.Unlock()

	sock := s.(*fakeSocket)
	if sock.dead {
		return nil, ErrConnDead
	}
	if respond == nil {
		return nil, ErrConnDead
	}
	return respond(sock.addr, payload)
}

func (f *fakeNetworkClient) SendAsyncRequest(s Socket, payload []byte) error {
	f.mu.Lock()
	f.asyncSent++
	f.mu.Unlock()
	if s.(*fakeSocket).dead {
		return ErrConnDead
	}
	return nil
}

func (f *fakeNetworkClient) Connected(s Socket) bool {
	return !s.(*fakeSocket).dead
}

// encodeMetadataResponse round-trips a canned response through kmsg's own
// wire encoding, so tests exercise the real kmsgProtocol decode path
// instead of a parallel fake one.
func encodeMetadataResponse(resp *kmsg.MetadataResponse) []byte {
	return resp.AppendTo(nil)
}

func encodeCoordinatorResponse(resp *kmsg.FindCoordinatorResponse) []byte {
	return resp.AppendTo(nil)
}

func encodeProduceResponse(resp *kmsg.ProduceResponse) []byte {
	return resp.AppendTo(nil)
}

func encodeFetchResponse(resp *kmsg.FetchResponse) []byte {
	return resp.AppendTo(nil)
}

func encodeOffsetCommitResponse(resp *kmsg.OffsetCommitResponse) []byte {
	return resp.AppendTo(nil)
}
