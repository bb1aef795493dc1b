package kex

import (
	"testing"
	"time"
)

func TestActor_CreateStream_RejectsSecondSink(t *testing.T) {
	a := &actor{
		mailbox: make(chan actorMsg, 4),
		closed:  make(chan struct{}),
		state:   &workerState{},
		logger:  NopLogger{},
	}

	if _, err := a.createStream(createStreamArgs{Topic: "orders", PollInterval: 1000}); err != nil {
		t.Fatalf("unexpected error on first create_stream: %v", err)
	}
	if _, err := a.createStream(createStreamArgs{Topic: "orders2", PollInterval: 1000}); err != ErrSinkAlreadyActive {
		t.Fatalf("expected ErrSinkAlreadyActive on second create_stream, got %v", err)
	}
}

// scenario 6: streaming cancel race — a start_streaming event that was
// already in flight when stop_streaming cleared the sink must be dropped
// silently, not resurrect a sink or issue a fetch.
func TestActor_StartStreaming_DiscardedAfterStop(t *testing.T) {
	nc := newFakeNetworkClient()
	addr := BrokerAddr{Host: "b1", Port: 9092}
	reg := newBrokerRegistry([]BrokerAddr{addr}, nc, newKmsgProtocol(), seedCfg(nc))
	h, _ := newTestHandlers(nc)
	state := stateWithCachedLeader(*reg, addr)

	a := &actor{
		mailbox:  make(chan actorMsg, 4),
		closed:   make(chan struct{}),
		state:    state,
		handlers: h,
		logger:   NopLogger{},
	}

	a.state.sink = newStream(nil)
	a.handleStopStreaming()
	if a.state.sink != nil {
		t.Fatal("sink should have been cleared by stop_streaming")
	}

	a.handleStartStreaming(startStreamingMsg{Topic: "orders", Partition: 0, Offset: 0, PollInterval: 1000})

	if nc.syncSent != 0 {
		t.Errorf("a start_streaming event racing behind stop_streaming must not fetch, syncSent=%d", nc.syncSent)
	}
	if a.state.sink != nil {
		t.Error("a discarded start_streaming event must not reinstall a sink")
	}
}

func TestStartActor_Lifecycle(t *testing.T) {
	nc := newFakeNetworkClient()
	addr := BrokerAddr{Host: "b1", Port: 9092}
	nc.respond = func(_ string, _ []byte) ([]byte, error) {
		return metadataReply(addr, 1, "orders", 0, 1), nil
	}

	c := defaultCfg()
	c.seeds = []BrokerAddr{addr}
	c.dialer = nc
	c.logger = NopLogger{}
	c.metadataUpdateInterval = time.Hour
	c.coordinatorInterval = time.Hour

	a, err := startActor(c)
	if err != nil {
		t.Fatalf("unexpected startup error: %v", err)
	}

	v, err := a.submit(actorMsg{kind: opMetadata})
	if err != nil {
		t.Fatalf("unexpected metadata error: %v", err)
	}
	snap := v.(MetadataSnapshot)
	if len(snap.Topics) != 1 || snap.Topics[0].Topic != "orders" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	a.close()
	select {
	case <-a.closed:
	case <-time.After(time.Second):
		t.Fatal("actor did not shut down within 1s of close()")
	}

	if _, err := a.submit(actorMsg{kind: opMetadata}); err != ErrWorkerClosed {
		t.Errorf("expected ErrWorkerClosed after shutdown, got %v", err)
	}
	if len(nc.closed) == 0 {
		t.Error("expected broker sockets to be closed on shutdown")
	}
}

func TestStartActor_FailsOnUnreachableSeeds(t *testing.T) {
	nc := newFakeNetworkClient()
	nc.respond = func(_ string, _ []byte) ([]byte, error) {
		return nil, ErrConnDead
	}

	c := defaultCfg()
	c.seeds = []BrokerAddr{{Host: "b1", Port: 9092}}
	c.dialer = nc
	c.logger = NopLogger{}

	_, err := startActor(c)
	if err != ErrNoMetadataAvailable {
		t.Fatalf("expected ErrNoMetadataAvailable, got %v", err)
	}
}
