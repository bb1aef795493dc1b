package kex

import "testing"

func seedCfg(nc NetworkClient) cfg {
	c := defaultCfg()
	c.dialer = nc
	c.logger = NopLogger{}
	return c
}

// scenario 1: seed connect — every seed broker gets a live socket.
func TestBrokerRegistry_SeedConnect(t *testing.T) {
	nc := newFakeNetworkClient()
	seeds := []BrokerAddr{{Host: "a", Port: 9092}, {Host: "b", Port: 9092}}
	reg := newBrokerRegistry(seeds, nc, newKmsgProtocol(), seedCfg(nc))

	if len(reg.brokers) != 2 {
		t.Fatalf("expected 2 brokers, got %d", len(reg.brokers))
	}
	for _, b := range reg.brokers {
		if !b.connected(nc) {
			t.Errorf("broker %v not connected after seeding", b.Addr)
		}
	}
}

func TestBrokerRegistry_SeedConnect_PartialDialFailure(t *testing.T) {
	nc := newFakeNetworkClient()
	nc.failDial[BrokerAddr{Host: "bad", Port: 9092}.String()] = true
	seeds := []BrokerAddr{{Host: "bad", Port: 9092}, {Host: "good", Port: 9092}}
	reg := newBrokerRegistry(seeds, nc, newKmsgProtocol(), seedCfg(nc))

	if len(reg.brokers) != 2 {
		t.Fatalf("expected both placeholders kept, got %d", len(reg.brokers))
	}
	bad, _ := reg.find(BrokerAddr{Host: "bad", Port: 9092})
	if bad.connected(nc) {
		t.Errorf("bad broker should not be connected")
	}
	good, _ := reg.find(BrokerAddr{Host: "good", Port: 9092})
	if !good.connected(nc) {
		t.Errorf("good broker should be connected")
	}
}

// scenario 3: reconciliation safety — if the new broker list would drop
// every currently-live broker, the reconciliation is aborted wholesale.
func TestBrokerRegistry_Reconcile_AbortsWhenKeepSetEmpty(t *testing.T) {
	nc := newFakeNetworkClient()
	seeds := []BrokerAddr{{Host: "a", Port: 9092}}
	reg := newBrokerRegistry(seeds, nc, newKmsgProtocol(), seedCfg(nc))

	// A metadata response naming only brokers unrelated to what's held.
	reg.reconcile([]BrokerMetadata{{NodeID: 1, Host: "unrelated", Port: 9999}}, nc, newKmsgProtocol(), saslConfig{}, NopLogger{})

	if len(reg.brokers) != 1 {
		t.Fatalf("expected the original broker retained after aborted reconcile, got %d", len(reg.brokers))
	}
	if reg.brokers[0].Addr.Host != "a" {
		t.Errorf("expected original broker 'a' kept, got %v", reg.brokers[0].Addr)
	}
	if len(nc.closed) != 0 {
		t.Errorf("aborted reconcile must not close any broker, closed=%v", nc.closed)
	}
}

func TestBrokerRegistry_Reconcile_DropsAndOpensNew(t *testing.T) {
	nc := newFakeNetworkClient()
	seeds := []BrokerAddr{{Host: "a", Port: 9092}, {Host: "b", Port: 9092}}
	reg := newBrokerRegistry(seeds, nc, newKmsgProtocol(), seedCfg(nc))

	// Keep "a", drop "b", add "c".
	reg.reconcile([]BrokerMetadata{
		{NodeID: 1, Host: "a", Port: 9092},
		{NodeID: 2, Host: "c", Port: 9092},
	}, nc, newKmsgProtocol(), saslConfig{}, NopLogger{})

	if len(reg.brokers) != 2 {
		t.Fatalf("expected 2 brokers after reconcile, got %d", len(reg.brokers))
	}
	if _, ok := reg.find(BrokerAddr{Host: "b", Port: 9092}); ok {
		t.Errorf("broker 'b' should have been dropped")
	}
	if _, ok := reg.find(BrokerAddr{Host: "c", Port: 9092}); !ok {
		t.Errorf("broker 'c' should have been opened")
	}
	found := false
	for _, addr := range nc.closed {
		if addr == (BrokerAddr{Host: "b", Port: 9092}).String() {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'b' socket to be closed, closed=%v", nc.closed)
	}
}

func TestFirstBrokerResponse_SkipsDisconnected(t *testing.T) {
	nc := newFakeNetworkClient()
	seeds := []BrokerAddr{{Host: "dead", Port: 9092}, {Host: "alive", Port: 9092}}
	reg := newBrokerRegistry(seeds, nc, newKmsgProtocol(), seedCfg(nc))

	deadBroker, _ := reg.find(BrokerAddr{Host: "dead", Port: 9092})
	deadBroker.close(nc)

	nc.respond = func(addr string, payload []byte) ([]byte, error) {
		return []byte("reply-from-" + addr), nil
	}

	raw, err := firstBrokerResponse(reg, nc, []byte("req"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "reply-from-"+(BrokerAddr{Host: "alive", Port: 9092}).String() {
		t.Errorf("expected reply from alive broker, got %q", raw)
	}
}

func TestFirstBrokerResponse_AllDeadReturnsErrNoMetadataAvailable(t *testing.T) {
	nc := newFakeNetworkClient()
	seeds := []BrokerAddr{{Host: "a", Port: 9092}}
	reg := newBrokerRegistry(seeds, nc, newKmsgProtocol(), seedCfg(nc))
	reg.brokers[0].close(nc)

	_, err := firstBrokerResponse(reg, nc, []byte("req"), 0)
	if err != ErrNoMetadataAvailable {
		t.Fatalf("expected ErrNoMetadataAvailable, got %v", err)
	}
}
