package kex

import (
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kmsg"
)

func newTestHandlers(nc *fakeNetworkClient) (*handlers, *router) {
	proto := newKmsgProtocol()
	rt := &router{
		metaRefresher:  &metadataRefresher{proto: proto, network: nc, syncTO: time.Second, logger: NopLogger{}},
		coordRefresher: &coordinatorRefresher{proto: proto, network: nc, syncTO: time.Second, logger: NopLogger{}},
	}
	return &handlers{router: rt, proto: proto, network: nc, logger: NopLogger{}}, rt
}

func stateWithCachedLeader(reg BrokerRegistry, addr BrokerAddr) *workerState {
	s := &workerState{registry: reg, group: NoGroup, syncTimeout: time.Second}
	s.metadata.snapshot = MetadataSnapshot{
		Brokers: []BrokerMetadata{{NodeID: 1, Host: addr.Host, Port: addr.Port}},
		Topics:  []TopicMetadata{{Topic: "orders", Partitions: []PartitionMetadata{{Partition: 0, Leader: 1}}}},
	}
	return s
}

// scenario 4: async produce (required_acks == 0) bumps the correlation id
// by exactly 2 and returns the sentinel without a round trip reply.
func TestProduceOp_AsyncAcks_CorrelationIDNetIncrementOfTwo(t *testing.T) {
	nc := newFakeNetworkClient()
	addr := BrokerAddr{Host: "b1", Port: 9092}
	reg := newBrokerRegistry([]BrokerAddr{addr}, nc, newKmsgProtocol(), seedCfg(nc))
	h, _ := newTestHandlers(nc)
	state := stateWithCachedLeader(*reg, addr)
	state.corrID = 10

	v, err := h.produceOp(state, ProduceRequest{
		Topic:        "orders",
		Partition:    0,
		RequiredAcks: 0,
		Messages:     []Message{{Key: []byte("k"), Value: []byte("v")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := v.(asyncProduceDispatched); !ok {
		t.Fatalf("expected asyncProduceDispatched sentinel, got %T", v)
	}
	if state.corrID != 12 {
		t.Errorf("expected correlation id to advance by 2 (10 -> 12), got %d", state.corrID)
	}
	if nc.asyncSent != 1 {
		t.Errorf("expected exactly 1 async send, got %d", nc.asyncSent)
	}
}

func TestProduceOp_SyncAcks_CorrelationIDNetIncrementOfTwo(t *testing.T) {
	nc := newFakeNetworkClient()
	addr := BrokerAddr{Host: "b1", Port: 9092}
	reg := newBrokerRegistry([]BrokerAddr{addr}, nc, newKmsgProtocol(), seedCfg(nc))
	nc.respond = func(_ string, _ []byte) ([]byte, error) {
		return encodeProduceResponse(kmsg.NewPtrProduceResponse()), nil
	}
	h, _ := newTestHandlers(nc)
	state := stateWithCachedLeader(*reg, addr)
	state.corrID = 0

	_, err := h.produceOp(state, ProduceRequest{
		Topic:        "orders",
		Partition:    0,
		RequiredAcks: 1,
		Messages:     []Message{{Key: []byte("k"), Value: []byte("v")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.corrID != 2 {
		t.Errorf("expected correlation id to advance by 2 (0 -> 2), got %d", state.corrID)
	}
}

// scenario 5: fetch with auto_commit issues a follow-up offset_commit using
// the fetch reply's last offset.
func TestFetchOp_AutoCommit(t *testing.T) {
	nc := newFakeNetworkClient()
	addr := BrokerAddr{Host: "b1", Port: 9092}
	reg := newBrokerRegistry([]BrokerAddr{addr}, nc, newKmsgProtocol(), seedCfg(nc))

	messages := []Message{{Key: []byte("k1"), Value: []byte("v1")}, {Key: []byte("k2"), Value: []byte("v2")}}
	batch := encodeRecordBatch(messages, CompressionNone)

	calls := 0
	nc.respond = func(_ string, _ []byte) ([]byte, error) {
		calls++
		switch calls {
		case 1: // fetch
			resp := kmsg.NewPtrFetchResponse()
			topic := kmsg.NewFetchResponseTopic()
			topic.Topic = "orders"
			part := kmsg.NewFetchResponseTopicPartition()
			part.Partition = 0
			part.RecordBatches = batch
			topic.Partitions = append(topic.Partitions, part)
			resp.Topics = append(resp.Topics, topic)
			return encodeFetchResponse(resp), nil
		case 2: // coordinator lookup for the auto-commit
			cresp := kmsg.NewPtrFindCoordinatorResponse()
			cresp.NodeID = 1
			cresp.Host = addr.Host
			cresp.Port = addr.Port
			return encodeCoordinatorResponse(cresp), nil
		case 3: // offset_commit itself
			return encodeOffsetCommitResponse(kmsg.NewPtrOffsetCommitResponse()), nil
		default:
			t.Fatalf("unexpected extra network call #%d", calls)
			return nil, nil
		}
	}

	h, _ := newTestHandlers(nc)
	state := stateWithCachedLeader(*reg, addr)
	state.group = "g1"

	reply, err := h.fetchOp(state, FetchRequest{
		Topic:      "orders",
		Partition:  0,
		Offset:     100,
		AutoCommit: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reply.Messages) != 2 {
		t.Fatalf("expected 2 decoded messages, got %d", len(reply.Messages))
	}
	if reply.LastOffset == nil || *reply.LastOffset != 101 {
		t.Fatalf("expected last offset 101, got %v", reply.LastOffset)
	}
	if calls != 3 {
		t.Errorf("expected fetch + coordinator-lookup + offset-commit (3 calls), got %d", calls)
	}
}

func TestFetchOp_AutoCommitWithoutGroupFails(t *testing.T) {
	nc := newFakeNetworkClient()
	addr := BrokerAddr{Host: "b1", Port: 9092}
	reg := newBrokerRegistry([]BrokerAddr{addr}, nc, newKmsgProtocol(), seedCfg(nc))
	h, _ := newTestHandlers(nc)
	state := stateWithCachedLeader(*reg, addr)

	_, err := h.fetchOp(state, FetchRequest{Topic: "orders", Partition: 0, AutoCommit: true})
	if err != ErrNoConsumerGroup {
		t.Fatalf("expected ErrNoConsumerGroup, got %v", err)
	}
}
