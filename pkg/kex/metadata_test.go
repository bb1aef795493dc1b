package kex

import "testing"

// leaderNotAvailableCode is the wire error code for LEADER_NOT_AVAILABLE.
const leaderNotAvailableCode = 5

func TestTopicMetadata_PartitionsOrdered(t *testing.T) {
	tm := TopicMetadata{
		Topic: "orders",
		Partitions: []PartitionMetadata{
			{Partition: 3}, {Partition: 0}, {Partition: 2}, {Partition: 1},
		},
	}
	ordered := tm.partitionsOrdered()
	if len(ordered) != 4 {
		t.Fatalf("expected 4 partitions, got %d", len(ordered))
	}
	for i, p := range ordered {
		if p.Partition != int32(i) {
			t.Errorf("position %d: expected partition %d, got %d", i, i, p.Partition)
		}
	}
}

func TestMetadataCache_LeaderFor(t *testing.T) {
	reg := &BrokerRegistry{brokers: []*Broker{
		{NodeID: 1, Addr: BrokerAddr{Host: "b1", Port: 9092}, sock: &fakeSocket{addr: "b1:9092"}},
	}}
	cache := MetadataCache{snapshot: MetadataSnapshot{
		Brokers: []BrokerMetadata{{NodeID: 1, Host: "b1", Port: 9092}},
		Topics: []TopicMetadata{{
			Topic:      "orders",
			Partitions: []PartitionMetadata{{Partition: 0, Leader: 1}},
		}},
	}}

	b, ok := cache.leaderFor("orders", 0, reg)
	if !ok {
		t.Fatal("expected leader to resolve")
	}
	if b.NodeID != 1 {
		t.Errorf("expected node 1, got %d", b.NodeID)
	}

	if _, ok := cache.leaderFor("missing-topic", 0, reg); ok {
		t.Error("expected miss for unknown topic")
	}
	if _, ok := cache.leaderFor("orders", 99, reg); ok {
		t.Error("expected miss for unknown partition")
	}
}

func TestMetadataCache_LeaderFor_LeaderNotAvailable(t *testing.T) {
	reg := &BrokerRegistry{}
	cache := MetadataCache{snapshot: MetadataSnapshot{
		Topics: []TopicMetadata{{
			Topic: "orders",
			Partitions: []PartitionMetadata{
				{Partition: 0, Leader: -1, ErrorCode: leaderNotAvailableCode},
			},
		}},
	}}
	if _, ok := cache.leaderFor("orders", 0, reg); ok {
		t.Error("expected miss when partition reports leader_not_available")
	}
}
