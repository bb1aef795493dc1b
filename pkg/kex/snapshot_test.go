package kex

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

// TestMetadataSnapshot_Equality checks that two snapshots built
// separately from the same broker/topic data compare equal, using go-cmp
// for the diff and
// go-spew to dump the full value on failure (both otherwise-unwired
// teacher dependencies, homed here per the test-tooling component).
func TestMetadataSnapshot_Equality(t *testing.T) {
	a := MetadataSnapshot{
		Brokers: []BrokerMetadata{{NodeID: 1, Host: "b1", Port: 9092}, {NodeID: 2, Host: "b2", Port: 9092}},
		Topics: []TopicMetadata{{
			Topic:      "orders",
			Partitions: []PartitionMetadata{{Partition: 0, Leader: 1}, {Partition: 1, Leader: 2}},
		}},
	}
	b := MetadataSnapshot{
		Brokers: []BrokerMetadata{{NodeID: 1, Host: "b1", Port: 9092}, {NodeID: 2, Host: "b2", Port: 9092}},
		Topics: []TopicMetadata{{
			Topic:      "orders",
			Partitions: []PartitionMetadata{{Partition: 0, Leader: 1}, {Partition: 1, Leader: 2}},
		}},
	}

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("snapshots should be equal, diff (-want +got):\n%s\nfull dump:\n%s", diff, spew.Sdump(a, b))
	}
}

func TestMetadataSnapshot_OrderedPartitionsSurviveUnorderedInput(t *testing.T) {
	want := []PartitionMetadata{{Partition: 0, Leader: 1}, {Partition: 1, Leader: 2}, {Partition: 2, Leader: 1}}
	shuffled := TopicMetadata{Topic: "orders", Partitions: []PartitionMetadata{want[2], want[0], want[1]}}

	got := shuffled.partitionsOrdered()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ordering mismatch (-want +got):\n%s\nfull dump:\n%s", diff, spew.Sdump(got))
	}
}
