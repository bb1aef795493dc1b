package kex

import (
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/go-rbtree"
)

// BrokerMetadata is the decoded identity of a broker as reported by a
// metadata response (§3 "a list of broker identities").
type BrokerMetadata struct {
	NodeID int32
	Host   string
	Port   int32
}

func (b BrokerMetadata) Addr() BrokerAddr { return BrokerAddr{Host: b.Host, Port: b.Port} }

// PartitionMetadata is one partition entry within a TopicMetadata (§3).
type PartitionMetadata struct {
	Partition int32
	Leader    int32
	ErrorCode int16
}

// TopicMetadata is one topic entry within a MetadataSnapshot (§3).
type TopicMetadata struct {
	Topic      string
	ErrorCode  int16
	Partitions []PartitionMetadata
}

// partitionsOrdered returns the topic's partitions walked in ascending
// partition-id order via an rbtree rather than a sort-on-read, grounded on
// the teacher's otherwise-unwired github.com/twmb/go-rbtree dependency
// (SPEC_FULL.md §3 expansion).
func (t TopicMetadata) partitionsOrdered() []PartitionMetadata {
	var tree rbtree.Tree
	for i := range t.Partitions {
		p := t.Partitions[i]
		tree.Insert(partitionNode(p))
	}
	out := make([]PartitionMetadata, 0, len(t.Partitions))
	for n := tree.Min(); n != nil; n = n.Right() {
		out = append(out, n.Item.(partitionItem).p)
	}
	return out
}

type partitionItem struct{ p PartitionMetadata }

func (a partitionItem) Less(b rbtree.Item) bool {
	return a.p.Partition < b.(partitionItem).p.Partition
}

func partitionNode(p PartitionMetadata) *rbtree.Node {
	return &rbtree.Node{Item: partitionItem{p}}
}

// MetadataSnapshot is the §3 immutable cluster-metadata value.
type MetadataSnapshot struct {
	Brokers []BrokerMetadata
	Topics  []TopicMetadata
}

func (m MetadataSnapshot) findTopic(topic string) (TopicMetadata, bool) {
	for _, t := range m.Topics {
		if t.Topic == topic {
			return t, true
		}
	}
	return TopicMetadata{}, false
}

func (t TopicMetadata) findPartition(partition int32) (PartitionMetadata, bool) {
	for _, p := range t.Partitions {
		if p.Partition == partition {
			return p, true
		}
	}
	return PartitionMetadata{}, false
}

// MetadataCache (§4.B) holds the latest snapshot and resolves leaders
// through the broker registry.
type MetadataCache struct {
	snapshot MetadataSnapshot
}

// leaderFor resolves (topic, partition) to a live Broker, returning false
// if the topic/partition is absent, the partition has no leader
// (leader_not_available), or the leader's node id isn't in the registry.
func (c MetadataCache) leaderFor(topic string, partition int32, reg *BrokerRegistry) (*Broker, bool) {
	t, ok := c.snapshot.findTopic(topic)
	if !ok {
		return nil, false
	}
	p, ok := t.findPartition(partition)
	if !ok {
		return nil, false
	}
	if err := errForCode(p.ErrorCode); err != nil && err == kerr.LeaderNotAvailable {
		return nil, false
	}
	return reg.findByNode(p.Leader, c.snapshot)
}

// metadataRefresher is component §4.D: retrieve() + update_metadata().
type metadataRefresher struct {
	proto   Protocol
	network NetworkClient
	sasl    saslConfig
	syncTO  time.Duration
	logger  Logger
}

// retrieve implements §4.D steps 1–5. It returns the snapshot (empty, with
// the last error code logged, once retries are exhausted) and the
// correlation id after all attempts.
func (r *metadataRefresher) retrieve(reg *BrokerRegistry, topic string, corrID int32) (int32, MetadataSnapshot) {
	var snap MetadataSnapshot
	var lastErrCode int16
	done := false

	retryLoop(metadataRetryCount, metadataRetryDelay, func(try int) retryResult {
		reqCorrID := corrID
		corrID++

		payload := r.proto.BuildMetadataRequest(reqCorrID, topic)
		raw, err := firstBrokerResponse(reg, r.network, payload, r.syncTO)
		if err != nil {
			r.logger.Log(LogLevelError, "unable to fetch metadata from any broker", "err", err)
			panic(ErrNoMetadataAvailable) // fatal: §4.D step 3, recovered by the actor loop
		}

		parsed, perr := r.proto.ParseMetadataResponse(raw)
		if perr != nil {
			r.logger.Log(LogLevelWarn, "malformed metadata response", "err", perr)
			return retryAgain
		}

		anyUnavailable := false
		for _, t := range parsed.Topics {
			if err := errForCode(t.ErrorCode); err != nil {
				lastErrCode = t.ErrorCode
			}
			for _, p := range t.Partitions {
				if errForCode(p.ErrorCode) == kerr.LeaderNotAvailable {
					anyUnavailable = true
					lastErrCode = p.ErrorCode
				}
			}
		}
		snap = *parsed
		if anyUnavailable {
			return retryAgain
		}
		done = true
		return retryDone
	})

	if !done {
		r.logger.Log(LogLevelError, "metadata retry exhausted", "code", lastErrCode)
		snap = MetadataSnapshot{}
	}
	return corrID, snap
}

// updateMetadata implements §4.D's update_metadata(state): retrieve, then
// reconcile the registry against the returned broker list.
func (r *metadataRefresher) updateMetadata(state *workerState, topic string) {
	corrID, snap := r.retrieve(&state.registry, topic, state.corrID)
	state.corrID = corrID
	state.metadata.snapshot = snap
	state.registry.reconcile(snap.Brokers, r.network, r.proto, r.sasl, r.logger)
}
