package kex

import (
	"time"

	"github.com/twmb/franz-go/pkg/kmsg"
)

// handlers bundles the collaborators every operation handler needs: the
// router (§4.F), the wire Protocol (§6.4), and the NetworkClient (§6.5).
// This is component §4.G's shared skeleton made concrete.
type handlers struct {
	router  *router
	proto   Protocol
	network NetworkClient
	logger  Logger
}

// ProduceRequest is the produce operation's request payload (§6.1).
type ProduceRequest struct {
	Topic        string
	Partition    int32
	RequiredAcks int16
	Timeout      time.Duration
	Messages     []Message
	Codec        CompressionCodec
}

// asyncProduceDispatched is the sentinel reply for required_acks == 0
// (§4.G produce: "fire-and-forget... return a sentinel indicating
// dispatch").
type asyncProduceDispatched struct{}

// FetchRequest is the fetch operation's request payload (§6.1, §4.G).
type FetchRequest struct {
	Topic      string
	Partition  int32
	Offset     int64
	WaitTime   time.Duration
	MinBytes   int32
	MaxBytes   int32
	AutoCommit bool
}

// OffsetRequest is the time-indexed offset-lookup payload (§6.1 "offset").
type OffsetRequest struct {
	Topic     string
	Partition int32
	Time      int64
}

// OffsetFetchRequest is §6.1's offset_fetch payload.
type OffsetFetchRequest struct {
	Topic         string
	Partition     int32
	ConsumerGroup string // substituted with the worker's group if empty
}

// OffsetCommitRequest is §6.1's offset_commit payload.
type OffsetCommitRequest struct {
	Topic         string
	Partition     int32
	Offset        int64
	ConsumerGroup string // substituted with the worker's group if empty
}

// JoinGroupRequest is §6.1's join_group payload.
type JoinGroupRequest struct {
	Group          string
	MemberID       string
	Topics         []string
	SessionTimeout time.Duration
}

// SyncGroupRequest is §6.1's sync_group payload; Assignments is passed
// through untouched (§4.G: "no partition assignment algorithm").
type SyncGroupRequest struct {
	Group        string
	GenerationID int32
	MemberID     string
	Assignments  map[string][]byte
}

// HeartbeatRequest is §6.1's heartbeat payload.
type HeartbeatRequest struct {
	Group        string
	GenerationID int32
	MemberID     string
}

// nextCorrID centralizes the "assemble with current correlation id"
// half of the §4.G skeleton: take the id, advance state's counter once.
func nextCorrID(state *workerState) int32 {
	id := state.corrID
	state.corrID++
	return id
}

// metadataOp implements the `metadata(topic)` operation: force a targeted
// refresh and return the fresh snapshot (§4.G).
func (h *handlers) metadataOp(state *workerState, topic string) MetadataSnapshot {
	h.router.metaRefresher.updateMetadata(state, topic)
	return state.metadata.snapshot
}

// consumerGroupMetadataOp returns the current coordinator snapshot,
// refreshing first (§4.G).
func (h *handlers) consumerGroupMetadataOp(state *workerState) CoordinatorSnapshot {
	h.router.coordRefresher.updateCoordinator(state)
	return state.coordinator.snapshot
}

// joinGroupOp is a thin pass-through coordinator-scoped operation (§4.G).
func (h *handlers) joinGroupOp(state *workerState, req JoinGroupRequest) (*kmsg.JoinGroupResponse, error) {
	b, ok := h.router.routeCoordinator(state, false)
	if !ok {
		h.logger.Log(LogLevelWarn, "join_group: no coordinator available", "group", req.Group)
		return nil, ErrLeaderNotAvailable
	}
	corrID := nextCorrID(state)
	payload := h.proto.BuildJoinGroupRequest(corrID, req)
	raw, err := h.network.SendSyncRequest(b.sock, payload, state.syncTimeout)
	if err != nil || raw == nil {
		return nil, ErrConnDead
	}
	return h.proto.ParseJoinGroupResponse(raw)
}

// syncGroupOp preserves member_id/generation_id/assignments untouched
// (§4.G).
func (h *handlers) syncGroupOp(state *workerState, req SyncGroupRequest) (*kmsg.SyncGroupResponse, error) {
	b, ok := h.router.routeCoordinator(state, false)
	if !ok {
		h.logger.Log(LogLevelWarn, "sync_group: no coordinator available", "group", req.Group)
		return nil, ErrLeaderNotAvailable
	}
	corrID := nextCorrID(state)
	payload := h.proto.BuildSyncGroupRequest(corrID, req)
	raw, err := h.network.SendSyncRequest(b.sock, payload, state.syncTimeout)
	if err != nil || raw == nil {
		return nil, ErrConnDead
	}
	return h.proto.ParseSyncGroupResponse(raw)
}

// heartbeatOp is a thin pass-through coordinator-scoped operation (§4.G).
func (h *handlers) heartbeatOp(state *workerState, req HeartbeatRequest) (*kmsg.HeartbeatResponse, error) {
	b, ok := h.router.routeCoordinator(state, false)
	if !ok {
		h.logger.Log(LogLevelWarn, "heartbeat: no coordinator available", "group", req.Group)
		return nil, ErrLeaderNotAvailable
	}
	corrID := nextCorrID(state)
	payload := h.proto.BuildHeartbeatRequest(corrID, req)
	raw, err := h.network.SendSyncRequest(b.sock, payload, state.syncTimeout)
	if err != nil || raw == nil {
		return nil, ErrConnDead
	}
	return h.proto.ParseHeartbeatResponse(raw)
}
