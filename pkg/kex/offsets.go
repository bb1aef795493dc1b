package kex

import "github.com/twmb/franz-go/pkg/kmsg"

// offsetOp implements §6.1's "offset" (list offsets): time-indexed,
// partition-scoped routing.
func (h *handlers) offsetOp(state *workerState, req OffsetRequest) (*kmsg.ListOffsetsResponse, error) {
	b, ok := h.router.route(state, req.Topic, req.Partition)
	if !ok {
		h.logger.Log(LogLevelWarn, "offset: topic/partition not found", "topic", req.Topic, "partition", req.Partition)
		return nil, ErrTopicNotFound
	}
	corrID := nextCorrID(state)
	payload := h.proto.BuildOffsetRequest(corrID, req)
	raw, err := h.network.SendSyncRequest(b.sock, payload, state.syncTimeout)
	if err != nil || raw == nil {
		return nil, ErrConnDead
	}
	return h.proto.ParseOffsetResponse(raw)
}

// offsetFetchOp implements §6.1's offset_fetch: coordinator-scoped,
// substituting the worker's consumer group when the caller didn't supply
// one.
func (h *handlers) offsetFetchOp(state *workerState, req OffsetFetchRequest) (*kmsg.OffsetFetchResponse, error) {
	if req.ConsumerGroup == "" {
		req.ConsumerGroup = state.group
	}
	b, ok := h.router.routeCoordinator(state, false)
	if !ok {
		h.logger.Log(LogLevelWarn, "offset_fetch: no coordinator available", "topic", req.Topic, "partition", req.Partition)
		return nil, ErrTopicNotFound
	}
	corrID := nextCorrID(state)
	payload := h.proto.BuildOffsetFetchRequest(corrID, req)
	raw, err := h.network.SendSyncRequest(b.sock, payload, state.syncTimeout)
	if err != nil || raw == nil {
		return nil, ErrConnDead
	}
	return h.proto.ParseOffsetFetchResponse(raw)
}

// offsetCommitOp implements §6.1's offset_commit: coordinator-scoped with
// use_first_as_default = true (§4.F; flagged suspicious in §9 -- retained
// for parity with the original, not "fixed" here). Substitutes the
// worker's consumer group when the caller didn't supply one.
func (h *handlers) offsetCommitOp(state *workerState, req OffsetCommitRequest) (*kmsg.OffsetCommitResponse, error) {
	if req.ConsumerGroup == "" {
		req.ConsumerGroup = state.group
	}
	b, ok := h.router.routeCoordinator(state, true)
	if !ok {
		h.logger.Log(LogLevelWarn, "offset_commit: no broker available even with first-broker fallback", "topic", req.Topic, "partition", req.Partition)
		return nil, ErrLeaderNotAvailable
	}
	corrID := nextCorrID(state)
	payload := h.proto.BuildOffsetCommitRequest(corrID, req)
	raw, err := h.network.SendSyncRequest(b.sock, payload, state.syncTimeout)
	if err != nil || raw == nil {
		return nil, ErrConnDead
	}
	return h.proto.ParseOffsetCommitResponse(raw)
}
