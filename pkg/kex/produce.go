package kex

// produceOp implements §4.G's produce operation, including the extra
// two-phase routing twist from §4.F (topic-scoped refresh, then full
// update_metadata) and the open question from §9: correlation id is
// advanced twice per successful dispatch (once for the outgoing request,
// once again once the exchange completes), a net +2 per produce; a failed
// send advances it once, and a routing failure not at all -- preserved
// literally because it matches wire behavior observed against a running
// broker, not because it looks right.
func (h *handlers) produceOp(state *workerState, req ProduceRequest) (interface{}, error) {
	b, ok := h.router.routeProduce(state, req.Topic, req.Partition)
	if !ok {
		h.logger.Log(LogLevelWarn, "produce: no leader available", "topic", req.Topic, "partition", req.Partition)
		return nil, ErrLeaderNotAvailable
	}

	if req.Codec == CompressionNone {
		req.Codec = state.compression
	}
	corrID := nextCorrID(state) // first bump: "once for the build"
	payload := h.proto.BuildProduceRequest(corrID, req)

	if req.RequiredAcks == 0 {
		if err := h.network.SendAsyncRequest(b.sock, payload); err != nil {
			return nil, err
		}
		state.corrID++ // second bump: "once for the post-dispatch bump"
		return asyncProduceDispatched{}, nil
	}

	raw, err := h.network.SendSyncRequest(b.sock, payload, state.syncTimeout)
	if err != nil || raw == nil {
		return nil, ErrConnDead
	}
	resp, perr := h.proto.ParseProduceResponse(raw)
	state.corrID++ // second bump
	if perr != nil {
		return nil, perr
	}
	return resp, nil
}
