package kex

// router is component §4.F: resolves (request -> target broker), triggering
// a metadata or coordinator refresh on a cache miss.
type router struct {
	metaRefresher  *metadataRefresher
	coordRefresher *coordinatorRefresher
}

// route resolves a partition-scoped request (produce/fetch/offset) to its
// leader broker. On a cache miss it refreshes metadata once and re-checks;
// if still unresolved, it returns false and the caller reports
// leader_not_available/topic_not_found.
func (rt *router) route(state *workerState, topic string, partition int32) (*Broker, bool) {
	if b, ok := state.metadata.leaderFor(topic, partition, &state.registry); ok {
		return b, true
	}
	rt.metaRefresher.updateMetadata(state, "")
	return state.metadata.leaderFor(topic, partition, &state.registry)
}

// routeProduce is §4.F's produce-specific twist: a topic-scoped refresh
// first, then a full update_metadata, before giving up.
func (rt *router) routeProduce(state *workerState, topic string, partition int32) (*Broker, bool) {
	if b, ok := state.metadata.leaderFor(topic, partition, &state.registry); ok {
		return b, true
	}
	rt.metaRefresher.updateMetadata(state, topic)
	if b, ok := state.metadata.leaderFor(topic, partition, &state.registry); ok {
		return b, true
	}
	rt.metaRefresher.updateMetadata(state, "")
	return state.metadata.leaderFor(topic, partition, &state.registry)
}

// routeCoordinator resolves a coordinator-scoped request (join/sync/
// heartbeat/offset-fetch/offset-commit). useFirstAsDefault, when set, falls
// back to the registry head if no coordinator can be resolved at all —
// used only by offset-commit (§4.F, flagged suspicious in §9).
func (rt *router) routeCoordinator(state *workerState, useFirstAsDefault bool) (*Broker, bool) {
	if b, ok := state.coordinator.coordinatorBroker(&state.registry); ok {
		return b, true
	}
	rt.coordRefresher.updateCoordinator(state)
	if b, ok := state.coordinator.coordinatorBroker(&state.registry); ok {
		return b, true
	}
	if useFirstAsDefault {
		return state.registry.first()
	}
	return nil, false
}
