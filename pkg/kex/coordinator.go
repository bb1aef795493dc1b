package kex

import (
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
)

// CoordinatorSnapshot is the §3 consumer-coordinator snapshot: an error
// code plus the coordinator's (host, port) identity.
type CoordinatorSnapshot struct {
	ErrorCode   int16
	Coordinator BrokerMetadata
}

// CoordinatorCache (§4.C) holds the latest coordinator snapshot.
type CoordinatorCache struct {
	snapshot CoordinatorSnapshot
	valid    bool
}

// coordinatorBroker resolves the cached coordinator's (host, port) through
// the registry.
func (c CoordinatorCache) coordinatorBroker(reg *BrokerRegistry) (*Broker, bool) {
	if !c.valid {
		return nil, false
	}
	return reg.findAddr(c.snapshot.Coordinator.Addr())
}

// coordinatorRefresher is component §4.E.
type coordinatorRefresher struct {
	proto   Protocol
	network NetworkClient
	syncTO  time.Duration
	logger  Logger
}

// updateCoordinator implements §4.E: build a FindCoordinator request,
// first-broker-response, retry up to 3 times on a non-no_error code with a
// 400ms delay, and only install the snapshot on success.
func (r *coordinatorRefresher) updateCoordinator(state *workerState) {
	group := state.group
	var result CoordinatorSnapshot
	var ok bool

	retryLoop(coordinatorRetryCount, coordinatorRetryDelay, func(try int) retryResult {
		reqCorrID := state.corrID
		state.corrID++

		payload := r.proto.BuildCoordinatorRequest(reqCorrID, group)
		raw, err := firstBrokerResponse(&state.registry, r.network, payload, r.syncTO)
		if err != nil {
			r.logger.Log(LogLevelError, "unable to reach any broker for coordinator lookup", "err", err)
			return retryAgain
		}

		snap, perr := r.proto.ParseCoordinatorResponse(raw)
		if perr != nil {
			r.logger.Log(LogLevelWarn, "malformed find-coordinator response", "err", perr)
			return retryAgain
		}

		result = *snap
		if errForCode(snap.ErrorCode) == nil {
			ok = true
			return retryDone
		}
		return retryAgain
	})

	if !ok {
		r.logger.Log(LogLevelError, "coordinator refresh exhausted retries", "code", result.ErrorCode, "err", errForCode(result.ErrorCode))
		return
	}
	state.coordinator.snapshot = result
	state.coordinator.valid = true
}

// groupCoordinatorUnavailable reports whether an error code signals the
// group coordinator is not yet known (not available, or still loading).
// updateCoordinator does not consult it: it retries on any non-zero code.
func groupCoordinatorUnavailable(code int16) bool {
	err := errForCode(code)
	return err == kerr.CoordinatorNotAvailable || err == kerr.CoordinatorLoadInProgress
}
