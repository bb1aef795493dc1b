package kex

import "errors"

// Sentinel errors surfaced to callers of the worker. Protocol-level error
// codes (kerr.ErrorForCode) are returned alongside these, not instead of
// them, wherever a reply carries one.
var (
	// ErrLeaderNotAvailable is returned when the router could not resolve
	// a partition leader, even after a metadata refresh.
	ErrLeaderNotAvailable = errors.New("kex: leader not available")

	// ErrTopicNotFound is returned when a topic named in a request is
	// absent from the current metadata snapshot after a refresh.
	ErrTopicNotFound = errors.New("kex: topic not found")

	// ErrNoMetadataAvailable means no broker in the registry returned a
	// usable metadata reply. This is fatal: the caller (worker actor) is
	// expected to let it propagate and terminate, relying on a
	// supervisor to restart the worker.
	ErrNoMetadataAvailable = errors.New("kex: unable to fetch metadata from any broker")

	// ErrNoConsumerGroup is the assertion failure returned by a fetch with
	// auto_commit on a worker configured with the sentinel "no group".
	// Other group operations do not check for it: they are sent with the
	// group they carry, or with the worker's group (possibly the sentinel)
	// when they carry none.
	ErrNoConsumerGroup = errors.New("kex: worker has no consumer group configured")

	// ErrSinkAlreadyActive is returned by CreateStream when a sink is
	// already attached and live; the existing sink is left untouched.
	ErrSinkAlreadyActive = errors.New("kex: a stream is already active on this worker")

	// ErrWorkerClosed is returned by any operation submitted after the
	// worker's mailbox has been shut down.
	ErrWorkerClosed = errors.New("kex: worker is closed")

	// ErrConnDead indicates a broker connection could not be used to
	// complete a request (closed, never opened, or a hung read/write).
	ErrConnDead = errors.New("kex: broker connection dead")

	// ErrNoDial indicates the initial TCP dial to a broker failed.
	ErrNoDial = errors.New("kex: unable to dial broker")

	// ErrSASLHandshake indicates a SASL handshake or authenticate exchange
	// got no reply, or a SCRAM server-first message lacked its nonce, salt
	// or iteration count. A protocol error code in a reply is returned as
	// its kerr error instead.
	ErrSASLHandshake = errors.New("kex: sasl handshake failed")
)
