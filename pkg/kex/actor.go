package kex

import (
	"sync"
	"time"
)

// workerState is the single §3 "Worker state" record. Only the actor's run
// loop ever mutates it -- every field here is read or written exclusively
// from inside handleMsg, never from a ticker goroutine or an external
// caller directly (§5 "no locks are required because of the actor
// discipline").
type workerState struct {
	registry    BrokerRegistry
	metadata    MetadataCache
	coordinator CoordinatorCache

	corrID int32

	group string

	syncTimeout          time.Duration
	metadataInterval     time.Duration
	coordinatorInterval  time.Duration
	compression          CompressionCodec

	sink *Stream
	name string
}

func (s *workerState) hasGroup() bool { return s.group != NoGroup }

// opKind tags the actorMsg union (§9 "tagged request variants").
type opKind int

const (
	opConsumerGroup opKind = iota
	opProduce
	opFetch
	opOffset
	opOffsetFetch
	opOffsetCommit
	opConsumerGroupMetadata
	opMetadata
	opJoinGroup
	opSyncGroup
	opHeartbeat
	opCreateStream
	opStartStreaming
	opStopStreaming
	opRefreshMetadata
	opRefreshCoordinator
)

// createStreamArgs bundles create_stream's parameters (§6.1).
type createStreamArgs struct {
	Topic        string
	Partition    int32
	Offset       int64
	AutoCommit   bool
	PollInterval int
	Handler      StreamHandler
}

// actorMsg is the single tagged-union mailbox message type. Exactly one of
// the payload fields is meaningful, selected by kind.
type actorMsg struct {
	kind opKind

	produce      ProduceRequest
	fetch        FetchRequest
	offset       OffsetRequest
	offsetFetch  OffsetFetchRequest
	offsetCommit OffsetCommitRequest
	joinGroup    JoinGroupRequest
	syncGroup    SyncGroupRequest
	heartbeat    HeartbeatRequest
	metaTopic    string
	createStream createStreamArgs
	startStream  startStreamingMsg

	reply chan actorReply
}

type actorReply struct {
	value interface{}
	err   error
}

// actor is component §4.I: the single-threaded event loop owning all
// worker state. Exactly one message is handled to completion before the
// next is dequeued (§5 "Suspension points").
type actor struct {
	mailbox chan actorMsg
	closed  chan struct{}
	once    sync.Once

	state    *workerState
	handlers *handlers
	router   *router
	network  NetworkClient
	proto    Protocol
	logger   Logger

	metaTicker  *time.Ticker
	coordTicker *time.Ticker
}

// startActor performs §4.I's startup sequence: open seed sockets, perform
// an initial metadata retrieval at correlation id 0, and arm the timers.
func startActor(c cfg) (*actor, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	network := c.dialer
	if network == nil {
		network = newTCPNetworkClient()
	}
	proto := newKmsgProtocol()

	reg := newBrokerRegistry(c.seeds, network, proto, c)

	state := &workerState{
		registry:            *reg,
		group:               c.consumerGroup,
		syncTimeout:         c.syncTimeout,
		metadataInterval:    c.metadataUpdateInterval,
		coordinatorInterval: c.coordinatorInterval,
		compression:         c.compression,
		name:                "kex",
	}

	metaRefresher := &metadataRefresher{proto: proto, network: network, sasl: saslConfigFromCfg(c), syncTO: c.syncTimeout, logger: c.logger}
	coordRefresher := &coordinatorRefresher{proto: proto, network: network, syncTO: c.syncTimeout, logger: c.logger}
	rt := &router{metaRefresher: metaRefresher, coordRefresher: coordRefresher}
	h := &handlers{router: rt, proto: proto, network: network, logger: c.logger}

	a := &actor{
		mailbox:  make(chan actorMsg, 64),
		closed:   make(chan struct{}),
		state:    state,
		handlers: h,
		router:   rt,
		network:  network,
		proto:    proto,
		logger:   c.logger,
	}

	if err := a.initialMetadata(); err != nil {
		state.registry.closeAll(network)
		return nil, err
	}

	a.metaTicker = time.NewTicker(c.metadataUpdateInterval)
	go forwardTicks(a.metaTicker.C, a.mailbox, opRefreshMetadata, a.closed)

	if state.hasGroup() {
		a.coordTicker = time.NewTicker(c.coordinatorInterval)
		go forwardTicks(a.coordTicker.C, a.mailbox, opRefreshCoordinator, a.closed)
	}

	go a.run()
	return a, nil
}

// initialMetadata performs §4.I step 4 outside the mailbox (nothing is
// racing yet) but through the same fatal-on-exhaustion path the refresher
// always uses.
func (a *actor) initialMetadata() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = rerr
				return
			}
			panic(r)
		}
	}()
	a.router.metaRefresher.updateMetadata(a.state, "")
	return nil
}

// forwardTicks is the goroutine-per-ticker the design notes require: it
// touches nothing but the mailbox, so no state mutation happens outside
// the actor's own goroutine (§5).
func forwardTicks(c <-chan time.Time, mailbox chan<- actorMsg, kind opKind, closed <-chan struct{}) {
	for {
		select {
		case <-c:
			select {
			case mailbox <- actorMsg{kind: kind}:
			case <-closed:
				return
			}
		case <-closed:
			return
		}
	}
}

func (a *actor) run() {
	defer a.shutdown()
	for {
		msg, ok := <-a.mailbox
		if !ok {
			return
		}
		if a.handleMsg(msg) {
			return
		}
	}
}

func (a *actor) shutdown() {
	a.once.Do(func() {
		if a.metaTicker != nil {
			a.metaTicker.Stop()
		}
		if a.coordTicker != nil {
			a.coordTicker.Stop()
		}
		if a.state.sink != nil {
			a.state.sink.stop()
			a.state.sink = nil
		}
		a.state.registry.closeAll(a.network)
		close(a.closed)
	})
}

// handleMsg processes exactly one mailbox message to completion and
// returns true if the worker must terminate (the §4.D fatal path).
func (a *actor) handleMsg(msg actorMsg) (fatal bool) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				panic(r)
			}
			a.logger.Log(LogLevelError, "worker terminating", "reason", err)
			if msg.reply != nil {
				msg.reply <- actorReply{err: err}
			}
			fatal = true
		}
	}()

	switch msg.kind {
	case opRefreshMetadata:
		a.router.metaRefresher.updateMetadata(a.state, "")
		return false

	case opRefreshCoordinator:
		if a.state.hasGroup() {
			a.router.coordRefresher.updateCoordinator(a.state)
		}
		return false

	case opConsumerGroup:
		msg.reply <- actorReply{value: a.state.group}

	case opProduce:
		v, err := a.handlers.produceOp(a.state, msg.produce)
		msg.reply <- actorReply{value: v, err: err}

	case opFetch:
		v, err := a.handlers.fetchOp(a.state, msg.fetch)
		msg.reply <- actorReply{value: v, err: err}

	case opOffset:
		v, err := a.handlers.offsetOp(a.state, msg.offset)
		msg.reply <- actorReply{value: v, err: err}

	case opOffsetFetch:
		v, err := a.handlers.offsetFetchOp(a.state, msg.offsetFetch)
		msg.reply <- actorReply{value: v, err: err}

	case opOffsetCommit:
		v, err := a.handlers.offsetCommitOp(a.state, msg.offsetCommit)
		msg.reply <- actorReply{value: v, err: err}

	case opConsumerGroupMetadata:
		v := a.handlers.consumerGroupMetadataOp(a.state)
		msg.reply <- actorReply{value: v}

	case opMetadata:
		v := a.handlers.metadataOp(a.state, msg.metaTopic)
		msg.reply <- actorReply{value: v}

	case opJoinGroup:
		v, err := a.handlers.joinGroupOp(a.state, msg.joinGroup)
		msg.reply <- actorReply{value: v, err: err}

	case opSyncGroup:
		v, err := a.handlers.syncGroupOp(a.state, msg.syncGroup)
		msg.reply <- actorReply{value: v, err: err}

	case opHeartbeat:
		v, err := a.handlers.heartbeatOp(a.state, msg.heartbeat)
		msg.reply <- actorReply{value: v, err: err}

	case opCreateStream:
		v, err := a.createStream(msg.createStream)
		msg.reply <- actorReply{value: v, err: err}

	case opStartStreaming:
		a.handleStartStreaming(msg.startStream)

	case opStopStreaming:
		a.handleStopStreaming()
	}
	return false
}

// createStream implements §4.G's create_stream: refuse to replace an
// already-live sink, otherwise install a new one and kick off the
// streaming loop with a synthetic start_streaming message.
func (a *actor) createStream(args createStreamArgs) (*Stream, error) {
	if a.state.sink != nil {
		a.logger.Log(LogLevelWarn, "create_stream: a stream is already active, not replacing it")
		return nil, ErrSinkAlreadyActive
	}

	sink := newStream(args.Handler)
	a.state.sink = sink

	self := a.mailbox
	closed := a.closed
	go func() {
		select {
		case self <- actorMsg{kind: opStartStreaming, startStream: startStreamingMsg{
			Topic:        args.Topic,
			Partition:    args.Partition,
			Offset:       args.Offset,
			AutoCommit:   args.AutoCommit,
			PollInterval: args.PollInterval,
		}}:
		case <-closed:
		}
	}()

	return sink, nil
}

// handleStartStreaming implements §4.H's start_streaming event, including
// the cancel-race discard: if the worker is inactive (no sink), the
// message is dropped silently, exactly as specified for scenario 6.
func (a *actor) handleStartStreaming(msg startStreamingMsg) {
	sink := a.state.sink
	if sink == nil {
		return
	}

	newOffset := streamStep(a.handlers, a.state, sink, msg)

	self := a.mailbox
	closed := a.closed
	delay := time.Duration(msg.PollInterval) * time.Millisecond
	next := startStreamingMsg{
		Topic:        msg.Topic,
		Partition:    msg.Partition,
		Offset:       newOffset,
		AutoCommit:   msg.AutoCommit,
		PollInterval: msg.PollInterval,
	}
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-closed:
			return
		}
		select {
		case self <- actorMsg{kind: opStartStreaming, startStream: next}:
		case <-closed:
		}
	}()
}

// handleStopStreaming implements §4.H's stop_streaming: stop the sink,
// clear the handle, become inactive.
func (a *actor) handleStopStreaming() {
	if a.state.sink == nil {
		return
	}
	a.state.sink.stop()
	a.state.sink = nil
}

// submit posts msg to the mailbox and waits for its reply, or returns
// ErrWorkerClosed if the actor has already terminated.
func (a *actor) submit(msg actorMsg) (interface{}, error) {
	reply := make(chan actorReply, 1)
	msg.reply = reply

	// Checked first: once shut down the mailbox is closed, and a select
	// that picked the send case below would panic.
	select {
	case <-a.closed:
		return nil, ErrWorkerClosed
	default:
	}

	select {
	case a.mailbox <- msg:
	case <-a.closed:
		return nil, ErrWorkerClosed
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-a.closed:
		// The actor may terminate mid-handling (fatal path) without
		// ever reaching the reply send for messages queued behind the
		// one that failed; treat those as closed too.
		select {
		case r := <-reply:
			return r.value, r.err
		default:
			return nil, ErrWorkerClosed
		}
	}
}

// submitAsync posts msg without waiting for a reply; Client.StopStreaming
// uses it. The ticker goroutines and the streaming loop post their
// self-messages to the mailbox directly.
func (a *actor) submitAsync(msg actorMsg) {
	select {
	case a.mailbox <- msg:
	case <-a.closed:
	}
}

// close stops the actor: closes the mailbox so run()'s receive loop exits
// after draining, which triggers shutdown().
func (a *actor) close() {
	select {
	case <-a.closed:
		return
	default:
	}
	closeMailboxOnce(a)
}

func closeMailboxOnce(a *actor) {
	defer func() { recover() }() // mailbox may already be closing concurrently
	close(a.mailbox)
}
