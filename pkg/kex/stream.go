package kex

// Record is a single decoded message delivered to a Stream sink (§3
// glossary: "Sink").
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Message   Message
}

// StreamHandler optionally receives each Record as it is emitted, in
// addition to it being pushed onto the Stream's channel -- the Go
// expression of §4.G's create_stream(handler, handler_init): handler_init
// has no separate representation here since Go closures already capture
// whatever state a handler needs.
type StreamHandler func(Record)

// Stream is the output handle returned by CreateStream: a buffered channel
// of decoded records plus a way to stop the underlying poll loop. It is
// owned by the worker but safe for an external consumer to read
// concurrently (§5 "Shared resources").
type Stream struct {
	out     chan Record
	handler StreamHandler
}

func newStream(handler StreamHandler) *Stream {
	return &Stream{
		out:     make(chan Record, 256),
		handler: handler,
	}
}

// Records returns the channel external consumers read from.
func (s *Stream) Records() <-chan Record { return s.out }

func (s *Stream) emit(r Record) {
	if s.handler != nil {
		s.handler(r)
	}
	select {
	case s.out <- r:
	default:
		// A slow external consumer does not block the actor; the
		// streaming loop is self-paced by poll_interval, not by sink
		// drain speed (§5 "Backpressure").
	}
}

func (s *Stream) stop() {
	close(s.out)
}

// startStreamingMsg is the §6.2 self-posted event.
type startStreamingMsg struct {
	Topic        string
	Partition    int32
	Offset       int64
	AutoCommit   bool
	PollInterval int // ms
}

// streamStep performs one iteration of §4.H's start_streaming handling: a
// single fetch, emitting each record to the sink, and computing the next
// offset. It does not itself reschedule -- that is the actor's job, since
// only the actor may decide whether the worker is still active.
func streamStep(h *handlers, state *workerState, sink *Stream, msg startStreamingMsg) int64 {
	reply, err := h.fetchOp(state, FetchRequest{
		Topic:      msg.Topic,
		Partition:  msg.Partition,
		Offset:     msg.Offset,
		WaitTime:   streamWaitTime,
		MinBytes:   streamMinBytes,
		MaxBytes:   streamMaxBytes,
		AutoCommit: msg.AutoCommit,
	})
	if err == ErrTopicNotFound {
		return msg.Offset
	}
	if err != nil {
		h.logger.Log(LogLevelWarn, "streaming: fetch failed, retrying at same offset", "topic", msg.Topic, "partition", msg.Partition, "err", err)
		return msg.Offset
	}

	for i, m := range reply.Messages {
		sink.emit(Record{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset + int64(i),
			Message:   m,
		})
	}

	if reply.LastOffset != nil {
		return *reply.LastOffset + 1
	}
	return msg.Offset
}
