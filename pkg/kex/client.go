package kex

import "github.com/twmb/franz-go/pkg/kmsg"

// Client is the public handle on a worker (§3/§6.1): one actor, one
// mailbox, one goroutine processing every operation below to completion
// before the next begins.
type Client struct {
	a          *actor
	groupIsSet bool
}

// NewClient starts a worker: dials every seed broker, performs an initial
// metadata retrieval, and arms the refresh timers (§4.I). It returns an
// error without leaving a goroutine running if startup fails.
func NewClient(opts ...Opt) (*Client, error) {
	c := defaultCfg()
	for _, opt := range opts {
		opt(&c)
	}
	a, err := startActor(c)
	if err != nil {
		return nil, err
	}
	return &Client{a: a, groupIsSet: c.hasGroup()}, nil
}

// Close shuts the worker down: it stops accepting new requests, closes any
// live stream, and closes every broker socket.
func (c *Client) Close() {
	c.a.close()
}

// HasGroup reports whether the worker was configured with a consumer
// group. The group is fixed at construction time, so this needs no
// mailbox round-trip.
func (c *Client) HasGroup() bool {
	return c.groupIsSet
}

// ConsumerGroup returns the worker's configured consumer group, or NoGroup.
func (c *Client) ConsumerGroup() (string, error) {
	v, err := c.a.submit(actorMsg{kind: opConsumerGroup})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Produce implements §6.1's produce operation. When req.RequiredAcks is 0
// the reply is an asyncProduceDispatched sentinel rather than a decoded
// broker response.
func (c *Client) Produce(req ProduceRequest) (interface{}, error) {
	return c.a.submit(actorMsg{kind: opProduce, produce: req})
}

// Fetch implements §6.1's fetch operation.
func (c *Client) Fetch(req FetchRequest) (*FetchReply, error) {
	v, err := c.a.submit(actorMsg{kind: opFetch, fetch: req})
	if err != nil {
		return nil, err
	}
	return v.(*FetchReply), nil
}

// Offset implements §6.1's time-indexed offset lookup.
func (c *Client) Offset(req OffsetRequest) (*kmsg.ListOffsetsResponse, error) {
	v, err := c.a.submit(actorMsg{kind: opOffset, offset: req})
	if err != nil {
		return nil, err
	}
	return v.(*kmsg.ListOffsetsResponse), nil
}

// OffsetFetch implements §6.1's offset_fetch.
func (c *Client) OffsetFetch(req OffsetFetchRequest) (*kmsg.OffsetFetchResponse, error) {
	v, err := c.a.submit(actorMsg{kind: opOffsetFetch, offsetFetch: req})
	if err != nil {
		return nil, err
	}
	return v.(*kmsg.OffsetFetchResponse), nil
}

// OffsetCommit implements §6.1's offset_commit.
func (c *Client) OffsetCommit(req OffsetCommitRequest) (*kmsg.OffsetCommitResponse, error) {
	v, err := c.a.submit(actorMsg{kind: opOffsetCommit, offsetCommit: req})
	if err != nil {
		return nil, err
	}
	return v.(*kmsg.OffsetCommitResponse), nil
}

// ConsumerGroupMetadata returns the worker's current coordinator snapshot,
// refreshing it first.
func (c *Client) ConsumerGroupMetadata() (CoordinatorSnapshot, error) {
	v, err := c.a.submit(actorMsg{kind: opConsumerGroupMetadata})
	if err != nil {
		return CoordinatorSnapshot{}, err
	}
	return v.(CoordinatorSnapshot), nil
}

// Metadata forces a targeted metadata refresh for topic (or every topic,
// if topic is empty) and returns the resulting snapshot.
func (c *Client) Metadata(topic string) (MetadataSnapshot, error) {
	v, err := c.a.submit(actorMsg{kind: opMetadata, metaTopic: topic})
	if err != nil {
		return MetadataSnapshot{}, err
	}
	return v.(MetadataSnapshot), nil
}

// JoinGroup implements §6.1's join_group.
func (c *Client) JoinGroup(req JoinGroupRequest) (*kmsg.JoinGroupResponse, error) {
	v, err := c.a.submit(actorMsg{kind: opJoinGroup, joinGroup: req})
	if err != nil {
		return nil, err
	}
	return v.(*kmsg.JoinGroupResponse), nil
}

// SyncGroup implements §6.1's sync_group.
func (c *Client) SyncGroup(req SyncGroupRequest) (*kmsg.SyncGroupResponse, error) {
	v, err := c.a.submit(actorMsg{kind: opSyncGroup, syncGroup: req})
	if err != nil {
		return nil, err
	}
	return v.(*kmsg.SyncGroupResponse), nil
}

// Heartbeat implements §6.1's heartbeat.
func (c *Client) Heartbeat(req HeartbeatRequest) (*kmsg.HeartbeatResponse, error) {
	v, err := c.a.submit(actorMsg{kind: opHeartbeat, heartbeat: req})
	if err != nil {
		return nil, err
	}
	return v.(*kmsg.HeartbeatResponse), nil
}

// CreateStreamRequest is §6.1's create_stream payload.
type CreateStreamRequest struct {
	Topic        string
	Partition    int32
	Offset       int64
	AutoCommit   bool
	PollInterval int // ms; the fetch-and-reschedule period (§4.H)
	Handler      StreamHandler
}

// CreateStream implements §6.1's create_stream: at most one live stream
// per worker (ErrSinkAlreadyActive otherwise).
func (c *Client) CreateStream(req CreateStreamRequest) (*Stream, error) {
	v, err := c.a.submit(actorMsg{kind: opCreateStream, createStream: createStreamArgs{
		Topic:        req.Topic,
		Partition:    req.Partition,
		Offset:       req.Offset,
		AutoCommit:   req.AutoCommit,
		PollInterval: req.PollInterval,
		Handler:      req.Handler,
	}})
	if err != nil {
		return nil, err
	}
	return v.(*Stream), nil
}

// StopStreaming implements §6.1's stop_streaming.
func (c *Client) StopStreaming() {
	c.a.submitAsync(actorMsg{kind: opStopStreaming})
}
