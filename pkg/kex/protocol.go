package kex

import (
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// Protocol is the §6.4 collaborator: pure, stateless request encoding and
// response decoding. Nothing in this file touches a socket or mutates
// worker state; it is exercised exclusively through broker.go/network.go.
type Protocol interface {
	BuildMetadataRequest(corrID int32, topic string) []byte
	ParseMetadataResponse(raw []byte) (*MetadataSnapshot, error)

	BuildCoordinatorRequest(corrID int32, group string) []byte
	ParseCoordinatorResponse(raw []byte) (*CoordinatorSnapshot, error)

	BuildProduceRequest(corrID int32, req ProduceRequest) []byte
	ParseProduceResponse(raw []byte) (*kmsg.ProduceResponse, error)

	BuildFetchRequest(corrID int32, req FetchRequest) []byte
	ParseFetchResponse(raw []byte) (*kmsg.FetchResponse, error)

	BuildOffsetRequest(corrID int32, req OffsetRequest) []byte
	ParseOffsetResponse(raw []byte) (*kmsg.ListOffsetsResponse, error)

	BuildOffsetFetchRequest(corrID int32, req OffsetFetchRequest) []byte
	ParseOffsetFetchResponse(raw []byte) (*kmsg.OffsetFetchResponse, error)

	BuildOffsetCommitRequest(corrID int32, req OffsetCommitRequest) []byte
	ParseOffsetCommitResponse(raw []byte) (*kmsg.OffsetCommitResponse, error)

	BuildJoinGroupRequest(corrID int32, req JoinGroupRequest) []byte
	ParseJoinGroupResponse(raw []byte) (*kmsg.JoinGroupResponse, error)

	BuildSyncGroupRequest(corrID int32, req SyncGroupRequest) []byte
	ParseSyncGroupResponse(raw []byte) (*kmsg.SyncGroupResponse, error)

	BuildHeartbeatRequest(corrID int32, req HeartbeatRequest) []byte
	ParseHeartbeatResponse(raw []byte) (*kmsg.HeartbeatResponse, error)

	BuildSASLHandshakeRequest(corrID int32, mechanism string) []byte
	ParseSASLHandshakeResponse(raw []byte) (*kmsg.SASLHandshakeResponse, error)

	BuildSASLAuthenticateRequest(corrID int32, authBytes []byte) []byte
	ParseSASLAuthenticateResponse(raw []byte) (*kmsg.SASLAuthenticateResponse, error)
}

// kmsgProtocol implements Protocol against the real Kafka wire format using
// the generated kmsg request/response structs and kerr's error-code table,
// the way the teacher does throughout broker.go.
type kmsgProtocol struct {
	fmt *kmsg.RequestFormatter
}

func newKmsgProtocol() *kmsgProtocol {
	return &kmsgProtocol{fmt: kmsg.NewRequestFormatter(kmsg.FormatterClientID(clientID))}
}

func (p *kmsgProtocol) appendRequest(corrID int32, req kmsg.Request) []byte {
	return p.fmt.AppendRequest(nil, req, corrID)
}

func (p *kmsgProtocol) BuildMetadataRequest(corrID int32, topic string) []byte {
	req := kmsg.NewPtrMetadataRequest()
	if topic != "" {
		rt := kmsg.NewMetadataRequestTopic()
		rt.Topic = kmsg.StringPtr(topic)
		req.Topics = append(req.Topics, rt)
	}
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseMetadataResponse(raw []byte) (*MetadataSnapshot, error) {
	resp := kmsg.NewPtrMetadataResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}

	snap := &MetadataSnapshot{}
	for _, b := range resp.Brokers {
		snap.Brokers = append(snap.Brokers, BrokerMetadata{
			NodeID: b.NodeID,
			Host:   b.Host,
			Port:   b.Port,
		})
	}
	for _, t := range resp.Topics {
		tm := TopicMetadata{ErrorCode: t.ErrorCode}
		if t.Topic != nil {
			tm.Topic = *t.Topic
		}
		for _, part := range t.Partitions {
			tm.Partitions = append(tm.Partitions, PartitionMetadata{
				Partition: part.Partition,
				Leader:    part.Leader,
				ErrorCode: part.ErrorCode,
			})
		}
		snap.Topics = append(snap.Topics, tm)
	}
	return snap, nil
}

func (p *kmsgProtocol) BuildCoordinatorRequest(corrID int32, group string) []byte {
	req := kmsg.NewPtrFindCoordinatorRequest()
	req.CoordinatorKey = group
	req.CoordinatorType = 0 // group coordinator
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseCoordinatorResponse(raw []byte) (*CoordinatorSnapshot, error) {
	resp := kmsg.NewPtrFindCoordinatorResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return &CoordinatorSnapshot{
		ErrorCode: resp.ErrorCode,
		Coordinator: BrokerMetadata{
			NodeID: resp.NodeID,
			Host:   resp.Host,
			Port:   resp.Port,
		},
	}, nil
}

func (p *kmsgProtocol) BuildProduceRequest(corrID int32, r ProduceRequest) []byte {
	req := kmsg.NewPtrProduceRequest()
	req.Acks = r.RequiredAcks
	req.TimeoutMillis = int32(r.Timeout.Milliseconds())

	topic := kmsg.NewProduceRequestTopic()
	topic.Topic = r.Topic

	part := kmsg.NewProduceRequestTopicPartition()
	part.Partition = r.Partition
	part.Records = encodeRecordBatch(r.Messages, r.Codec)

	topic.Partitions = append(topic.Partitions, part)
	req.Topics = append(req.Topics, topic)
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseProduceResponse(raw []byte) (*kmsg.ProduceResponse, error) {
	resp := kmsg.NewPtrProduceResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *kmsgProtocol) BuildFetchRequest(corrID int32, r FetchRequest) []byte {
	req := kmsg.NewPtrFetchRequest()
	req.MaxWaitMillis = int32(r.WaitTime.Milliseconds())
	req.MinBytes = r.MinBytes
	req.MaxBytes = r.MaxBytes

	topic := kmsg.NewFetchRequestTopic()
	topic.Topic = r.Topic

	part := kmsg.NewFetchRequestTopicPartition()
	part.Partition = r.Partition
	part.FetchOffset = r.Offset
	part.PartitionMaxBytes = r.MaxBytes

	topic.Partitions = append(topic.Partitions, part)
	req.Topics = append(req.Topics, topic)
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseFetchResponse(raw []byte) (*kmsg.FetchResponse, error) {
	resp := kmsg.NewPtrFetchResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *kmsgProtocol) BuildOffsetRequest(corrID int32, r OffsetRequest) []byte {
	req := kmsg.NewPtrListOffsetsRequest()
	req.ReplicaID = -1

	topic := kmsg.NewListOffsetsRequestTopic()
	topic.Topic = r.Topic

	part := kmsg.NewListOffsetsRequestTopicPartition()
	part.Partition = r.Partition
	part.Timestamp = r.Time

	topic.Partitions = append(topic.Partitions, part)
	req.Topics = append(req.Topics, topic)
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseOffsetResponse(raw []byte) (*kmsg.ListOffsetsResponse, error) {
	resp := kmsg.NewPtrListOffsetsResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *kmsgProtocol) BuildOffsetFetchRequest(corrID int32, r OffsetFetchRequest) []byte {
	req := kmsg.NewPtrOffsetFetchRequest()
	req.Group = r.ConsumerGroup

	topic := kmsg.NewOffsetFetchRequestTopic()
	topic.Topic = r.Topic
	topic.Partitions = append(topic.Partitions, r.Partition)

	req.Topics = append(req.Topics, topic)
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseOffsetFetchResponse(raw []byte) (*kmsg.OffsetFetchResponse, error) {
	resp := kmsg.NewPtrOffsetFetchResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *kmsgProtocol) BuildOffsetCommitRequest(corrID int32, r OffsetCommitRequest) []byte {
	req := kmsg.NewPtrOffsetCommitRequest()
	req.Group = r.ConsumerGroup

	topic := kmsg.NewOffsetCommitRequestTopic()
	topic.Topic = r.Topic

	part := kmsg.NewOffsetCommitRequestTopicPartition()
	part.Partition = r.Partition
	part.Offset = r.Offset

	topic.Partitions = append(topic.Partitions, part)
	req.Topics = append(req.Topics, topic)
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseOffsetCommitResponse(raw []byte) (*kmsg.OffsetCommitResponse, error) {
	resp := kmsg.NewPtrOffsetCommitResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *kmsgProtocol) BuildJoinGroupRequest(corrID int32, r JoinGroupRequest) []byte {
	req := kmsg.NewPtrJoinGroupRequest()
	req.Group = r.Group
	req.SessionTimeoutMillis = int32(r.SessionTimeout.Milliseconds())
	req.MemberID = r.MemberID
	req.ProtocolType = "consumer"
	for _, t := range r.Topics {
		proto := kmsg.NewJoinGroupRequestProtocol()
		proto.Name = "range"
		proto.Metadata = encodeGroupTopics([]string{t})
		req.Protocols = append(req.Protocols, proto)
	}
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseJoinGroupResponse(raw []byte) (*kmsg.JoinGroupResponse, error) {
	resp := kmsg.NewPtrJoinGroupResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *kmsgProtocol) BuildSyncGroupRequest(corrID int32, r SyncGroupRequest) []byte {
	req := kmsg.NewPtrSyncGroupRequest()
	req.Group = r.Group
	req.Generation = r.GenerationID
	req.MemberID = r.MemberID
	for member, assignment := range r.Assignments {
		a := kmsg.NewSyncGroupRequestGroupAssignment()
		a.MemberID = member
		a.MemberAssignment = assignment
		req.GroupAssignment = append(req.GroupAssignment, a)
	}
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseSyncGroupResponse(raw []byte) (*kmsg.SyncGroupResponse, error) {
	resp := kmsg.NewPtrSyncGroupResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *kmsgProtocol) BuildHeartbeatRequest(corrID int32, r HeartbeatRequest) []byte {
	req := kmsg.NewPtrHeartbeatRequest()
	req.Group = r.Group
	req.Generation = r.GenerationID
	req.MemberID = r.MemberID
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseHeartbeatResponse(raw []byte) (*kmsg.HeartbeatResponse, error) {
	resp := kmsg.NewPtrHeartbeatResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

// BuildSASLHandshakeRequest mirrors the teacher's brokerCxn.sasl: negotiate
// the mechanism before any authentication bytes are exchanged.
func (p *kmsgProtocol) BuildSASLHandshakeRequest(corrID int32, mechanism string) []byte {
	req := kmsg.NewPtrSASLHandshakeRequest()
	req.Mechanism = mechanism
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseSASLHandshakeResponse(raw []byte) (*kmsg.SASLHandshakeResponse, error) {
	resp := kmsg.NewPtrSASLHandshakeResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

// BuildSASLAuthenticateRequest wraps the mechanism's auth bytes exactly as
// the teacher's brokerCxn.doSasl does via kmsg.SASLAuthenticateRequest,
// rather than writing them raw over the socket.
func (p *kmsgProtocol) BuildSASLAuthenticateRequest(corrID int32, authBytes []byte) []byte {
	req := kmsg.NewPtrSASLAuthenticateRequest()
	req.SASLAuthBytes = authBytes
	return p.appendRequest(corrID, req)
}

func (p *kmsgProtocol) ParseSASLAuthenticateResponse(raw []byte) (*kmsg.SASLAuthenticateResponse, error) {
	resp := kmsg.NewPtrSASLAuthenticateResponse()
	if err := resp.ReadFrom(raw); err != nil {
		return nil, err
	}
	return resp, nil
}

// errForCode is a thin wrapper so call sites read "errForCode(x)" rather
// than reaching into kerr directly everywhere.
func errForCode(code int16) error {
	return kerr.ErrorForCode(code)
}

func encodeGroupTopics(topics []string) []byte {
	// A minimal consumer-group protocol metadata encoding (version,
	// topic count, topic names, empty userdata) sufficient for a
	// pass-through join; the broker only needs to echo this back
	// through sync-group, it never interprets it here (§1 Non-goals:
	// no assignment computed by the worker).
	buf := make([]byte, 0, 2+4+16*len(topics))
	buf = append(buf, 0, 0) // protocol version
	n := len(topics)
	buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	for _, t := range topics {
		l := len(t)
		buf = append(buf, byte(l>>8), byte(l))
		buf = append(buf, t...)
	}
	return buf
}
