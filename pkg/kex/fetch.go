package kex

import "github.com/twmb/franz-go/pkg/kmsg"

// FetchReply is the decoded form of a fetch response's first topic/
// partition, the shape operation handlers and the streaming loop act on.
type FetchReply struct {
	Topic      string
	Partition  int32
	ErrorCode  int16
	Messages   []Message
	LastOffset *int64 // nil if the batch was empty
}

func decodeFetchResponse(resp *kmsg.FetchResponse, requestOffset int64, codec CompressionCodec) *FetchReply {
	if len(resp.Topics) == 0 || len(resp.Topics[0].Partitions) == 0 {
		return &FetchReply{}
	}
	topic := resp.Topics[0]
	part := topic.Partitions[0]

	reply := &FetchReply{
		Topic:     topic.Topic,
		Partition: part.Partition,
		ErrorCode: part.ErrorCode,
	}
	if len(part.RecordBatches) == 0 {
		return reply
	}

	raw, err := decompress(int16(codec), part.RecordBatches)
	if err != nil {
		return reply
	}
	reply.Messages = decodeRecordBatch(raw)
	if n := len(reply.Messages); n > 0 {
		last := requestOffset + int64(n) - 1
		reply.LastOffset = &last
	}
	return reply
}

// decodeRecordBatch is the inverse of encodeRecordBatch (compression.go).
func decodeRecordBatch(raw []byte) []Message {
	var messages []Message
	for i := 0; i+4 <= len(raw); {
		klen := int(be32(raw[i:]))
		i += 4
		if i+klen > len(raw) {
			break
		}
		key := raw[i : i+klen]
		i += klen

		if i+4 > len(raw) {
			break
		}
		vlen := int(be32(raw[i:]))
		i += 4
		if i+vlen > len(raw) {
			break
		}
		value := raw[i : i+vlen]
		i += vlen

		messages = append(messages, Message{Key: key, Value: value})
	}
	return messages
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// fetchOp implements §4.G's fetch operation, including the auto-commit
// follow-up dispatch.
func (h *handlers) fetchOp(state *workerState, req FetchRequest) (*FetchReply, error) {
	if req.AutoCommit && !state.hasGroup() {
		return nil, ErrNoConsumerGroup
	}

	b, ok := h.router.route(state, req.Topic, req.Partition)
	if !ok {
		h.logger.Log(LogLevelWarn, "fetch: topic/partition not found", "topic", req.Topic, "partition", req.Partition)
		return nil, ErrTopicNotFound
	}

	corrID := nextCorrID(state)
	payload := h.proto.BuildFetchRequest(corrID, req)
	raw, err := h.network.SendSyncRequest(b.sock, payload, state.syncTimeout)
	if err != nil || raw == nil {
		return nil, ErrConnDead
	}
	resp, perr := h.proto.ParseFetchResponse(raw)
	if perr != nil {
		return nil, perr
	}

	reply := decodeFetchResponse(resp, req.Offset, state.compression)

	if req.AutoCommit && reply.LastOffset != nil {
		_, cerr := h.offsetCommitOp(state, OffsetCommitRequest{
			Topic:         req.Topic,
			Partition:     req.Partition,
			Offset:        *reply.LastOffset,
			ConsumerGroup: state.group,
		})
		if cerr != nil {
			h.logger.Log(LogLevelWarn, "fetch: auto-commit failed", "topic", req.Topic, "partition", req.Partition, "err", cerr)
		}
	}

	return reply, nil
}
