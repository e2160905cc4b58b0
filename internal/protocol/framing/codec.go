package framing

import (
	"errors"

	"github.com/multiformats/go-varint"

	"github.com/GabeVillalobos/post/pkg/types"
)

// ============================================================================
//                              协议常量
// ============================================================================

const (
	// MaxDatagramSize 单个数据报的实际可用上限（低于常见以太网 MTU）
	MaxDatagramSize = 1400

	// maxDataHeaderSize Data 帧头的最大长度：类型字节 + 4 个 varint
	maxDataHeaderSize = 1 + 4*varint.MaxLenUvarint63

	// MaxChunkSize 默认分片大小，保证编码后不超过 MaxDatagramSize
	MaxChunkSize = MaxDatagramSize - maxDataHeaderSize

	// MaxChunksPerPayload 单个负载的最大分片数
	MaxChunksPerPayload = 1 << 16
)

// ============================================================================
//                              编码
// ============================================================================

// Encode 将消息编码为数据报字节
func Encode(msg Message) ([]byte, error) {
	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		return []byte{byte(msg.Type)}, nil
	case TypeData:
		if msg.Data == nil {
			return nil, encodeErr(ErrMissingData)
		}
		return appendData(msg.Data), nil
	default:
		return nil, encodeErr(ErrUnknownType)
	}
}

func appendData(c *Chunk) []byte {
	size := 1 +
		varint.UvarintSize(uint64(c.Generation)) +
		varint.UvarintSize(uint64(c.Seq)) +
		varint.UvarintSize(uint64(c.Total)) +
		varint.UvarintSize(uint64(len(c.Payload))) +
		len(c.Payload)

	buf := make([]byte, size)
	buf[0] = byte(TypeData)
	n := 1
	n += varint.PutUvarint(buf[n:], uint64(c.Generation))
	n += varint.PutUvarint(buf[n:], uint64(c.Seq))
	n += varint.PutUvarint(buf[n:], uint64(c.Total))
	n += varint.PutUvarint(buf[n:], uint64(len(c.Payload)))
	copy(buf[n:], c.Payload)
	return buf
}

// ============================================================================
//                              解码
// ============================================================================

// Decode 从数据报字节解码消息
//
// 返回的 Chunk.Payload 是 data 的副本，调用方可以复用读缓冲区。
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, decodeErr(ErrEmptyFrame)
	}

	switch t := MessageType(data[0]); t {
	case TypeSubscribe, TypeUnsubscribe:
		if len(data) != 1 {
			return Message{}, decodeErr(ErrTrailingBytes)
		}
		return Message{Type: t}, nil
	case TypeData:
		chunk, err := decodeData(data[1:])
		if err != nil {
			return Message{}, decodeErr(err)
		}
		return Message{Type: TypeData, Data: chunk}, nil
	default:
		return Message{}, decodeErr(ErrUnknownType)
	}
}

func decodeData(buf []byte) (*Chunk, error) {
	var fields [4]uint64
	for i := range fields {
		v, n, err := varint.FromUvarint(buf)
		if err != nil {
			if errors.Is(err, varint.ErrUnderflow) {
				return nil, ErrTruncated
			}
			return nil, err
		}
		fields[i] = v
		buf = buf[n:]
	}

	generation, seq, total, length := fields[0], fields[1], fields[2], fields[3]
	if total == 0 || total > MaxChunksPerPayload || seq >= total {
		return nil, ErrInvalidSequence
	}
	if uint64(len(buf)) < length {
		return nil, ErrTruncated
	}
	if uint64(len(buf)) > length {
		return nil, ErrTrailingBytes
	}

	payload := make([]byte, length)
	copy(payload, buf)

	return &Chunk{
		Generation: types.Generation(generation),
		Seq:        uint32(seq),
		Total:      uint32(total),
		Payload:    payload,
	}, nil
}

// ============================================================================
//                              分片
// ============================================================================

// SplitDataMsgs 按默认分片大小将负载切分为带批次号的数据消息
func SplitDataMsgs(payload []byte, generation types.Generation) ([]Message, error) {
	return SplitDataMsgsSize(payload, generation, MaxChunkSize)
}

// SplitDataMsgsSize 按指定分片大小切分负载
//
// 返回的消息按 seq 升序排列。空负载产生一个空分片，
// 订阅者仍然能观察到该批次。分片引用 payload 的子切片，不复制。
func SplitDataMsgsSize(payload []byte, generation types.Generation, chunkSize int) ([]Message, error) {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		return nil, encodeErr(ErrInvalidChunkSize)
	}

	total := (len(payload) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	if total > MaxChunksPerPayload {
		return nil, encodeErr(ErrPayloadTooLarge)
	}

	msgs := make([]Message, 0, total)
	for seq := 0; seq < total; seq++ {
		start := seq * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		msgs = append(msgs, NewData(generation, uint32(seq), uint32(total), payload[start:end]))
	}
	return msgs, nil
}
