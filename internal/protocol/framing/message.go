package framing

import (
	"fmt"
	"net"

	"github.com/GabeVillalobos/post/pkg/types"
)

// ============================================================================
//                              消息类型
// ============================================================================

// MessageType 消息类型
type MessageType uint8

const (
	// TypeSubscribe 订阅请求，只有发送方地址有意义
	TypeSubscribe MessageType = 0x01

	// TypeUnsubscribe 取消订阅请求
	TypeUnsubscribe MessageType = 0x02

	// TypeData 数据分片
	TypeData MessageType = 0x03
)

// String 返回类型名称
func (t MessageType) String() string {
	switch t {
	case TypeSubscribe:
		return "subscribe"
	case TypeUnsubscribe:
		return "unsubscribe"
	case TypeData:
		return "data"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// IsRequest 是否为控制请求（Subscribe / Unsubscribe）
func (t MessageType) IsRequest() bool {
	return t == TypeSubscribe || t == TypeUnsubscribe
}

// ============================================================================
//                              消息
// ============================================================================

// Chunk 数据分片
type Chunk struct {
	// Generation 所属发送批次
	Generation types.Generation

	// Seq 分片序号（从 0 开始）
	Seq uint32

	// Total 本批次负载的分片总数
	Total uint32

	// Payload 分片内容
	Payload []byte
}

// Message 帧消息
//
// Type 为 TypeData 时 Data 非空，其余类型 Data 为 nil。
type Message struct {
	Type MessageType
	Data *Chunk
}

// Subscribe 创建订阅请求
func Subscribe() Message {
	return Message{Type: TypeSubscribe}
}

// Unsubscribe 创建取消订阅请求
func Unsubscribe() Message {
	return Message{Type: TypeUnsubscribe}
}

// NewData 创建数据消息
func NewData(generation types.Generation, seq, total uint32, payload []byte) Message {
	return Message{
		Type: TypeData,
		Data: &Chunk{
			Generation: generation,
			Seq:        seq,
			Total:      total,
			Payload:    payload,
		},
	}
}

// String 返回可读形式
func (m Message) String() string {
	if m.Type == TypeData && m.Data != nil {
		return fmt.Sprintf("data(gen=%d %d/%d %dB)", m.Data.Generation, m.Data.Seq+1, m.Data.Total, len(m.Data.Payload))
	}
	return m.Type.String()
}

// ============================================================================
//                              DataGram
// ============================================================================

// DataGram 与传输层交换的单元：消息 + 对端地址
//
// 入站时 Peer 是发送方，出站时 Peer 是目的地。
type DataGram struct {
	Message Message
	Peer    net.Addr
}
