package framing

import "errors"

// 预定义错误
var (
	// ErrEmptyFrame 空帧
	ErrEmptyFrame = errors.New("framing: empty frame")

	// ErrUnknownType 未知消息类型
	ErrUnknownType = errors.New("framing: unknown message type")

	// ErrTruncated 帧被截断
	ErrTruncated = errors.New("framing: truncated frame")

	// ErrTrailingBytes 帧尾部有多余字节
	ErrTrailingBytes = errors.New("framing: trailing bytes")

	// ErrInvalidSequence 分片序号非法
	ErrInvalidSequence = errors.New("framing: invalid chunk sequence")

	// ErrPayloadTooLarge 负载超过最大分片数
	ErrPayloadTooLarge = errors.New("framing: payload too large")

	// ErrInvalidChunkSize 分片大小非法
	ErrInvalidChunkSize = errors.New("framing: invalid chunk size")

	// ErrMissingData Data 消息缺少数据
	ErrMissingData = errors.New("framing: data message without chunk")
)

// FramingError 帧编解码错误
type FramingError struct {
	Op    string
	Cause error
}

func (e *FramingError) Error() string {
	return e.Op + ": " + e.Cause.Error()
}

func (e *FramingError) Unwrap() error {
	return e.Cause
}

func decodeErr(cause error) error {
	return &FramingError{Op: "decode", Cause: cause}
}

func encodeErr(cause error) error {
	return &FramingError{Op: "encode", Cause: cause}
}
