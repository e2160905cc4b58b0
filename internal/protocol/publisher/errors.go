package publisher

import "errors"

var (
	// ErrBackpressure 上一次提交尚未全部入队，调用方应稍后重试
	ErrBackpressure = errors.New("publisher: submission pending")

	// ErrClosed 发布器已关闭或出站泵已停止
	ErrClosed = errors.New("publisher: closed")

	// ErrFlushing 另一个调用方正在排空同一次提交
	ErrFlushing = errors.New("publisher: flush in progress")

	// ErrNilRegistrar 未提供注册中心客户端
	ErrNilRegistrar = errors.New("publisher: registrar is nil")
)
