package types

import "errors"

// ============================================================================
//                              描述符错误
// ============================================================================

var (
	// ErrEmptyName 发布器名称为空
	ErrEmptyName = errors.New("publisher name is empty")

	// ErrEmptyHost 发布器主机为空
	ErrEmptyHost = errors.New("publisher host is empty")

	// ErrNoConnectionInfo 注册记录缺少连接信息
	ErrNoConnectionInfo = errors.New("registration has no connection info")

	// ErrNoExpiration 连接信息缺少过期时间
	ErrNoExpiration = errors.New("connection info has no expiration")
)
