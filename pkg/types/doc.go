// Package types 定义 post 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯数据结构，用于在注册中心、发布器和 RPC 层之间传递数据。
//
// # 文件组织
//
//   - registration.go - PublisherDesc, ConnectionInfo, Registration
//   - generation.go   - Generation 发送批次编号
//   - errors.go       - 公共错误定义
//
// # 时间字段
//
// ConnectionInfo 使用 protobuf 的 Timestamp 表示时间点，
// 字段为 nil 表示租约元数据缺失，注册中心清理时按已过期处理。
package types
