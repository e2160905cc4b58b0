// Package framing 实现发布器与订阅者之间的数据报帧格式
//
// # 帧格式
//
//	Subscribe   : [0x01]
//	Unsubscribe : [0x02]
//	Data        : [0x03][uvarint generation][uvarint seq][uvarint total][uvarint len][chunk]
//
// 整数字段使用 multiformats 无符号 varint 编码。
// 一个负载被切分为 total 个分片，seq 从 0 开始；分片重组由接收方负责。
//
// # 错误处理
//
// 无法识别或被截断的帧返回 *FramingError，调用方应记录日志并丢弃该数据报，
// 不影响其他数据报。
package framing
