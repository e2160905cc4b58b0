// Package publisher 实现 UDP 数据报扇出发布器
//
// # 架构定位
//
// - 依赖: internal/protocol/framing, internal/discovery/registry（经由 Registrar 接口）
// - 传输: 单个 UDP 套接字（net.PacketConn）
//
// # 生命周期
//
// 构造分两阶段：先向注册中心注册描述符，成功后才绑定 UDP 端口并启动后台任务：
//
//  1. 入站泵 - 读取 Subscribe / Unsubscribe 控制消息，维护订阅者集合
//  2. 出站泵 - 按顺序把出站队列中的数据报写入套接字
//  3. 续约循环 - 在租约过期前重新注册
//
// # 发送语义
//
// 一次提交把负载切分为分片，与订阅者快照做笛卡尔积（分片在外层，订阅者在内层），
// 逐个放入有界出站队列。上一次提交尚未全部入队时，新提交返回 ErrBackpressure。
// 整个矩阵被队列接受后批次号才加一。
//
// 使用示例:
//
//	pub, err := publisher.New(ctx, cfg, registry.NewClient("127.0.0.1:7070"))
//	if err != nil {
//	    return err
//	}
//	defer pub.Close()
//
//	if err := pub.Submit(ctx, payload); err != nil {
//	    return err
//	}
package publisher
