// Package registry 实现基于租约的发布器注册中心
//
// # 组件
//
//   - Store: 可插拔的注册记录存储（MemoryStore / BadgerStore）
//   - Service: Status / Register / Search 操作与后台过期清理
//   - Server / Client: JSON-RPC 2.0 over HTTP 传输（服务名 FindMe）
//   - Module: Fx 模块，装配以上组件并管理生命周期
//
// # 租约
//
// 每次 Register 都以发布器名称为键覆盖写入一条记录：
//
//	last_report = now
//	expiration  = now + publisher_timeout
//
// 清理循环每隔 publisher_scan_interval 扫描一次存储，移除所有
// expiration <= now 的记录。缺少租约元数据的记录会记录日志并按过期处理。
//
// # 使用示例
//
//	store := registry.NewMemoryStore()
//	svc, err := registry.NewService(store, registry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	svc.Start(ctx)
//	defer svc.Stop()
//
//	resp, err := svc.Register(ctx, &registry.RegistrationRequest{Desc: desc})
package registry
