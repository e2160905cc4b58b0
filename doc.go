// Package post 提供基于租约的发布器发现与 UDP 数据报扇出
//
// post 由两部分组成：
//
//   - 注册中心（Registry）：按名称保存发布器的地址和租约，周期性清理过期记录，
//     通过 JSON-RPC 提供 Status / Register / Search
//   - 发布器（Publisher）：向注册中心注册后绑定 UDP 端口，接收订阅请求，
//     把提交的负载切分为分片扇出给所有订阅者
//
// # 快速开始
//
//	// 启动注册中心
//	reg, err := post.StartRegistry(ctx, config.NewConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Stop(ctx)
//
//	// 创建发布器
//	pub, err := post.CreatePublisher(ctx, "weather", "127.0.0.1", 5555, reg.Addr())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pub.Close()
//
//	err = pub.Submit(ctx, []byte("sunny"))
package post
