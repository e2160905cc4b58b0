// Package main 提供命令行发布器
//
// 向注册中心注册后，把标准输入的每一行作为一次负载扇出给所有订阅者。
//
// 使用方法:
//
//	tail -f app.log | post-publish -name applog -host 127.0.0.1 -port 5555 -registry 127.0.0.1:8080
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GabeVillalobos/post"
	"github.com/GabeVillalobos/post/config"
	"github.com/GabeVillalobos/post/pkg/lib/log"
)

var logger = log.Logger("post/cmd/publish")

var (
	name         = flag.String("name", "", "发布器名称（必填）")
	host         = flag.String("host", "127.0.0.1", "发布器绑定地址")
	port         = flag.Uint("port", 0, "发布器 UDP 端口（0 = 随机端口）")
	registryAddr = flag.String("registry", "127.0.0.1:8080", "注册中心地址")
	configFile   = flag.String("config", "", "配置文件路径（JSON，读取 publisher 段）")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *name == "" {
		return fmt.Errorf("必须指定 -name")
	}
	if *port > 65535 {
		return fmt.Errorf("端口超出范围: %d", *port)
	}

	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, err := post.CreatePublisher(ctx, *name, *host, uint16(*port), *registryAddr, post.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("创建发布器失败: %w", err)
	}
	defer func() { _ = pub.Close() }()

	logger.Info("发布器已启动", "name", *name, "addr", pub.LocalAddr().String(), "lease", pub.Lease())

	lines := make(chan []byte)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("读取标准输入失败", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("收到退出信号，正在关闭发布器")
			return nil
		case line, ok := <-lines:
			if !ok {
				return pub.Flush(ctx)
			}
			if err := pub.Submit(ctx, line); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("提交负载失败", "error", err, "size", len(line))
			}
		}
	}
}
