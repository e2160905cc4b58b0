// Package main 提供发现注册中心守护进程
//
// 使用方法:
//
//	meetup -listen 0.0.0.0:8080 -publisher-timeout 30s -scan-interval 5s
//
// 持久化注册记录:
//
//	meetup -engine badger -data-dir ./data
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/GabeVillalobos/post"
	"github.com/GabeVillalobos/post/config"
	"github.com/GabeVillalobos/post/pkg/lib/log"
)

var logger = log.Logger("post/cmd/meetup")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
// 优先级（从高到低）：命令行参数 > 环境变量 > 配置文件 > 默认值
var (
	configFile       = flag.String("config", "", "配置文件路径（JSON）")
	listenAddr       = flag.String("listen", "", "RPC 监听地址（默认 0.0.0.0:8080）")
	publisherTimeout = flag.Duration("publisher-timeout", 0, "发布器租约时长（默认 30s）")
	scanInterval     = flag.Duration("scan-interval", 0, "过期清理周期（默认 5s）")
	engine           = flag.String("engine", "", "存储引擎 memory/badger")
	dataDir          = flag.String("data-dir", "", "数据目录（badger 引擎）")
	rejectPatterns   = flag.Bool("reject-invalid-patterns", false, "Search 对非法正则返回错误")
	verboseFx        = flag.Bool("verbose-fx", false, "输出依赖注入日志")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	reg, err := post.NewRegistryApp(cfg, post.WithVerboseFx(*verboseFx))
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), post.DefaultStartTimeout)
	defer cancel()
	if err := reg.Start(startCtx); err != nil {
		return err
	}

	logger.Info("注册中心已启动",
		"addr", reg.Addr(),
		"lease", cfg.Registry.PublisherTimeout.String(),
		"scan", cfg.Registry.PublisherScanInterval.String(),
		"engine", cfg.Storage.Engine)
	fmt.Printf("注册中心已启动: %s，按 Ctrl+C 退出\n", reg.Addr())

	sig := <-reg.Done()
	fmt.Printf("\n收到信号 %v，正在关闭...\n", sig.Signal)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), post.DefaultStopTimeout)
	defer stopCancel()
	return reg.Stop(stopCtx)
}

// buildConfig 合并配置文件、环境变量和命令行参数
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if isFlagSet("listen") {
		cfg.Registry.ListenAddr = *listenAddr
	}
	if isFlagSet("publisher-timeout") {
		cfg.Registry.PublisherTimeout = config.Duration(*publisherTimeout)
	}
	if isFlagSet("scan-interval") {
		cfg.Registry.PublisherScanInterval = config.Duration(*scanInterval)
	}
	if isFlagSet("engine") {
		cfg.Storage.Engine = *engine
	}
	if isFlagSet("data-dir") {
		cfg.Storage.DataDir = *dataDir
	}
	if isFlagSet("reject-invalid-patterns") {
		cfg.Registry.RejectInvalidPatterns = *rejectPatterns
	}

	return cfg, cfg.Validate()
}

// 环境变量名
const (
	envListenAddr       = "POST_REGISTRY_LISTEN"
	envPublisherTimeout = "POST_PUBLISHER_TIMEOUT"
	envScanInterval     = "POST_SCAN_INTERVAL"
	envDataDir          = "POST_DATA_DIR"
)

// applyEnvOverrides 应用环境变量覆盖，无法解析的值记录后忽略
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envListenAddr); v != "" {
		cfg.Registry.ListenAddr = v
	}
	if v := os.Getenv(envPublisherTimeout); v != "" {
		if d, err := config.ParseDuration(v); err == nil {
			cfg.Registry.PublisherTimeout = d
		} else {
			logger.Warn("忽略无效的环境变量", "name", envPublisherTimeout, "value", v)
		}
	}
	if v := os.Getenv(envScanInterval); v != "" {
		if d, err := config.ParseDuration(v); err == nil {
			cfg.Registry.PublisherScanInterval = d
		} else {
			logger.Warn("忽略无效的环境变量", "name", envScanInterval, "value", v)
		}
	}
	if v := os.Getenv(envDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
