package config

import (
	"fmt"
	"time"
)

// RegistryConfig 注册中心配置
type RegistryConfig struct {
	// ListenAddr JSON-RPC 监听地址
	// 默认值: "127.0.0.1:7070"
	ListenAddr string `json:"listen_addr"`

	// PublisherTimeout 每次注册授予的租约时长
	// 默认值: 30s
	PublisherTimeout Duration `json:"publisher_timeout"`

	// PublisherScanInterval 过期清理周期
	// 默认值: 5s
	PublisherScanInterval Duration `json:"publisher_scan_interval"`

	// RejectInvalidPatterns 为 true 时 Search 对非法正则返回错误，
	// 否则返回空列表
	RejectInvalidPatterns bool `json:"reject_invalid_patterns"`

	// EnableMetrics 是否在 /metrics 暴露 Prometheus 指标
	EnableMetrics bool `json:"enable_metrics"`
}

// DefaultRegistryConfig 返回默认注册中心配置
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ListenAddr:            "127.0.0.1:7070",
		PublisherTimeout:      Duration(30 * time.Second),
		PublisherScanInterval: Duration(5 * time.Second),
		EnableMetrics:         true,
	}
}

// Validate 验证注册中心配置
func (c *RegistryConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("registry: listen_addr cannot be empty")
	}
	if c.PublisherTimeout <= 0 {
		return fmt.Errorf("registry: publisher_timeout must be positive, got %s", c.PublisherTimeout)
	}
	if c.PublisherScanInterval <= 0 {
		return fmt.Errorf("registry: publisher_scan_interval must be positive, got %s", c.PublisherScanInterval)
	}
	return nil
}
