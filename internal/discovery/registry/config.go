package registry

import (
	"errors"
	"time"

	"github.com/GabeVillalobos/post/config"
)

// Config 注册中心服务配置
type Config struct {
	// PublisherTimeout 每次注册授予的租约时长
	PublisherTimeout time.Duration

	// PublisherScanInterval 过期清理周期
	PublisherScanInterval time.Duration

	// RejectInvalidPatterns 为 true 时 Search 对非法正则返回 *PatternError
	RejectInvalidPatterns bool
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		PublisherTimeout:      30 * time.Second,
		PublisherScanInterval: 5 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.PublisherTimeout <= 0 {
		return errors.New("publisher timeout must be positive")
	}
	if c.PublisherScanInterval <= 0 {
		return errors.New("publisher scan interval must be positive")
	}
	return nil
}

// ConfigFromUnified 从统一配置创建注册中心配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		PublisherTimeout:      cfg.Registry.PublisherTimeout.Duration(),
		PublisherScanInterval: cfg.Registry.PublisherScanInterval.Duration(),
		RejectInvalidPatterns: cfg.Registry.RejectInvalidPatterns,
	}
}
