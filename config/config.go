// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义：
//   - Registry: 注册中心（租约时长、清理周期、RPC 监听地址）
//   - Storage: 注册记录存储引擎（memory / badger）
//   - Publisher: 发布器（队列容量、分片大小、续约周期）
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Registry.PublisherTimeout = config.Duration(5 * time.Second)
//
//	// 从 JSON 文件加载
//	cfg, err := config.LoadFile("meetup.json")
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config 是 post 的完整配置结构
type Config struct {
	// Registry 注册中心配置
	Registry RegistryConfig `json:"registry"`

	// Storage 存储配置
	Storage StorageConfig `json:"storage"`

	// Publisher 发布器配置
	Publisher PublisherConfig `json:"publisher"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Registry:  DefaultRegistryConfig(),
		Storage:   DefaultStorageConfig(),
		Publisher: DefaultPublisherConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.Publisher.Validate()
}

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
//	{
//	  "registry": {"publisher_timeout": "5s", "publisher_scan_interval": "1s"},
//	  "storage": {"engine": "badger", "data_dir": "./data"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return nil, err
	}
	return FromJSON(data)
}
