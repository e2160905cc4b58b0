package config

import (
	"fmt"
	"time"
)

// PublisherConfig 发布器配置
type PublisherConfig struct {
	// QueueSize 出站队列容量，队列满时提交进入背压状态
	// 默认值: 1
	QueueSize int `json:"queue_size"`

	// ChunkSize 单个数据分片的最大字节数，0 表示使用协议默认值
	ChunkSize int `json:"chunk_size"`

	// ReadPollInterval 入站泵检查存活标志的周期
	// 默认值: 100ms
	ReadPollInterval Duration `json:"read_poll_interval"`

	// RenewInterval 租约续约周期，0 表示使用注册中心返回租约的一半
	RenewInterval Duration `json:"renew_interval"`
}

// DefaultPublisherConfig 返回默认发布器配置
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		QueueSize:        1,
		ReadPollInterval: Duration(100 * time.Millisecond),
	}
}

// Validate 验证发布器配置
func (c *PublisherConfig) Validate() error {
	if c.QueueSize <= 0 {
		return fmt.Errorf("publisher: queue_size must be positive, got %d", c.QueueSize)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("publisher: chunk_size must not be negative, got %d", c.ChunkSize)
	}
	if c.ReadPollInterval <= 0 {
		return fmt.Errorf("publisher: read_poll_interval must be positive")
	}
	if c.RenewInterval < 0 {
		return fmt.Errorf("publisher: renew_interval must not be negative")
	}
	return nil
}
