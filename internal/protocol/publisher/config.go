package publisher

import (
	"errors"
	"fmt"
	"time"

	"github.com/GabeVillalobos/post/config"
	"github.com/GabeVillalobos/post/internal/protocol/framing"
	"github.com/GabeVillalobos/post/pkg/types"
)

// Config 发布器配置
type Config struct {
	// Desc 本发布器的描述符，也是 UDP 绑定地址
	Desc types.PublisherDesc

	// QueueSize 出站队列容量
	QueueSize int

	// ChunkSize 单个分片的最大字节数，0 表示 framing.MaxChunkSize
	ChunkSize int

	// ReadPollInterval 入站泵的读超时，决定检查存活标志的频率
	ReadPollInterval time.Duration

	// RenewInterval 续约周期，0 表示租约的一半
	RenewInterval time.Duration

	// RenewTimeout 单次续约请求的超时
	RenewTimeout time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		QueueSize:        1,
		ReadPollInterval: 100 * time.Millisecond,
		RenewTimeout:     5 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Desc.Validate(); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	if c.QueueSize <= 0 {
		return errors.New("publisher: queue size must be positive")
	}
	if c.ChunkSize < 0 || c.ChunkSize > framing.MaxChunkSize {
		return fmt.Errorf("publisher: chunk size must be within [0, %d]", framing.MaxChunkSize)
	}
	if c.ReadPollInterval <= 0 {
		return errors.New("publisher: read poll interval must be positive")
	}
	if c.RenewInterval < 0 {
		return errors.New("publisher: renew interval must not be negative")
	}
	return nil
}

func (c *Config) chunkSize() int {
	if c.ChunkSize == 0 {
		return framing.MaxChunkSize
	}
	return c.ChunkSize
}

// ConfigFromUnified 从统一配置和描述符创建发布器配置
func ConfigFromUnified(cfg *config.Config, desc types.PublisherDesc) Config {
	c := DefaultConfig()
	c.Desc = desc
	if cfg == nil {
		return c
	}
	c.QueueSize = cfg.Publisher.QueueSize
	c.ChunkSize = cfg.Publisher.ChunkSize
	c.ReadPollInterval = cfg.Publisher.ReadPollInterval.Duration()
	c.RenewInterval = cfg.Publisher.RenewInterval.Duration()
	return c
}
