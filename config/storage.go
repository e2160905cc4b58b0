package config

import (
	"fmt"
	"path/filepath"
)

// 存储引擎名称
const (
	// EngineMemory 内存存储（默认，进程退出即丢失）
	EngineMemory = "memory"

	// EngineBadger BadgerDB 持久化存储
	EngineBadger = "badger"
)

// StorageConfig 存储配置
//
// 数据目录结构（engine = badger）：
//
//	${DataDir}/
//	└── registry.db/        # BadgerDB 注册记录库
type StorageConfig struct {
	// Engine 存储引擎: memory 或 badger
	// 默认值: "memory"
	Engine string `json:"engine"`

	// DataDir 数据目录路径
	// 默认值: "./data"
	DataDir string `json:"data_dir"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Engine:  EngineMemory,
		DataDir: "./data",
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	switch c.Engine {
	case EngineMemory:
		return nil
	case EngineBadger:
		if c.DataDir == "" {
			return fmt.Errorf("storage: data_dir cannot be empty for badger engine")
		}
		return nil
	default:
		return fmt.Errorf("storage: unknown engine %q", c.Engine)
	}
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "registry.db")
}
