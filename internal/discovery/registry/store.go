package registry

import (
	"regexp"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	"github.com/GabeVillalobos/post/pkg/lib/log"
	"github.com/GabeVillalobos/post/pkg/types"
)

var logger = log.Logger("registry")

// ============================================================================
//                              Store 接口
// ============================================================================

// Store 注册记录存储
//
// 以发布器名称为键，所有方法可被 RPC 处理路径和清理循环并发调用。
// 调用方保证 Insert 的 name 与 reg.Publisher.Name 一致。
type Store interface {
	// Insert 无条件写入（覆盖同名记录）
	Insert(name string, reg *types.Registration)

	// Remove 删除一条记录，不存在时返回 *NotFoundError
	Remove(name string) error

	// RemoveMany 删除所有存在的记录，再对每个缺失的名称报告 *NotFoundError
	//
	// 返回的错误满足 errors.Is(err, ErrNotFound)。
	RemoveMany(names []string) error

	// RemoveExpired 在同一临界区内删除所有 expiration <= now 的记录，返回被删除的名称
	//
	// 缺少连接信息或过期时间的记录按已过期处理。
	RemoveExpired(now time.Time) []string

	// ListAll 返回所有记录的快照，顺序无意义
	ListAll() []*types.Registration

	// Find 返回名称匹配正则 pattern 的记录
	//
	// 没有匹配时返回空切片；pattern 非法时返回 *PatternError。
	Find(pattern string) ([]*types.Registration, error)

	// Close 释放存储资源
	Close() error
}

// ============================================================================
//                              正则缓存
// ============================================================================

// defaultPatternCacheSize 编译后正则的缓存容量
const defaultPatternCacheSize = 256

// patternCache 缓存编译后的搜索正则
//
// 发布器通常以固定模式轮询搜索，缓存可避免每次请求重新编译。
type patternCache struct {
	cache *lru.Cache[string, *regexp.Regexp]
}

func newPatternCache(size int) *patternCache {
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		// 只有 size <= 0 时才会失败
		cache, _ = lru.New[string, *regexp.Regexp](defaultPatternCacheSize)
	}
	return &patternCache{cache: cache}
}

func (c *patternCache) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := c.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Cause: err}
	}
	c.cache.Add(pattern, re)
	return re, nil
}

// ============================================================================
//                              MemoryStore
// ============================================================================

// MemoryStore 内存存储
//
// 单把读写锁保护整个 map。注册以租约粒度续约，竞争很低。
type MemoryStore struct {
	mu            sync.RWMutex
	registrations map[string]*types.Registration
	patterns      *patternCache
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		registrations: make(map[string]*types.Registration),
		patterns:      newPatternCache(defaultPatternCacheSize),
	}
}

// Insert 写入或覆盖记录
func (s *MemoryStore) Insert(name string, reg *types.Registration) {
	if reg == nil || reg.Publisher == nil {
		logger.Warn("忽略缺少描述符的注册", "name", name)
		return
	}

	c := reg.Clone()

	s.mu.Lock()
	s.registrations[name] = c
	s.mu.Unlock()
}

// Remove 删除记录
func (s *MemoryStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registrations[name]; !ok {
		return &NotFoundError{Name: name}
	}
	delete(s.registrations, name)
	return nil
}

// RemoveMany 批量删除
//
// 先删除所有存在的记录，缺失的名称合并为一个错误返回，不会因第一个缺失而中止。
func (s *MemoryStore) RemoveMany(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, name := range names {
		if _, ok := s.registrations[name]; !ok {
			err = multierr.Append(err, &NotFoundError{Name: name})
			continue
		}
		delete(s.registrations, name)
	}
	return err
}

// RemoveExpired 删除已过期的记录
func (s *MemoryStore) RemoveExpired(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for name, reg := range s.registrations {
		if !reg.IsExpired(now) {
			continue
		}
		if _, err := reg.ExpiresAt(); err != nil {
			logger.Warn("注册记录缺少有效租约，按过期处理", "name", name, "error", err)
		}
		delete(s.registrations, name)
		removed = append(removed, name)
	}
	return removed
}

// ListAll 返回所有记录的快照
func (s *MemoryStore) ListAll() []*types.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*types.Registration, 0, len(s.registrations))
	for _, reg := range s.registrations {
		result = append(result, reg.Clone())
	}
	return result
}

// Find 按名称正则搜索
func (s *MemoryStore) Find(pattern string) ([]*types.Registration, error) {
	re, err := s.patterns.compile(pattern)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*types.Registration, 0)
	for name, reg := range s.registrations {
		if re.MatchString(name) {
			result = append(result, reg.Clone())
		}
	}
	return result, nil
}

// Len 返回记录数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registrations)
}

// Close 内存存储无需释放资源
func (s *MemoryStore) Close() error {
	return nil
}
