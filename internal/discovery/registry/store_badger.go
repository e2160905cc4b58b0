package registry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/GabeVillalobos/post/pkg/types"
)

// keyPrefix 注册记录键前缀
const keyPrefix = "r/"

// ============================================================================
//                              持久化格式
// ============================================================================

// persistedRegistration 持久化的注册记录格式
//
// 时间以 Unix 纳秒保存，0 表示字段缺失。
type persistedRegistration struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	Port         uint16 `json:"port"`
	LastReportNs int64  `json:"last_report_ns,omitempty"`
	ExpiresAtNs  int64  `json:"expires_at_ns,omitempty"`
}

func toPersisted(reg *types.Registration) *persistedRegistration {
	p := &persistedRegistration{
		Name: reg.Publisher.Name,
		Host: reg.Publisher.Host,
		Port: reg.Publisher.Port,
	}
	if reg.Info != nil {
		if reg.Info.LastReport != nil {
			p.LastReportNs = reg.Info.LastReport.AsTime().UnixNano()
		}
		if reg.Info.Expiration != nil {
			p.ExpiresAtNs = reg.Info.Expiration.AsTime().UnixNano()
		}
	}
	return p
}

func fromPersisted(p *persistedRegistration) *types.Registration {
	reg := &types.Registration{
		Publisher: &types.PublisherDesc{Name: p.Name, Host: p.Host, Port: p.Port},
	}
	if p.LastReportNs != 0 || p.ExpiresAtNs != 0 {
		reg.Info = &types.ConnectionInfo{}
		if p.LastReportNs != 0 {
			reg.Info.LastReport = timestamppb.New(time.Unix(0, p.LastReportNs))
		}
		if p.ExpiresAtNs != 0 {
			reg.Info.Expiration = timestamppb.New(time.Unix(0, p.ExpiresAtNs))
		}
	}
	return reg
}

// ============================================================================
//                              BadgerStore 实现
// ============================================================================

// BadgerStore BadgerDB 存储实现
//
// 键格式: r/{name}
// 值格式: JSON 序列化的 persistedRegistration
//
// 读路径全部走内存索引。写路径在 mu 内先写 BadgerDB 再更新索引，
// 磁盘与索引对同一名称的修改顺序一致。
// 重启后注册中心保留未过期的注册，已过期的记录在加载时丢弃。
type BadgerStore struct {
	db    *badger.DB
	index *MemoryStore
	clock clock.Clock

	// mu 串行化写路径，保护 closed
	mu     sync.Mutex
	closed bool
}

// OpenBadgerStore 在 path 打开（或创建）BadgerDB 存储
func OpenBadgerStore(path string, clk clock.Clock) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(&badgerLogger{})
	return OpenBadgerStoreWithOptions(opts, clk)
}

// OpenBadgerStoreWithOptions 使用自定义 BadgerDB 选项打开存储
//
// 测试中可传入 badger.DefaultOptions("").WithInMemory(true)。
func OpenBadgerStoreWithOptions(opts badger.Options, clk clock.Clock) (*BadgerStore, error) {
	if clk == nil {
		clk = clock.New()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &BadgerStore{
		db:    db,
		index: NewMemoryStore(),
		clock: clk,
	}

	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// load 从 BadgerDB 加载数据到内存索引
func (s *BadgerStore) load() error {
	now := s.clock.Now()
	var stale [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)

			var p persistedRegistration
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil || p.Name == "" {
				// 跳过损坏的数据
				logger.Warn("跳过损坏的注册记录", "key", string(key), "error", err)
				stale = append(stale, key)
				continue
			}

			reg := fromPersisted(&p)
			if reg.IsExpired(now) {
				stale = append(stale, key)
				continue
			}
			s.index.Insert(p.Name, reg)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load registrations: %w", err)
	}

	if len(stale) > 0 {
		err = s.db.Update(func(txn *badger.Txn) error {
			for _, key := range stale {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logger.Warn("清除失效注册记录失败", "error", err)
		}
	}

	logger.Debug("注册记录已加载", "count", s.index.Len(), "purged", len(stale))
	return nil
}

func makeKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// Insert 写入或覆盖记录
//
// BadgerDB 写入失败时只记录日志，内存索引仍然更新，注册中心继续服务。
func (s *BadgerStore) Insert(name string, reg *types.Registration) {
	if reg == nil || reg.Publisher == nil {
		logger.Warn("忽略缺少描述符的注册", "name", name)
		return
	}
	data, err := json.Marshal(toPersisted(reg))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		logger.Warn("存储已关闭，忽略写入", "name", name)
		return
	}

	if err == nil {
		err = s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(makeKey(name), data)
		})
	}
	if err != nil {
		logger.Warn("持久化注册记录失败", "name", name, "error", err)
	}

	s.index.Insert(name, reg)
}

// Remove 删除记录
func (s *BadgerStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := s.index.Remove(name); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(makeKey(name))
	})
}

// RemoveMany 批量删除，语义与 MemoryStore.RemoveMany 相同
func (s *BadgerStore) RemoveMany(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	indexErr := s.index.RemoveMany(names)
	return multierr.Append(indexErr, s.deleteKeys(names))
}

// RemoveExpired 删除已过期的记录，索引与磁盘在同一临界区内更新
func (s *BadgerStore) RemoveExpired(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	removed := s.index.RemoveExpired(now)
	if err := s.deleteKeys(removed); err != nil {
		logger.Warn("删除过期注册记录失败", "count", len(removed), "error", err)
	}
	return removed
}

func (s *BadgerStore) deleteKeys(names []string) error {
	if len(names) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, name := range names {
			if err := txn.Delete(makeKey(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAll 返回所有记录的快照
func (s *BadgerStore) ListAll() []*types.Registration {
	return s.index.ListAll()
}

// Find 按名称正则搜索
func (s *BadgerStore) Find(pattern string) ([]*types.Registration, error) {
	return s.index.Find(pattern)
}

// Len 返回记录数
func (s *BadgerStore) Len() int {
	return s.index.Len()
}

// Close 关闭 BadgerDB
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ============================================================================
//                              日志适配
// ============================================================================

// badgerLogger 适配器：将 badger.Logger 转发到组件日志
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...), "source", "badger")
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...), "source", "badger")
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...), "source", "badger")
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...), "source", "badger")
}
