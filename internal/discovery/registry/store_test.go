package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/GabeVillalobos/post/pkg/types"
)

func newTestRegistration(t *testing.T, name string, now time.Time, lease time.Duration) *types.Registration {
	t.Helper()

	info, err := types.NewConnectionInfo(now, lease)
	require.NoError(t, err)
	return &types.Registration{
		Publisher: &types.PublisherDesc{Name: name, Host: "127.0.0.1", Port: 9000},
		Info:      info,
	}
}

func names(regs []*types.Registration) []string {
	out := make([]string, 0, len(regs))
	for _, r := range regs {
		out = append(out, r.Name())
	}
	sort.Strings(out)
	return out
}

// storeFactories 对所有 Store 实现运行同一组用例
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"badger": func() Store { return newInMemoryBadgerStore(t, nil) },
	}
}

func TestStore_InsertFind(t *testing.T) {
	now := time.Now()
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			s.Insert("svc-a", newTestRegistration(t, "svc-a", now, time.Minute))
			s.Insert("svc-b", newTestRegistration(t, "svc-b", now, time.Minute))
			s.Insert("other", newTestRegistration(t, "other", now, time.Minute))

			found, err := s.Find("svc")
			require.NoError(t, err)
			assert.Equal(t, []string{"svc-a", "svc-b"}, names(found))

			found, err = s.Find("^svc-a$")
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, uint16(9000), found[0].Publisher.Port)

			found, err = s.Find("nomatch")
			require.NoError(t, err)
			assert.NotNil(t, found)
			assert.Empty(t, found)

			found, err = s.Find("")
			require.NoError(t, err)
			assert.Len(t, found, 3)
		})
	}
}

func TestStore_InsertOverwrites(t *testing.T) {
	now := time.Now()
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			first := newTestRegistration(t, "svc", now, time.Minute)
			second := newTestRegistration(t, "svc", now.Add(time.Second), time.Minute)
			second.Publisher.Port = 9100

			s.Insert("svc", first)
			s.Insert("svc", second)

			all := s.ListAll()
			require.Len(t, all, 1)
			assert.Equal(t, uint16(9100), all[0].Publisher.Port)
			assert.True(t, all[0].Info.LastReport.AsTime().Equal(now.Add(time.Second)))
		})
	}
}

func TestStore_InsertIgnoresEmptyDescriptor(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			s.Insert("x", nil)
			s.Insert("y", &types.Registration{})
			assert.Empty(t, s.ListAll())
		})
	}
}

func TestStore_Remove(t *testing.T) {
	now := time.Now()
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			s.Insert("svc", newTestRegistration(t, "svc", now, time.Minute))
			require.NoError(t, s.Remove("svc"))
			assert.Empty(t, s.ListAll())

			err := s.Remove("svc")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)

			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, "svc", nf.Name)
		})
	}
}

func TestStore_RemoveManyPartial(t *testing.T) {
	now := time.Now()
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			for _, n := range []string{"a", "b", "c"} {
				s.Insert(n, newTestRegistration(t, n, now, time.Minute))
			}

			// 缺失的名称不会阻止其余删除
			err := s.RemoveMany([]string{"missing-1", "a", "missing-2", "c"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)

			errs := multierr.Errors(err)
			require.Len(t, errs, 2)
			var missing []string
			for _, e := range errs {
				var nf *NotFoundError
				require.True(t, errors.As(e, &nf))
				missing = append(missing, nf.Name)
			}
			assert.Equal(t, []string{"missing-1", "missing-2"}, missing)

			assert.Equal(t, []string{"b"}, names(s.ListAll()))
		})
	}
}

func TestStore_RemoveManyAllPresent(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.Insert("a", newTestRegistration(t, "a", now, time.Minute))
	s.Insert("b", newTestRegistration(t, "b", now, time.Minute))

	require.NoError(t, s.RemoveMany([]string{"a", "b"}))
	assert.Equal(t, 0, s.Len())
	assert.NoError(t, s.RemoveMany(nil))
}

func TestStore_InvalidPattern(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Find("(unclosed")
	require.Error(t, err)

	var pe *PatternError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "(unclosed", pe.Pattern)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_RemoveExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			s.Insert("expired", newTestRegistration(t, "expired", now.Add(-10*time.Second), 5*time.Second))
			s.Insert("boundary", newTestRegistration(t, "boundary", now.Add(-5*time.Second), 5*time.Second))
			s.Insert("live", newTestRegistration(t, "live", now, 5*time.Second))
			s.Insert("broken", &types.Registration{
				Publisher: &types.PublisherDesc{Name: "broken", Host: "h"},
			})

			removed := s.RemoveExpired(now)
			sort.Strings(removed)
			assert.Equal(t, []string{"boundary", "broken", "expired"}, removed)
			assert.Equal(t, []string{"live"}, names(s.ListAll()))

			assert.Empty(t, s.RemoveExpired(now))
		})
	}
}

// 续约与清理并发：未过期的记录永远不会被清理删除
func TestStore_RemoveExpiredConcurrentRenewal(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			for i := 0; i < 10; i++ {
				n := fmt.Sprintf("svc-%d", i)
				s.Insert(n, newTestRegistration(t, n, now.Add(-time.Minute), time.Second))
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 10; i++ {
					n := fmt.Sprintf("svc-%d", i)
					s.Insert(n, newTestRegistration(t, n, now, time.Minute))
				}
			}()
			for i := 0; i < 20; i++ {
				s.RemoveExpired(now)
			}
			wg.Wait()
			s.RemoveExpired(now)

			assert.Len(t, s.ListAll(), 10)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	reg := newTestRegistration(t, "svc", time.Now(), time.Minute)
	s.Insert("svc", reg)

	// 修改调用方持有的对象不影响存储
	reg.Publisher.Host = "mutated"
	all := s.ListAll()
	require.Len(t, all, 1)
	assert.Equal(t, "127.0.0.1", all[0].Publisher.Host)

	all[0].Publisher.Host = "mutated"
	found, err := s.Find("svc")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", found[0].Publisher.Host)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n := fmt.Sprintf("svc-%d-%d", i, j%10)
				s.Insert(n, newTestRegistration(t, n, now, time.Minute))
				_, _ = s.Find("svc-")
				_ = s.ListAll()
				_ = s.Remove(n)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, s.Len())
}

func TestPatternCache_Reuses(t *testing.T) {
	c := newPatternCache(2)

	re1, err := c.compile("abc")
	require.NoError(t, err)
	re2, err := c.compile("abc")
	require.NoError(t, err)
	assert.Same(t, re1, re2)

	_, err = c.compile("[")
	assert.Error(t, err)
	assert.Equal(t, 1, c.cache.Len())

	// size <= 0 回退到默认容量
	assert.NotNil(t, newPatternCache(0).cache)
}
