package registry

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabeVillalobos/post/pkg/types"
)

func newTestService(t *testing.T, cfg Config, opts ...Option) (*Service, *clock.Mock, *MemoryStore) {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	store := NewMemoryStore()

	svc, err := NewService(store, cfg, append([]Option{WithClock(clk)}, opts...)...)
	require.NoError(t, err)
	return svc, clk, store
}

func register(t *testing.T, svc *Service, name string) *RegistrationResponse {
	t.Helper()

	resp, err := svc.Register(&RegistrationRequest{
		Desc: &types.PublisherDesc{Name: name, Host: "127.0.0.1", Port: 7000},
	})
	require.NoError(t, err)
	return resp
}

func searchNames(t *testing.T, svc *Service, pattern string) []string {
	t.Helper()

	resp, err := svc.Search(&SearchRequest{NameRegex: pattern})
	require.NoError(t, err)
	return names(resp.List)
}

func TestNewService_Invalid(t *testing.T) {
	_, err := NewService(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilStore)

	_, err = NewService(NewMemoryStore(), Config{PublisherTimeout: 0, PublisherScanInterval: time.Second})
	assert.Error(t, err)

	_, err = NewService(NewMemoryStore(), Config{PublisherTimeout: time.Second})
	assert.Error(t, err)
}

func TestService_RegisterThenSearch(t *testing.T) {
	svc, clk, _ := newTestService(t, DefaultConfig())

	desc := &types.PublisherDesc{Name: "svc-a", Host: "10.0.0.1", Port: 4000}
	resp, err := svc.Register(&RegistrationRequest{Desc: desc})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, resp.ExpirationInterval.AsDuration())

	found, err := svc.Search(&SearchRequest{NameRegex: "svc-a"})
	require.NoError(t, err)
	require.Len(t, found.List, 1)
	assert.Equal(t, desc, found.List[0].Publisher)

	info := found.List[0].Info
	require.NotNil(t, info)
	assert.True(t, info.LastReport.AsTime().Equal(clk.Now()))
	assert.True(t, info.Expiration.AsTime().Equal(clk.Now().Add(30*time.Second)))

	assert.EqualValues(t, 1, svc.Status())
}

func TestService_RegisterMissingFields(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())

	tests := []struct {
		name      string
		req       *RegistrationRequest
		container string
		field     string
	}{
		{"nil request", nil, "Registration", "desc"},
		{"nil desc", &RegistrationRequest{}, "Registration", "desc"},
		{"empty name", &RegistrationRequest{Desc: &types.PublisherDesc{Host: "h"}}, "PublisherDesc", "name"},
		{"empty host", &RegistrationRequest{Desc: &types.PublisherDesc{Name: "n"}}, "PublisherDesc", "host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(tt.req)

			var mf *MissingFieldError
			require.ErrorAs(t, err, &mf)
			assert.Equal(t, tt.container, mf.Container)
			assert.Equal(t, tt.field, mf.Field)
		})
	}

	assert.EqualValues(t, 0, svc.Status())
}

func TestService_RegisterTimeConversion(t *testing.T) {
	svc, clk, _ := newTestService(t, DefaultConfig())

	// 超出 Timestamp 可表示范围（公元 10000 年之后）
	clk.Set(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.Register(&RegistrationRequest{
		Desc: &types.PublisherDesc{Name: "svc", Host: "h", Port: 1},
	})
	var tc *TimeConversionError
	require.ErrorAs(t, err, &tc)
	assert.EqualValues(t, 0, svc.Status())
}

func TestService_ReRegisterOverwrites(t *testing.T) {
	svc, clk, _ := newTestService(t, DefaultConfig())

	register(t, svc, "svc")
	clk.Add(10 * time.Second)

	_, err := svc.Register(&RegistrationRequest{
		Desc: &types.PublisherDesc{Name: "svc", Host: "127.0.0.2", Port: 7001},
	})
	require.NoError(t, err)

	resp, err := svc.Search(&SearchRequest{NameRegex: "^svc$"})
	require.NoError(t, err)
	require.Len(t, resp.List, 1)
	assert.Equal(t, "127.0.0.2", resp.List[0].Publisher.Host)
	assert.True(t, resp.List[0].Info.Expiration.AsTime().Equal(clk.Now().Add(30*time.Second)))
	assert.EqualValues(t, 1, svc.Status())
}

func TestService_SearchInvalidPattern(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())
	register(t, svc, "svc")

	resp, err := svc.Search(&SearchRequest{NameRegex: "(["})
	require.NoError(t, err)
	assert.NotNil(t, resp.List)
	assert.Empty(t, resp.List)

	cfg := DefaultConfig()
	cfg.RejectInvalidPatterns = true
	strict, _, _ := newTestService(t, cfg)

	_, err = strict.Search(&SearchRequest{NameRegex: "(["})
	var pe *PatternError
	assert.ErrorAs(t, err, &pe)
}

func TestService_SearchEmptyMatchesAll(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())
	register(t, svc, "a")
	register(t, svc, "b")

	assert.Equal(t, []string{"a", "b"}, searchNames(t, svc, ""))

	resp, err := svc.Search(nil)
	require.NoError(t, err)
	assert.Len(t, resp.List, 2)
}

func TestService_SweepExpired(t *testing.T) {
	cfg := Config{PublisherTimeout: 5 * time.Second, PublisherScanInterval: time.Second}
	svc, clk, store := newTestService(t, cfg)

	register(t, svc, "old")
	clk.Add(3 * time.Second)
	register(t, svc, "new")

	// 缺少租约信息的记录按过期处理
	store.Insert("broken", &types.Registration{
		Publisher: &types.PublisherDesc{Name: "broken", Host: "h"},
	})

	clk.Add(2 * time.Second)
	// old: expiration == now，视为过期
	assert.Equal(t, 2, svc.SweepExpired())
	assert.Equal(t, []string{"new"}, searchNames(t, svc, ""))

	assert.Equal(t, 0, svc.SweepExpired())
}

// renewingStore 在清理进入存储前执行 beforeSweep，模拟清理与续约交错
type renewingStore struct {
	Store
	beforeSweep func()
}

func (s *renewingStore) RemoveExpired(now time.Time) []string {
	if s.beforeSweep != nil {
		s.beforeSweep()
	}
	return s.Store.RemoveExpired(now)
}

func TestService_SweepKeepsRenewedLease(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	store := &renewingStore{Store: NewMemoryStore()}

	cfg := Config{PublisherTimeout: 5 * time.Second, PublisherScanInterval: time.Second}
	svc, err := NewService(store, cfg, WithClock(clk))
	require.NoError(t, err)

	register(t, svc, "svc-a")
	register(t, svc, "svc-b")
	clk.Add(5 * time.Second)

	// svc-a 的续约落在清理读取时间之后、删除之前
	store.beforeSweep = func() { register(t, svc, "svc-a") }

	assert.Equal(t, 1, svc.SweepExpired())
	assert.Equal(t, []string{"svc-a"}, searchNames(t, svc, "svc"))

	list, err := svc.Search(&SearchRequest{NameRegex: "svc-a"})
	require.NoError(t, err)
	require.Len(t, list.List, 1)
	exp, err := list.List[0].ExpiresAt()
	require.NoError(t, err)
	assert.True(t, exp.After(clk.Now()))
}

func TestService_Remove(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())
	register(t, svc, "svc")

	require.NoError(t, svc.Remove("svc"))
	assert.ErrorIs(t, svc.Remove("svc"), ErrNotFound)
	assert.EqualValues(t, 0, svc.Status())
}

// 租约 5s、清理周期 1s：t=4 时仍可找到，t=6 时已被清理
func TestService_LeaseExpiryScenario(t *testing.T) {
	cfg := Config{PublisherTimeout: 5 * time.Second, PublisherScanInterval: time.Second}
	svc, clk, _ := newTestService(t, cfg)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop(context.Background())

	register(t, svc, "svc-a")
	register(t, svc, "svc-b")
	before := svc.Status()
	require.EqualValues(t, 2, before)

	// svc-b 在 t=3 续约，t=8 才过期
	clk.Add(3 * time.Second)
	register(t, svc, "svc-b")

	clk.Add(time.Second)
	assert.Equal(t, []string{"svc-a"}, searchNames(t, svc, "svc-a"))

	clk.Add(2 * time.Second)
	require.Eventually(t, func() bool {
		return len(searchNames(t, svc, "svc-a")) == 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, before-1, svc.Status())
	assert.Equal(t, []string{"svc-b"}, searchNames(t, svc, "svc"))
}

func TestService_StartStop(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Stop(ctx), ErrNotStarted)
	require.NoError(t, svc.Start(ctx))
	assert.ErrorIs(t, svc.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, svc.Stop(ctx))

	// 可以重新启动
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Stop(ctx))
}

func TestService_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := Config{PublisherTimeout: 5 * time.Second, PublisherScanInterval: time.Second}
	svc, clk, _ := newTestService(t, cfg, WithMetrics(reg))

	register(t, svc, "a")
	register(t, svc, "b")
	_, _ = svc.Search(&SearchRequest{NameRegex: "a"})
	_, _ = svc.Search(&SearchRequest{NameRegex: "("})

	assert.Equal(t, 2.0, testutil.ToFloat64(svc.metrics.Registrations))
	assert.Equal(t, 2.0, testutil.ToFloat64(svc.metrics.Registers))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.Searches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.Searches.WithLabelValues("invalid")))

	clk.Add(10 * time.Second)
	svc.SweepExpired()
	assert.Equal(t, 0.0, testutil.ToFloat64(svc.metrics.Registrations))
	assert.Equal(t, 2.0, testutil.ToFloat64(svc.metrics.Expired))

	count, err := testutil.GatherAndCount(reg, "post_registry_expired_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
