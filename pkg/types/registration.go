package types

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// ============================================================================
//                              PublisherDesc - 发布器描述符
// ============================================================================

// PublisherDesc 发布器描述符
//
// 创建后不可变，name 在注册中心内唯一。
type PublisherDesc struct {
	// Name 发布器名称（注册中心的主键）
	Name string `json:"name"`

	// Host 发布器绑定的主机
	Host string `json:"host"`

	// Port 发布器绑定的 UDP 端口
	Port uint16 `json:"port"`
}

// Addr 返回 host:port 形式的地址
func (d *PublisherDesc) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(int(d.Port)))
}

// Validate 验证描述符
func (d *PublisherDesc) Validate() error {
	if d.Name == "" {
		return ErrEmptyName
	}
	if d.Host == "" {
		return ErrEmptyHost
	}
	return nil
}

// String 返回可读形式
func (d *PublisherDesc) String() string {
	return fmt.Sprintf("%s@%s", d.Name, d.Addr())
}

// Clone 返回副本
func (d *PublisherDesc) Clone() *PublisherDesc {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// ============================================================================
//                              ConnectionInfo - 租约信息
// ============================================================================

// ConnectionInfo 租约信息
//
// 由注册中心在注册时计算：LastReport = now，Expiration = now + lease。
// 只会被重新注册整体覆盖，不做局部更新。
type ConnectionInfo struct {
	// LastReport 最近一次注册时间
	LastReport *timestamppb.Timestamp `json:"last_report,omitempty"`

	// Expiration 租约过期时间
	Expiration *timestamppb.Timestamp `json:"expiration,omitempty"`
}

// NewConnectionInfo 根据注册时间和租约时长创建租约信息
func NewConnectionInfo(now time.Time, lease time.Duration) (*ConnectionInfo, error) {
	lastReport := timestamppb.New(now)
	if err := lastReport.CheckValid(); err != nil {
		return nil, err
	}
	expiration := timestamppb.New(now.Add(lease))
	if err := expiration.CheckValid(); err != nil {
		return nil, err
	}
	return &ConnectionInfo{
		LastReport: lastReport,
		Expiration: expiration,
	}, nil
}

// ============================================================================
//                              Registration - 注册记录
// ============================================================================

// Registration 注册记录
//
// 由 Registration Store 独占持有，以 Publisher.Name 为键。
type Registration struct {
	// Publisher 发布器描述符
	Publisher *PublisherDesc `json:"publisher,omitempty"`

	// Info 租约信息
	Info *ConnectionInfo `json:"info,omitempty"`
}

// Name 返回发布器名称，描述符缺失时返回空字符串
func (r *Registration) Name() string {
	if r == nil || r.Publisher == nil {
		return ""
	}
	return r.Publisher.Name
}

// ExpiresAt 返回租约过期时间
//
// 连接信息或过期时间缺失、时间戳非法时返回错误。
func (r *Registration) ExpiresAt() (time.Time, error) {
	if r.Info == nil {
		return time.Time{}, ErrNoConnectionInfo
	}
	if r.Info.Expiration == nil {
		return time.Time{}, ErrNoExpiration
	}
	if err := r.Info.Expiration.CheckValid(); err != nil {
		return time.Time{}, err
	}
	return r.Info.Expiration.AsTime(), nil
}

// IsExpired 检查租约在 now 时刻是否已过期（expiration <= now）
//
// 租约元数据缺失或非法时同样视为过期。
func (r *Registration) IsExpired(now time.Time) bool {
	exp, err := r.ExpiresAt()
	if err != nil {
		return true
	}
	return !exp.After(now)
}

// Clone 返回深拷贝
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	c := &Registration{Publisher: r.Publisher.Clone()}
	if r.Info != nil {
		c.Info = &ConnectionInfo{}
		c.Info.LastReport = cloneTimestamp(r.Info.LastReport)
		c.Info.Expiration = cloneTimestamp(r.Info.Expiration)
	}
	return c
}

func cloneTimestamp(ts *timestamppb.Timestamp) *timestamppb.Timestamp {
	if ts == nil {
		return nil
	}
	return &timestamppb.Timestamp{Seconds: ts.GetSeconds(), Nanos: ts.GetNanos()}
}
