package registry

import (
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/GabeVillalobos/post/pkg/types"
)

// ============================================================================
//                              请求 / 响应
// ============================================================================

// StatusRequest 状态查询请求
type StatusRequest struct{}

// StatusResponse 状态查询响应
type StatusResponse struct {
	// Count 当前注册的发布器数量
	Count uint64 `json:"count"`
}

// RegistrationRequest 注册请求
type RegistrationRequest struct {
	Desc *types.PublisherDesc `json:"desc,omitempty"`
}

// RegistrationResponse 注册响应
type RegistrationResponse struct {
	// ExpirationInterval 授予的租约时长
	ExpirationInterval *durationpb.Duration `json:"expiration_interval,omitempty"`
}

// SearchRequest 搜索请求
type SearchRequest struct {
	// NameRegex 名称正则（非锚定匹配，空串匹配全部）
	NameRegex string `json:"name_regex"`
}

// SearchResponse 搜索响应
type SearchResponse struct {
	List []*types.Registration `json:"list"`
}
