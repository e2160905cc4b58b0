package publisher

import (
	"context"
	"time"

	"github.com/GabeVillalobos/post/pkg/types"
)

//go:generate mockgen -source=registrar.go -destination=mock_registrar_test.go -package=publisher

// Registrar 注册中心客户端
//
// registry.Client 实现此接口。
type Registrar interface {
	// Register 注册或续约，返回注册中心授予的租约时长
	Register(ctx context.Context, desc *types.PublisherDesc) (time.Duration, error)
}
