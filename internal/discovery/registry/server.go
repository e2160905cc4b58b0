package registry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RPC 路由与方法名
const (
	// RPCPath JSON-RPC 端点路径
	RPCPath = "/rpc"

	// MetricsPath Prometheus 指标路径
	MetricsPath = "/metrics"

	// ServiceName JSON-RPC 服务名
	ServiceName = "FindMe"

	MethodServerStatus      = ServiceName + ".ServerStatus"
	MethodPublisherRegister = ServiceName + ".PublisherRegister"
	MethodGetPublishers     = ServiceName + ".GetPublishers"
)

// 错误数据中的 kind 取值
const (
	errKindMissingField   = "missing_field"
	errKindPattern        = "pattern"
	errKindTimeConversion = "time_conversion"
	errKindNotFound       = "not_found"
)

// errorData JSON-RPC 错误的 data 字段
type errorData struct {
	Kind      string `json:"kind"`
	Container string `json:"container,omitempty"`
	Field     string `json:"field,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Name      string `json:"name,omitempty"`
}

// ============================================================================
//                              FindMe 处理器
// ============================================================================

// FindMe JSON-RPC 处理器，方法名即线上的 FindMe.<Method>
type FindMe struct {
	svc *Service
}

// NewFindMe 创建处理器
func NewFindMe(svc *Service) *FindMe {
	return &FindMe{svc: svc}
}

// ServerStatus 返回注册数量
func (h *FindMe) ServerStatus(_ *http.Request, _ *StatusRequest, reply *StatusResponse) error {
	reply.Count = h.svc.Status()
	return nil
}

// PublisherRegister 注册或续约发布器
func (h *FindMe) PublisherRegister(_ *http.Request, args *RegistrationRequest, reply *RegistrationResponse) error {
	resp, err := h.svc.Register(args)
	if err != nil {
		return toRPCError(err)
	}
	*reply = *resp
	return nil
}

// GetPublishers 按名称正则搜索
func (h *FindMe) GetPublishers(_ *http.Request, args *SearchRequest, reply *SearchResponse) error {
	resp, err := h.svc.Search(args)
	if err != nil {
		return toRPCError(err)
	}
	*reply = *resp
	return nil
}

// toRPCError 将服务错误映射为 JSON-RPC 错误
func toRPCError(err error) *json2.Error {
	var (
		mf *MissingFieldError
		pe *PatternError
		tc *TimeConversionError
		nf *NotFoundError
	)
	switch {
	case errors.As(err, &mf):
		return &json2.Error{
			Code:    json2.E_BAD_PARAMS,
			Message: err.Error(),
			Data:    errorData{Kind: errKindMissingField, Container: mf.Container, Field: mf.Field},
		}
	case errors.As(err, &pe):
		return &json2.Error{
			Code:    json2.E_BAD_PARAMS,
			Message: err.Error(),
			Data:    errorData{Kind: errKindPattern, Pattern: pe.Pattern},
		}
	case errors.As(err, &tc):
		return &json2.Error{
			Code:    json2.E_INTERNAL,
			Message: err.Error(),
			Data:    errorData{Kind: errKindTimeConversion},
		}
	case errors.As(err, &nf):
		return &json2.Error{
			Code:    json2.E_SERVER,
			Message: err.Error(),
			Data:    errorData{Kind: errKindNotFound, Name: nf.Name},
		}
	default:
		return &json2.Error{Code: json2.E_SERVER, Message: err.Error()}
	}
}

// ============================================================================
//                              HTTP 服务器
// ============================================================================

// Server 注册中心 HTTP 服务器
//
// RPCPath 提供 JSON-RPC 2.0，gatherer 非空时 MetricsPath 提供 Prometheus 指标。
type Server struct {
	addr    string
	handler http.Handler

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer 创建服务器
func NewServer(addr string, svc *Service, gatherer prometheus.Gatherer) (*Server, error) {
	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json")
	if err := rpcServer.RegisterService(NewFindMe(svc), ServiceName); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(RPCPath, rpcServer)
	if gatherer != nil {
		mux.Handle(MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return &Server{addr: addr, handler: mux}, nil
}

// Handler 返回 HTTP 处理器（测试中配合 httptest 使用）
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start 绑定监听地址并在后台提供服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("注册中心服务器异常退出", "error", err)
		}
	}(s.srv, s.done)

	logger.Info("注册中心服务器开始监听", "addr", ln.Addr().String())
	return nil
}

// Stop 优雅关闭服务器
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return ErrNotStarted
	}

	err := srv.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

// Addr 返回实际监听地址，未启动时返回配置地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
