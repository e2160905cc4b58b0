package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/GabeVillalobos/post/pkg/types"
)

const (
	defaultMaxRetries    = 3
	defaultRetryBaseWait = 200 * time.Millisecond
	defaultClientTimeout = 10 * time.Second
)

// ============================================================================
//                              Client
// ============================================================================

// Client 注册中心 JSON-RPC 客户端
type Client struct {
	endpoint      string
	httpClient    *http.Client
	maxRetries    int
	retryBaseWait time.Duration
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetries 设置传输错误的重试次数与退避基数
func WithRetries(maxRetries int, baseWait time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if baseWait > 0 {
			c.retryBaseWait = baseWait
		}
	}
}

// NewClient 创建客户端
//
// addr 可以是 host:port 或完整的 http(s) URL，缺少路径时补全为 RPCPath。
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:      normalizeEndpoint(addr),
		httpClient:    &http.Client{Timeout: defaultClientTimeout},
		maxRetries:    defaultMaxRetries,
		retryBaseWait: defaultRetryBaseWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalizeEndpoint(addr string) string {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	rest := addr[strings.Index(addr, "://")+3:]
	if !strings.Contains(rest, "/") {
		addr += RPCPath
	}
	return addr
}

// Endpoint 返回 RPC 端点 URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Status 查询注册数量
func (c *Client) Status(ctx context.Context) (uint64, error) {
	var reply StatusResponse
	if err := c.call(ctx, MethodServerStatus, &StatusRequest{}, &reply); err != nil {
		return 0, err
	}
	return reply.Count, nil
}

// Register 注册或续约发布器，返回注册中心授予的租约时长
func (c *Client) Register(ctx context.Context, desc *types.PublisherDesc) (time.Duration, error) {
	var reply RegistrationResponse
	if err := c.call(ctx, MethodPublisherRegister, &RegistrationRequest{Desc: desc}, &reply); err != nil {
		return 0, err
	}
	if reply.ExpirationInterval == nil {
		return 0, &MissingFieldError{Container: "RegistrationResponse", Field: "expiration_interval"}
	}
	if err := reply.ExpirationInterval.CheckValid(); err != nil {
		return 0, &TimeConversionError{Cause: err}
	}
	return reply.ExpirationInterval.AsDuration(), nil
}

// Search 按名称正则搜索发布器
func (c *Client) Search(ctx context.Context, pattern string) ([]*types.Registration, error) {
	var reply SearchResponse
	if err := c.call(ctx, MethodGetPublishers, &SearchRequest{NameRegex: pattern}, &reply); err != nil {
		return nil, err
	}
	if reply.List == nil {
		return []*types.Registration{}, nil
	}
	return reply.List, nil
}

// call 发送 JSON-RPC 请求，传输层的瞬时错误按指数退避重试
func (c *Client) call(ctx context.Context, method string, params, reply interface{}) error {
	body, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() == nil && isRetryableError(err) {
				logger.Debug("注册中心请求失败，重试",
					"method", method, "attempt", attempt+1, "error", err)
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}

		err = decodeResponse(resp, reply)
		cleanlyCloseBody(resp.Body)
		return err
	}

	return fmt.Errorf("failed to issue request after %d attempts: %w", c.maxRetries, lastErr)
}

func decodeResponse(resp *http.Response, reply interface{}) error {
	// 服务端错误可能以 400 返回，同样携带 JSON-RPC 错误体
	if resp.StatusCode != http.StatusBadRequest && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return fmt.Errorf("received status code: %d", resp.StatusCode)
	}

	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			return fromRPCError(rpcErr)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// fromRPCError 根据错误数据还原类型化错误
func fromRPCError(e *json2.Error) error {
	var data errorData
	if e.Data != nil {
		if raw, err := json.Marshal(e.Data); err == nil {
			_ = json.Unmarshal(raw, &data)
		}
	}

	switch data.Kind {
	case errKindMissingField:
		return &MissingFieldError{Container: data.Container, Field: data.Field}
	case errKindPattern:
		return &PatternError{Pattern: data.Pattern, Cause: errors.New(e.Message)}
	case errKindTimeConversion:
		return &TimeConversionError{Cause: errors.New(e.Message)}
	case errKindNotFound:
		return &NotFoundError{Name: data.Name}
	default:
		return &RemoteError{Code: int(e.Code), Message: e.Message}
	}
}

// isRetryableError 是否为值得重试的瞬时传输错误
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe")
}

// cleanlyCloseBody 读尽并关闭响应体，以便连接复用
func cleanlyCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
