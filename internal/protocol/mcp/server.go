package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tagentacle/go-sdk/pkg/interfaces"
)

// DefaultServerTimeout 引擎响应单个请求的默认时限
const DefaultServerTimeout = 30 * time.Second

// ServerOptions 服务端会话选项
type ServerOptions struct {
	// Timeout 等待引擎响应的时限
	Timeout time.Duration

	// DisableTraffic 不向 TrafficTopic 镜像流量
	DisableTraffic bool
}

// exchange 一次等待引擎响应的请求
type exchange struct {
	original json.RawMessage
	reply    chan json.RawMessage
}

// ServerSession 将本节点的 /mcp/{self}/rpc 服务交给 MCP 引擎处理
type ServerSession struct {
	id      string
	bus     interfaces.Bus
	service string
	opts    ServerOptions
	inbox   *inbox
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	counter uint64
	waiting map[string]*exchange

	closeOnce sync.Once
	closeErr  error
}

var _ Stream = (*ServerSession)(nil)

// Serve 注册 MCP 服务并返回服务端会话
func Serve(ctx context.Context, bus interfaces.Bus, opts ServerOptions) (*ServerSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultServerTimeout
	}

	s := &ServerSession{
		id:      uuid.NewString(),
		bus:     bus,
		service: ServiceName(bus.NodeID()),
		opts:    opts,
		inbox:   newInbox(),
		done:    make(chan struct{}),
		waiting: make(map[string]*exchange),
	}
	if err := bus.Service(s.service, s.handle); err != nil {
		return nil, fmt.Errorf("register %s: %w", s.service, err)
	}
	logger.Info("MCP 服务端已就绪", "service", s.service, "session", s.id)
	return s, nil
}

// ID 返回会话 ID
func (s *ServerSession) ID() string { return s.id }

// Service 返回注册的服务名
func (s *ServerSession) Service() string { return s.service }

// Read 读取下一条客户端消息（id 已替换为桥内部 id）
func (s *ServerSession) Read(ctx context.Context) (json.RawMessage, error) {
	return s.inbox.pop(ctx)
}

// Write 写入引擎的响应
//
// 没有对应等待者的响应（已超时或未知 id）被丢弃；引擎主动发出的请求与通知
// 无法经由服务调用送达客户端，同样丢弃。
func (s *ServerSession) Write(_ context.Context, msg json.RawMessage) error {
	env, k, err := parse(msg)
	if err != nil {
		return err
	}
	if k != kindResponse {
		logger.Debug("丢弃服务端主动消息", "session", s.id, "method", env.Method)
		return nil
	}

	key := idKey(env.ID)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	ex, ok := s.waiting[key]
	delete(s.waiting, key)
	s.mu.Unlock()

	if !ok {
		logger.Debug("丢弃无等待者的响应", "session", s.id, "id", key)
		return nil
	}
	ex.reply <- msg
	return nil
}

// handle 总线服务处理器：一次调用对应一条客户端消息
func (s *ServerSession) handle(ctx context.Context, req *interfaces.Request) (any, error) {
	env, k, err := parse(req.Payload)
	if err != nil {
		return errorResponse(nil, CodeParseError, err.Error()), nil
	}

	switch k {
	case kindNotification:
		s.mirror(DirectionNotification, req.Sender, req.Payload)
		s.inbox.push(req.Payload)
		return json.RawMessage("null"), nil
	case kindRequest:
		return s.exchange(ctx, req.Sender, env.ID, req.Payload)
	default:
		return errorResponse(env.ID, CodeInvalidRequest, "expected a request or notification"), nil
	}
}

// exchange 用桥内部 id 转交请求并等待引擎响应
func (s *ServerSession) exchange(ctx context.Context, caller string, id json.RawMessage, msg json.RawMessage) (any, error) {
	s.mirror(DirectionRequest, caller, msg)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errorResponse(id, CodeInternalError, ErrClosed.Error()), nil
	}
	s.counter++
	bridgeID, _ := json.Marshal(fmt.Sprintf("%s:%d", s.id, s.counter))
	key := idKey(bridgeID)
	ex := &exchange{original: id, reply: make(chan json.RawMessage, 1)}
	s.waiting[key] = ex
	s.mu.Unlock()

	rewritten, err := withID(msg, bridgeID)
	if err != nil {
		s.forget(key)
		return errorResponse(id, CodeParseError, err.Error()), nil
	}
	s.inbox.push(rewritten)

	timer := time.NewTimer(s.opts.Timeout)
	defer timer.Stop()

	var resp json.RawMessage
	select {
	case resp = <-ex.reply:
	case <-timer.C:
		s.forget(key)
		resp = errorResponse(id, CodeInternalError, "server engine did not respond in time")
	case <-s.done:
		s.forget(key)
		resp = errorResponse(id, CodeInternalError, ErrClosed.Error())
	case <-ctx.Done():
		s.forget(key)
		return nil, ctx.Err()
	}

	restored, err := withID(resp, ex.original)
	if err != nil {
		return nil, err
	}
	s.mirror(DirectionResponse, caller, restored)
	return restored, nil
}

func (s *ServerSession) forget(key string) {
	s.mu.Lock()
	delete(s.waiting, key)
	s.mu.Unlock()
}

func (s *ServerSession) mirror(dir Direction, caller string, msg json.RawMessage) {
	mirror(s.bus, !s.opts.DisableTraffic, TrafficRecord{
		Session:   s.id,
		Direction: dir,
		Client:    caller,
		Server:    s.bus.NodeID(),
		Message:   msg,
	})
}

// Close 注销服务并释放等待中的请求，可重复调用
func (s *ServerSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.closeErr = s.bus.Unservice(s.service)
		close(s.done)
		s.inbox.close()
		logger.Info("MCP 服务端已关闭", "service", s.service, "session", s.id)
	})
	return s.closeErr
}
