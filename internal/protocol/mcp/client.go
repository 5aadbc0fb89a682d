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

// ClientOptions 客户端会话选项
type ClientOptions struct {
	// Timeout 单个请求的超时，<= 0 使用总线默认值
	Timeout time.Duration

	// DisableTraffic 不向 TrafficTopic 镜像流量
	DisableTraffic bool
}

// ClientSession 面向远端 MCP 服务端节点的会话
type ClientSession struct {
	id      string
	bus     interfaces.Bus
	remote  string
	service string
	opts    ClientOptions

	ctx    context.Context
	cancel context.CancelFunc
	inbox  *inbox

	mu       sync.Mutex
	closed   bool
	inflight map[string]interfaces.PendingCall

	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Stream = (*ClientSession)(nil)

// OpenClient 打开到 remoteID 的客户端会话
//
// 会话不做握手，MCP initialize 由引擎自己发送。
func OpenClient(ctx context.Context, bus interfaces.Bus, remoteID string, opts ClientOptions) (*ClientSession, error) {
	if remoteID == "" {
		return nil, ErrEmptyRemote
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &ClientSession{
		id:       uuid.NewString(),
		bus:      bus,
		remote:   remoteID,
		service:  ServiceName(remoteID),
		opts:     opts,
		ctx:      sctx,
		cancel:   cancel,
		inbox:    newInbox(),
		inflight: make(map[string]interfaces.PendingCall),
	}
	logger.Debug("MCP 客户端会话已打开", "session", s.id, "remote", remoteID)
	return s, nil
}

// ID 返回会话 ID
func (s *ClientSession) ID() string { return s.id }

// Remote 返回远端节点 ID
func (s *ClientSession) Remote() string { return s.remote }

// InFlight 返回等待结果的请求数
func (s *ClientSession) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Read 读取远端的响应
func (s *ClientSession) Read(ctx context.Context) (json.RawMessage, error) {
	return s.inbox.pop(ctx)
}

// Write 发送引擎写出的消息
//
// 请求的失败不会从 Write 返回，而是转换为读取侧的错误响应。
func (s *ClientSession) Write(ctx context.Context, msg json.RawMessage) error {
	env, k, err := parse(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	switch k {
	case kindRequest:
		s.request(env.ID, msg)
		return nil
	case kindNotification:
		s.mirror(DirectionNotification, msg)
		if _, err := s.bus.CallServiceAsync(s.ctx, s.service, msg, s.opts.Timeout); err != nil {
			logger.Debug("MCP 通知未发送", "session", s.id, "method", env.Method, "error", err)
		}
		return nil
	default:
		// 服务端 → 客户端的请求不经过总线，引擎对其的响应没有去处
		logger.Debug("丢弃客户端侧的响应消息", "session", s.id, "id", string(env.ID))
		return nil
	}
}

// request 发起总线调用并在后台等待结果
func (s *ClientSession) request(id json.RawMessage, msg json.RawMessage) {
	key := idKey(id)
	s.mirror(DirectionRequest, msg)

	call, err := s.bus.CallServiceAsync(s.ctx, s.service, msg, s.opts.Timeout)
	if err != nil {
		s.respond(errorResponse(id, CodeInternalError, err.Error()))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		call.Cancel()
		return
	}
	s.inflight[key] = call
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		result, err := call.Result()

		s.mu.Lock()
		if s.inflight[key] == call {
			delete(s.inflight, key)
		}
		s.mu.Unlock()

		if err != nil {
			s.respond(errorResponse(id, CodeInternalError, err.Error()))
			return
		}
		resp, err := withID(result, id)
		if err != nil {
			s.respond(errorResponse(id, CodeInternalError, fmt.Sprintf("malformed response from %s: %v", s.remote, err)))
			return
		}
		s.respond(resp)
	}()
}

func (s *ClientSession) respond(resp json.RawMessage) {
	s.mirror(DirectionResponse, resp)
	s.inbox.push(resp)
}

func (s *ClientSession) mirror(dir Direction, msg json.RawMessage) {
	mirror(s.bus, !s.opts.DisableTraffic, TrafficRecord{
		Session:   s.id,
		Direction: dir,
		Client:    s.bus.NodeID(),
		Server:    s.remote,
		Message:   msg,
	})
}

// Close 取消所有进行中的请求并关闭会话，可重复调用
func (s *ClientSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		calls := make([]interfaces.PendingCall, 0, len(s.inflight))
		for _, c := range s.inflight {
			calls = append(calls, c)
		}
		s.mu.Unlock()

		s.inbox.close()
		for _, c := range calls {
			c.Cancel()
		}
		s.cancel()
		s.wg.Wait()
		logger.Debug("MCP 客户端会话已关闭", "session", s.id, "cancelled", len(calls))
	})
	return nil
}
