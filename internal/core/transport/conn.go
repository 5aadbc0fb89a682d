package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
	"github.com/Tagentacle/go-sdk/internal/core/metrics"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// Conn 节点到 Daemon 的连接管理器
//
// 同一时刻最多持有一个 Session。
type Conn struct {
	cfg     Config
	addr    Address
	metrics *metrics.Metrics

	mu      sync.Mutex
	session *Session
}

// NewConn 创建连接管理器（不拨号）
func NewConn(cfg Config, m *metrics.Metrics) (*Conn, error) {
	cfg = cfg.withDefaults()
	addr, err := ParseAddress(cfg.Address)
	if err != nil {
		return nil, err
	}
	return &Conn{cfg: cfg, addr: addr, metrics: m}, nil
}

// Address 返回 Daemon 地址
func (c *Conn) Address() Address {
	return c.addr
}

// NodeID 返回节点 ID
func (c *Conn) NodeID() string {
	return c.cfg.NodeID
}

// Connect 拨号并完成握手
func (c *Conn) Connect(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && !c.session.Closed() {
		return nil, ErrAlreadyConnected
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	f, err := dial(dialCtx, c.addr, c.cfg)
	if err != nil {
		return nil, err
	}

	s := newSession(c.cfg.NodeID, f, c.cfg, c.metrics)
	register := codec.Frame{Kind: codec.KindRegister, Sender: c.cfg.NodeID}
	if err := s.Send(register); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("register with daemon: %w", err)
	}

	go s.readLoop()
	c.session = s

	logger.Info("已连接 Daemon", "address", c.addr.String(), "nodeID", c.cfg.NodeID)
	return s, nil
}

// Session 返回当前存活的会话
func (c *Conn) Session() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Closed() {
		return nil, false
	}
	return c.session, true
}

// Connected 是否存在存活的会话
func (c *Conn) Connected() bool {
	_, ok := c.Session()
	return ok
}

// Send 通过当前会话发送帧
func (c *Conn) Send(f codec.Frame) error {
	s, ok := c.Session()
	if !ok {
		return ErrNotConnected
	}
	return s.Send(f)
}

// Disconnect 关闭当前会话，可重复调用
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	err := s.Close()
	logger.Info("已断开 Daemon", "address", c.addr.String())
	return err
}
