package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
	"github.com/Tagentacle/go-sdk/internal/core/metrics"
	"github.com/Tagentacle/go-sdk/internal/core/transport"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

var logger = log.Logger("core/dispatcher")

// link Dispatcher 需要的连接能力，由 *transport.Conn 实现
type link interface {
	NodeID() string
	Connect(ctx context.Context) (*transport.Session, error)
	Session() (*transport.Session, bool)
	Disconnect() error
}

var _ link = (*transport.Conn)(nil)

// Dispatcher 节点调度器
type Dispatcher struct {
	cfg     Config
	link    link
	clock   clock.Clock
	metrics *metrics.Metrics

	subs     *subscriptionTable
	services *serviceTable
	pending  *pendingTable

	// topics 每个主题一个串行投递队列
	topics queueSet
	// control 订阅/服务声明帧按调用顺序异步发送
	control serialQueue

	// 当前会话的作用域 context，会话结束时取消
	scopeMu     sync.Mutex
	scopeCancel context.CancelFunc
	scope       context.Context

	spinning atomic.Bool
}

var _ interfaces.Node = (*Dispatcher)(nil)

// New 创建调度器
//
// clk 为 nil 时使用真实时钟。
func New(cfg Config, l link, clk clock.Clock, m *metrics.Metrics) *Dispatcher {
	cfg = cfg.withDefaults()
	if clk == nil {
		clk = clock.New()
	}
	return &Dispatcher{
		cfg:      cfg,
		link:     l,
		clock:    clk,
		metrics:  m,
		subs:     newSubscriptionTable(),
		services: newServiceTable(),
		pending:  newPendingTable(l.NodeID(), cfg.ExpiredCacheSize, clk, m),
		scope:    context.Background(),
	}
}

// NodeID 返回节点 ID
func (d *Dispatcher) NodeID() string {
	return d.link.NodeID()
}

// ============================================================================
//                              连接管理
// ============================================================================

// Connect 连接 Daemon 并声明当前所有订阅与服务
func (d *Dispatcher) Connect(ctx context.Context) error {
	s, err := d.link.Connect(ctx)
	if err != nil {
		return err
	}

	for _, topic := range d.subs.topicNames() {
		if err := s.Send(d.controlFrame(codec.KindSubscribe, topic)); err != nil {
			_ = d.link.Disconnect()
			return fmt.Errorf("announce subscription %s: %w", topic, err)
		}
	}
	for _, name := range d.services.names() {
		if err := s.Send(d.controlFrame(codec.KindAdvertiseService, name)); err != nil {
			_ = d.link.Disconnect()
			return fmt.Errorf("announce service %s: %w", name, err)
		}
	}

	scope, cancel := context.WithCancel(context.Background())
	d.scopeMu.Lock()
	d.scope, d.scopeCancel = scope, cancel
	d.scopeMu.Unlock()

	go d.watch(s, cancel)
	return nil
}

// watch 会话结束时取消作用域并结束该会话上的待定调用
func (d *Dispatcher) watch(s *transport.Session, cancel context.CancelFunc) {
	<-s.Done()
	cancel()

	err := s.Err()
	if err == nil {
		err = ErrConnectionClosed
	}
	if n := d.pending.failSession(s, err); n > 0 {
		logger.Info("连接结束，待定调用已失败", "count", n, "error", err)
	}
}

// Disconnect 断开连接
//
// 返回前该会话上的所有待定调用均已以 ErrConnectionClosed 结束。
func (d *Dispatcher) Disconnect() error {
	s, ok := d.link.Session()
	err := d.link.Disconnect()
	if ok {
		d.pending.failSession(s, ErrConnectionClosed)
	}
	return err
}

// Connected 是否已连接
func (d *Dispatcher) Connected() bool {
	_, ok := d.link.Session()
	return ok
}

// currentScope 返回当前会话的作用域 context
func (d *Dispatcher) currentScope() context.Context {
	d.scopeMu.Lock()
	defer d.scopeMu.Unlock()
	return d.scope
}

// ============================================================================
//                              发布订阅
// ============================================================================

// Publish 发布主题消息
func (d *Dispatcher) Publish(ctx context.Context, topic string, payload any) error {
	if topic == "" {
		return ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s, ok := d.link.Session()
	if !ok {
		return ErrNotConnected
	}

	f, err := codec.NewFrame(codec.KindPublish, topic, payload)
	if err != nil {
		return err
	}
	f.Sender = d.NodeID()
	return s.Send(f)
}

// Subscribe 注册主题回调
func (d *Dispatcher) Subscribe(topic string, handler interfaces.MessageHandler) (interfaces.Subscription, error) {
	if topic == "" {
		return nil, ErrEmptyName
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	sub, first := d.subs.add(topic, handler)
	if first {
		d.announce(codec.KindSubscribe, topic)
	}
	logger.Debug("已订阅", "topic", topic, "first", first)
	return sub, nil
}

// Unsubscribe 移除主题回调
//
// 已移除的句柄与其他节点签发的句柄为空操作。
func (d *Dispatcher) Unsubscribe(sub interfaces.Subscription) {
	s, ok := sub.(*subscription)
	if !ok || s == nil {
		return
	}
	removed, last := d.subs.remove(s)
	if removed && last {
		d.announce(codec.KindUnsubscribe, s.topic)
	}
}

// ============================================================================
//                              服务
// ============================================================================

// Service 注册服务处理器
func (d *Dispatcher) Service(name string, handler interfaces.ServiceHandler) error {
	if name == "" {
		return ErrEmptyName
	}
	if handler == nil {
		return ErrNilHandler
	}
	if err := d.services.add(name, handler); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}
	d.announce(codec.KindAdvertiseService, name)
	logger.Debug("已注册服务", "service", name)
	return nil
}

// Unservice 注销服务处理器
func (d *Dispatcher) Unservice(name string) error {
	if err := d.services.remove(name); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}
	d.announce(codec.KindUnadvertiseService, name)
	return nil
}

// CallService 调用服务并等待结果
func (d *Dispatcher) CallService(ctx context.Context, name string, payload any, timeout time.Duration) (json.RawMessage, error) {
	call, err := d.CallServiceAsync(ctx, name, payload, timeout)
	if err != nil {
		return nil, err
	}
	return call.Result()
}

// CallServiceAsync 发起服务调用
//
// 调用在结果到达、超时、ctx 取消或连接关闭时结束，调用方总能得到确定的结果。
func (d *Dispatcher) CallServiceAsync(ctx context.Context, name string, payload any, timeout time.Duration) (interfaces.PendingCall, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = d.cfg.CallTimeout
	}

	f, err := codec.NewFrame(codec.KindServiceCall, name, payload)
	if err != nil {
		return nil, err
	}
	s, ok := d.link.Session()
	if !ok {
		return nil, ErrNotConnected
	}

	call := d.pending.open(name, s)
	timer := d.clock.AfterFunc(timeout, func() {
		d.pending.finish(call.id, nil, fmt.Errorf("%w: %s after %s", ErrTimeout, name, timeout), outcomeTimeout)
	})
	stopWatch := context.AfterFunc(ctx, func() {
		d.pending.finish(call.id, nil, fmt.Errorf("call %s: %w", name, ctx.Err()), outcomeCanceled)
	})
	d.pending.arm(call, func() {
		timer.Stop()
		stopWatch()
	})

	f.CorrelationID = call.id
	f.Sender = d.NodeID()
	if err := s.Send(f); err != nil {
		d.pending.finish(call.id, nil, err, outcomeSendFailed)
		return nil, err
	}
	return call, nil
}

// ============================================================================
//                              内部
// ============================================================================

func (d *Dispatcher) controlFrame(kind codec.Kind, name string) codec.Frame {
	return codec.Frame{Kind: kind, Name: name, Sender: d.NodeID()}
}

// announce 在已连接时异步发送声明帧，未连接时由 Connect 统一声明
func (d *Dispatcher) announce(kind codec.Kind, name string) {
	if !d.Connected() {
		return
	}
	f := d.controlFrame(kind, name)
	d.control.push(func() {
		if err := d.send(f); err != nil {
			logger.Debug("声明帧未发送", "op", kind.String(), "name", name, "error", err)
		}
	})
}

// send 通过当前会话发送帧
func (d *Dispatcher) send(f codec.Frame) error {
	s, ok := d.link.Session()
	if !ok {
		return ErrNotConnected
	}
	return s.Send(f)
}
