package lifecycle

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Tagentacle/go-sdk/internal/core/metrics"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

var logger = log.Logger("core/lifecycle")

// TransitionEvent 发布到 TransitionTopic 的事件负载
type TransitionEvent struct {
	NodeID     string     `json:"node_id"`
	Transition Transition `json:"transition"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Timestamp  time.Time  `json:"timestamp"`
}

// TransitionTopic 返回节点迁移事件的主题名
func TransitionTopic(nodeID string) string {
	return "/lifecycle/" + nodeID + "/transition_event"
}

// Option 状态机选项
type Option func(*Node)

// WithMetrics 记录迁移指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Node) { n.metrics = m }
}

// WithoutEvents 不发布迁移事件
func WithoutEvents() Option {
	return func(n *Node) { n.events = false }
}

// Node 受管节点
type Node struct {
	bus     interfaces.Node
	hooks   Hooks
	metrics *metrics.Metrics
	events  bool

	mu        sync.Mutex
	state     State
	busy      bool
	observers []func(from, to State)
}

// New 创建状态机，hooks 为 nil 时使用 BaseHooks
func New(bus interfaces.Node, hooks Hooks, opts ...Option) *Node {
	if hooks == nil {
		hooks = BaseHooks{}
	}
	n := &Node{bus: bus, hooks: hooks, events: true, state: StateUnconfigured}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State 返回当前状态
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Bus 返回底层节点
func (n *Node) Bus() interfaces.Node {
	return n.bus
}

// OnTransition 注册状态变更观察者
//
// 观察者在迁移完成后、迁移方法返回前被同步调用。
func (n *Node) OnTransition(fn func(from, to State)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, fn)
}

// ============================================================================
//                              迁移
// ============================================================================

// Configure UNCONFIGURED → INACTIVE
func (n *Node) Configure(ctx context.Context, settings Settings) error {
	if settings == nil {
		settings = Settings{}
	}
	return n.transition(ctx, TransitionConfigure, StateInactive, func(ctx context.Context) error {
		return n.hooks.OnConfigure(ctx, settings)
	}, StateUnconfigured)
}

// Activate INACTIVE → ACTIVE
func (n *Node) Activate(ctx context.Context) error {
	return n.transition(ctx, TransitionActivate, StateActive, n.hooks.OnActivate, StateInactive)
}

// Deactivate ACTIVE → INACTIVE
func (n *Node) Deactivate(ctx context.Context) error {
	return n.transition(ctx, TransitionDeactivate, StateInactive, n.hooks.OnDeactivate, StateActive)
}

// Shutdown 任意非终止状态 → FINALIZED
//
// 顺序：OnShutdown 钩子、迁移事件、断开连接。钩子失败时状态不变；
// 断开连接失败时仍进入 FINALIZED，并返回该错误。
func (n *Node) Shutdown(ctx context.Context) error {
	var disconnectErr error
	err := n.transition(ctx, TransitionShutdown, StateFinalized, func(ctx context.Context) error {
		if err := n.hooks.OnShutdown(ctx); err != nil {
			return err
		}
		n.publishEvent(ctx, TransitionShutdown, n.State(), StateFinalized)
		disconnectErr = n.bus.Disconnect()
		return nil
	}, StateUnconfigured, StateInactive, StateActive)
	if err != nil {
		return err
	}
	if disconnectErr != nil {
		return fmt.Errorf("shutdown: disconnect: %w", disconnectErr)
	}
	return nil
}

// Bringup 连接（如尚未连接）、Configure、Activate
//
// 任一步失败立即返回，状态停留在失败处，不回滚。
func (n *Node) Bringup(ctx context.Context, settings Settings) error {
	if !n.bus.Connected() {
		if err := n.bus.Connect(ctx); err != nil {
			return fmt.Errorf("bringup: connect: %w", err)
		}
	}
	if err := n.Configure(ctx, settings); err != nil {
		return fmt.Errorf("bringup: %w", err)
	}
	if err := n.Activate(ctx); err != nil {
		return fmt.Errorf("bringup: %w", err)
	}
	return nil
}

// transition 执行一次迁移
func (n *Node) transition(ctx context.Context, t Transition, target State, hook func(context.Context) error, allowed ...State) error {
	n.mu.Lock()
	from := n.state
	if n.busy {
		n.mu.Unlock()
		n.metrics.Transition(string(t), "rejected")
		return fmt.Errorf("%w: %s requested while another transition is running", ErrInvalidTransition, t)
	}
	if !stateIn(from, allowed) {
		n.mu.Unlock()
		n.metrics.Transition(string(t), "rejected")
		return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, t, from)
	}
	n.busy = true
	n.mu.Unlock()

	err := runHook(ctx, hook)

	n.mu.Lock()
	n.busy = false
	if err != nil {
		n.mu.Unlock()
		n.metrics.Transition(string(t), "failed")
		logger.Warn("生命周期钩子失败", "nodeID", n.bus.NodeID(), "transition", string(t), "state", from.String(), "error", err)
		return fmt.Errorf("%s hook: %w", t, err)
	}
	n.state = target
	observers := make([]func(from, to State), len(n.observers))
	copy(observers, n.observers)
	n.mu.Unlock()

	n.metrics.Transition(string(t), "ok")
	logger.Info("生命周期迁移", "nodeID", n.bus.NodeID(), "from", from.String(), "to", target.String())

	for _, fn := range observers {
		fn(from, target)
	}
	if target != StateFinalized {
		n.publishEvent(ctx, t, from, target)
	}
	return nil
}

// publishEvent 已连接时发布迁移事件，发布失败只记录日志
func (n *Node) publishEvent(ctx context.Context, t Transition, from, to State) {
	if !n.events || !n.bus.Connected() {
		return
	}
	ev := TransitionEvent{
		NodeID:     n.bus.NodeID(),
		Transition: t,
		From:       from.String(),
		To:         to.String(),
		Timestamp:  time.Now().UTC(),
	}
	if err := n.bus.Publish(context.WithoutCancel(ctx), TransitionTopic(ev.NodeID), ev); err != nil {
		logger.Debug("迁移事件未发布", "transition", string(t), "error", err)
	}
}

// runHook 执行钩子，panic 按钩子失败处理，状态保持不变
func runHook(ctx context.Context, hook func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanic, r)
			logger.Error("生命周期钩子 panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return hook(ctx)
}

func stateIn(s State, set []State) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
