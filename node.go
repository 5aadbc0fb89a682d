package tagentacle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/Tagentacle/go-sdk/config"
	"github.com/Tagentacle/go-sdk/internal/core/lifecycle"
	"github.com/Tagentacle/go-sdk/internal/core/metrics"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

var logger = log.Logger("tagentacle")

// 组件启停超时
const (
	startTimeout = 10 * time.Second
	stopTimeout  = 10 * time.Second
)

// Node 总线节点
//
// 嵌入的 interfaces.Node 提供 Connect / Spin / Publish / Subscribe /
// Service / CallService 等全部总线操作。
type Node struct {
	interfaces.Node

	config  *config.Config
	app     *fx.App
	metrics *metrics.Metrics

	mu     sync.Mutex
	closed bool
}

var _ interfaces.Node = (*Node)(nil)

// New 创建节点
//
// nodeID 为空时使用配置中的 NodeID。节点创建后尚未连接，注册订阅与服务后调用
// Connect，它们会在连接建立时统一声明。
func New(nodeID string, opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.resolve(nodeID)
	if err != nil {
		return nil, err
	}

	var components nodeComponents
	app := buildFxApp(cfg, o, &components)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("start fx app: %w", err)
	}

	logger.Debug("节点已创建", "nodeID", cfg.NodeID, "daemon", cfg.DaemonURL)
	return &Node{
		Node:    components.Dispatcher,
		config:  cfg,
		app:     app,
		metrics: components.Metrics,
	}, nil
}

// Config 返回节点使用的配置副本
func (n *Node) Config() *config.Config {
	return n.config.Clone()
}

// Metrics 返回节点指标的 Gatherer，指标关闭或注册到外部 Registerer 时为 nil
func (n *Node) Metrics() prometheus.Gatherer {
	return n.metrics.Gatherer()
}

// Lifecycle 用钩子包装节点，得到带状态机的生命周期节点
func (n *Node) Lifecycle(hooks Hooks, opts ...LifecycleOption) *LifecycleNode {
	opts = append([]LifecycleOption{lifecycle.WithMetrics(n.metrics)}, opts...)
	return lifecycle.New(n, hooks, opts...)
}

// Close 断开连接并释放组件，可重复调用
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	var err error
	multierr.AppendInto(&err, n.Node.Disconnect())
	multierr.AppendInto(&err, n.app.Stop(ctx))
	logger.Debug("节点已关闭", "nodeID", n.NodeID())
	return err
}

// ════════════════════════════════════════════════════════════════════════════
// Daemon 内置服务
// ════════════════════════════════════════════════════════════════════════════

// Ping 调用 Daemon 的 ping 服务
func (n *Node) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := n.callReserved(ctx, interfaces.ServicePing, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("ping: unexpected status %q", out.Status)
	}
	return nil
}

// ListNodes 返回 Daemon 上已连接的节点
func (n *Node) ListNodes(ctx context.Context) ([]string, error) {
	var out struct {
		Nodes []string `json:"nodes"`
	}
	err := n.callReserved(ctx, interfaces.ServiceListNodes, &out)
	return out.Nodes, err
}

// ListTopics 返回 Daemon 上有订阅者的主题
func (n *Node) ListTopics(ctx context.Context) ([]string, error) {
	var out struct {
		Topics []string `json:"topics"`
	}
	err := n.callReserved(ctx, interfaces.ServiceListTopics, &out)
	return out.Topics, err
}

// ListServices 返回 Daemon 上已注册的服务
func (n *Node) ListServices(ctx context.Context) ([]string, error) {
	var out struct {
		Services []string `json:"services"`
	}
	err := n.callReserved(ctx, interfaces.ServiceListServices, &out)
	return out.Services, err
}

func (n *Node) callReserved(ctx context.Context, service string, out any) error {
	raw, err := n.CallService(ctx, service, struct{}{}, 0)
	if err != nil {
		return err
	}
	msg := &interfaces.Message{Topic: service, Payload: raw}
	if err := msg.Decode(out); err != nil {
		return fmt.Errorf("%s: decode result: %w", service, err)
	}
	return nil
}
