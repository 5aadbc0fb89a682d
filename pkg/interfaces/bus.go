package interfaces

import (
	"context"
	"encoding/json"
	"time"
)

// Bus 总线原语
//
// 生命周期状态机与 MCP 桥只依赖这组原语，不依赖具体调度实现。
type Bus interface {
	// NodeID 返回本节点 ID
	NodeID() string

	// Publish 向主题发布一条消息（不等待送达确认）
	Publish(ctx context.Context, topic string, payload any) error

	// Subscribe 注册主题回调，同一主题的多个回调都会被调用
	Subscribe(topic string, handler MessageHandler) (Subscription, error)

	// Unsubscribe 移除回调，重复移除无效果
	Unsubscribe(sub Subscription)

	// Service 注册服务处理器，同名服务只能注册一次
	Service(name string, handler ServiceHandler) error

	// Unservice 注销服务处理器
	Unservice(name string) error

	// CallService 调用服务并等待结果
	//
	// timeout <= 0 时使用默认超时。
	CallService(ctx context.Context, name string, payload any, timeout time.Duration) (json.RawMessage, error)

	// CallServiceAsync 发起服务调用，立即返回
	CallServiceAsync(ctx context.Context, name string, payload any, timeout time.Duration) (PendingCall, error)
}

// Node 带连接管理的 Bus
type Node interface {
	Bus

	// Connect 连接 Daemon 并声明已有的订阅与服务
	Connect(ctx context.Context) error

	// Disconnect 断开连接，所有未完成调用以连接关闭失败
	Disconnect() error

	// Connected 是否已连接
	Connected() bool

	// Spin 运行调度循环直到 ctx 取消或连接结束
	Spin(ctx context.Context) error
}

// Subscription 订阅句柄
type Subscription interface {
	// Topic 订阅的主题
	Topic() string
}

// PendingCall 一次未完成的服务调用
type PendingCall interface {
	// ID 调用的关联 ID
	ID() string

	// Service 被调用的服务名
	Service() string

	// Done 调用完成（成功、失败、超时或取消）后关闭
	Done() <-chan struct{}

	// Result 返回调用结果，Done 关闭前调用会阻塞
	Result() (json.RawMessage, error)

	// Cancel 放弃等待，调用以 context.Canceled 结束
	Cancel()
}

// MessageHandler 主题消息回调
//
// 返回的错误只会被记录，不会影响其他回调。
type MessageHandler func(ctx context.Context, msg *Message) error

// ServiceHandler 服务处理器
//
// 返回值编码为 SERVICE_RESULT 的负载；返回 *ServiceError 时其负载原样
// 作为 SERVICE_ERROR 发送，其他错误编码为 {"error": "..."}。
type ServiceHandler func(ctx context.Context, req *Request) (any, error)
