package tagentacle

import (
	"github.com/Tagentacle/go-sdk/internal/core/lifecycle"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
)

// ════════════════════════════════════════════════════════════════════════════
// 总线类型
// ════════════════════════════════════════════════════════════════════════════

type (
	// Bus 发布订阅与服务调用接口
	Bus = interfaces.Bus

	// Message 主题消息
	Message = interfaces.Message

	// Request 服务请求
	Request = interfaces.Request

	// MessageHandler 主题回调
	MessageHandler = interfaces.MessageHandler

	// ServiceHandler 服务处理器
	ServiceHandler = interfaces.ServiceHandler

	// Subscription 订阅句柄
	Subscription = interfaces.Subscription

	// PendingCall 进行中的异步服务调用
	PendingCall = interfaces.PendingCall

	// ServiceError 服务返回的业务错误
	ServiceError = interfaces.ServiceError
)

// NewServiceError 以任意 JSON 负载构造业务错误
func NewServiceError(payload any) *ServiceError {
	return interfaces.NewServiceError(payload)
}

// ════════════════════════════════════════════════════════════════════════════
// 生命周期类型
// ════════════════════════════════════════════════════════════════════════════

type (
	// LifecycleNode 带生命周期状态机的节点
	LifecycleNode = lifecycle.Node

	// Hooks 生命周期钩子
	Hooks = lifecycle.Hooks

	// BaseHooks 空实现，可嵌入只覆盖部分钩子
	BaseHooks = lifecycle.BaseHooks

	// State 生命周期状态
	State = lifecycle.State

	// Settings Configure 传入的配置
	Settings = lifecycle.Settings

	// TransitionEvent 状态迁移事件
	TransitionEvent = lifecycle.TransitionEvent

	// LifecycleOption 生命周期节点选项
	LifecycleOption = lifecycle.Option
)

// 生命周期状态
const (
	StateUnconfigured = lifecycle.StateUnconfigured
	StateInactive     = lifecycle.StateInactive
	StateActive       = lifecycle.StateActive
	StateFinalized    = lifecycle.StateFinalized
)

// WithoutEvents 不发布状态迁移事件
func WithoutEvents() LifecycleOption {
	return lifecycle.WithoutEvents()
}
