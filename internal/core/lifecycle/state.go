package lifecycle

import (
	"context"
	"fmt"
)

// State 生命周期状态
type State int

const (
	// StateUnconfigured 初始状态
	StateUnconfigured State = iota
	// StateInactive 已配置，未激活
	StateInactive
	// StateActive 激活，正在提供功能
	StateActive
	// StateFinalized 已关闭（终止状态）
	StateFinalized
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Transition 迁移名称
type Transition string

const (
	TransitionConfigure  Transition = "configure"
	TransitionActivate   Transition = "activate"
	TransitionDeactivate Transition = "deactivate"
	TransitionShutdown   Transition = "shutdown"
)

// Settings 传给 OnConfigure 的配置
type Settings map[string]any

// Hooks 用户提供的迁移钩子
type Hooks interface {
	// OnConfigure 读取配置、准备资源
	OnConfigure(ctx context.Context, settings Settings) error
	// OnActivate 通常在这里注册订阅与服务
	OnActivate(ctx context.Context) error
	// OnDeactivate 通常在这里取消订阅
	OnDeactivate(ctx context.Context) error
	// OnShutdown 释放资源
	OnShutdown(ctx context.Context) error
}

// BaseHooks 所有钩子的空实现，嵌入后只需覆盖关心的方法
type BaseHooks struct{}

func (BaseHooks) OnConfigure(context.Context, Settings) error { return nil }
func (BaseHooks) OnActivate(context.Context) error            { return nil }
func (BaseHooks) OnDeactivate(context.Context) error          { return nil }
func (BaseHooks) OnShutdown(context.Context) error            { return nil }

var _ Hooks = BaseHooks{}
