package tagentacle

import (
	"errors"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
	"github.com/Tagentacle/go-sdk/internal/core/dispatcher"
	"github.com/Tagentacle/go-sdk/internal/core/lifecycle"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 连接错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotConnected 节点未连接 Daemon
	ErrNotConnected = dispatcher.ErrNotConnected

	// ErrConnectionClosed 连接已被远端关闭
	ErrConnectionClosed = dispatcher.ErrConnectionClosed

	// ErrMalformedFrame 帧无法解码
	ErrMalformedFrame = codec.ErrMalformedFrame

	// ────────────────────────────────────────────────────────────────────────
	// 服务错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrTimeout 服务调用超时
	ErrTimeout = dispatcher.ErrTimeout

	// ErrNoSuchService Daemon 上没有该服务的提供方
	ErrNoSuchService = interfaces.ErrNoSuchService

	// ErrHandlerFailure 远端处理器崩溃
	ErrHandlerFailure = interfaces.ErrHandlerFailure

	// ErrServiceExists 本节点已注册同名服务
	ErrServiceExists = dispatcher.ErrServiceExists

	// ────────────────────────────────────────────────────────────────────────
	// 节点错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidTransition 当前生命周期状态不允许该迁移
	ErrInvalidTransition = lifecycle.ErrInvalidTransition

	// ErrHookPanic 生命周期钩子 panic，状态保持不变
	ErrHookPanic = lifecycle.ErrHookPanic

	// ErrEmptyNodeID 未指定节点 ID
	ErrEmptyNodeID = errors.New("tagentacle: empty node id")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("tagentacle: node closed")
)
