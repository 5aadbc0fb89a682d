package mcp

import "errors"

var (
	// ErrClosed 会话已关闭
	ErrClosed = errors.New("mcp: session closed")

	// ErrInvalidMessage 不是合法的 JSON-RPC 消息
	ErrInvalidMessage = errors.New("mcp: invalid JSON-RPC message")

	// ErrEmptyRemote 远端节点 ID 为空
	ErrEmptyRemote = errors.New("mcp: empty remote node id")
)
