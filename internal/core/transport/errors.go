package transport

import "errors"

var (
	// ErrNotConnected 没有存活的会话
	ErrNotConnected = errors.New("transport: not connected")

	// ErrAlreadyConnected 会话已存在
	ErrAlreadyConnected = errors.New("transport: already connected")

	// ErrConnectionClosed 连接被远端关闭或发生传输错误
	ErrConnectionClosed = errors.New("transport: connection closed")

	// ErrUnsupportedScheme 地址协议不受支持
	ErrUnsupportedScheme = errors.New("transport: unsupported scheme")

	// ErrInvalidAddress 地址无法解析
	ErrInvalidAddress = errors.New("transport: invalid address")
)
