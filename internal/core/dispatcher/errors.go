package dispatcher

import (
	"errors"

	"github.com/Tagentacle/go-sdk/internal/core/transport"
)

var (
	// ErrNotConnected 未连接 Daemon
	ErrNotConnected = transport.ErrNotConnected

	// ErrConnectionClosed 连接在调用完成前关闭
	ErrConnectionClosed = transport.ErrConnectionClosed

	// ErrTimeout 服务调用超时
	ErrTimeout = errors.New("dispatcher: call timed out")

	// ErrServiceExists 服务名已注册
	ErrServiceExists = errors.New("dispatcher: service already registered")

	// ErrServiceNotFound 服务名未注册
	ErrServiceNotFound = errors.New("dispatcher: service not registered")

	// ErrAlreadySpinning 调度循环已在运行
	ErrAlreadySpinning = errors.New("dispatcher: already spinning")

	// ErrEmptyName 主题名或服务名为空
	ErrEmptyName = errors.New("dispatcher: empty topic or service name")

	// ErrNilHandler 回调或处理器为 nil
	ErrNilHandler = errors.New("dispatcher: nil handler")
)
