package transport

import (
	"context"

	"go.uber.org/fx"
)

// Module 返回 Fx 模块
//
// 依赖 Config 与 *metrics.Metrics；停止时断开连接。
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(NewConn),
		fx.Invoke(registerLifecycle),
	)
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, c *Conn) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return c.Disconnect()
		},
	})
}
