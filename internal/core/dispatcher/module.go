package dispatcher

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/Tagentacle/go-sdk/internal/core/metrics"
	"github.com/Tagentacle/go-sdk/internal/core/transport"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config  *Config `optional:"true"`
	Conn    *transport.Conn
	Clock   clock.Clock      `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// ModuleOutput 模块输出服务
type ModuleOutput struct {
	fx.Out

	Dispatcher *Dispatcher
	Node       interfaces.Node
	Bus        interfaces.Bus
}

// ProvideDispatcher 提供调度器
func ProvideDispatcher(in ModuleInput) ModuleOutput {
	cfg := DefaultConfig()
	if in.Config != nil {
		cfg = *in.Config
	}
	d := New(cfg, in.Conn, in.Clock, in.Metrics)
	return ModuleOutput{Dispatcher: d, Node: d, Bus: d}
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("dispatcher",
		fx.Provide(ProvideDispatcher),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return d.Disconnect()
		},
	})
}
