package tagentacle

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Tagentacle/go-sdk/config"
	"github.com/Tagentacle/go-sdk/internal/core/dispatcher"
	"github.com/Tagentacle/go-sdk/internal/core/metrics"
	"github.com/Tagentacle/go-sdk/internal/core/transport"
)

// nodeComponents fx 组装出的组件
type nodeComponents struct {
	fx.In

	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Metrics `optional:"true"`
}

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：metrics → transport → dispatcher
func buildFxApp(cfg *config.Config, o *options, out *nodeComponents) *fx.App {
	dispatcherCfg := cfg.DispatcherOptions()

	modules := []fx.Option{
		// ════════════════════════════════════════════════════════════════════
		// 1. 配置注入
		// ════════════════════════════════════════════════════════════════════
		fx.Supply(cfg.TransportOptions(cfg.NodeID)),
		fx.Supply(&dispatcherCfg),
		fx.Supply(metrics.Config{
			NodeID:     cfg.NodeID,
			Registerer: o.registerer,
			Disabled:   cfg.Metrics.Disabled,
		}),

		// ════════════════════════════════════════════════════════════════════
		// 2. 组件
		// ════════════════════════════════════════════════════════════════════
		metrics.Module,
		transport.Module(),
		dispatcher.Module(),

		fx.Invoke(func(in nodeComponents) { *out = in }),
	}

	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. Fx 日志
	// ════════════════════════════════════════════════════════════════════════
	if o.fxLogging {
		modules = append(modules, fx.WithLogger(func() fxevent.Logger {
			l, err := zap.NewDevelopment()
			if err != nil {
				l = zap.NewNop()
			}
			return &fxevent.ZapLogger{Logger: l}
		}))
	} else {
		modules = append(modules, fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}))
	}

	return fx.New(modules...)
}
