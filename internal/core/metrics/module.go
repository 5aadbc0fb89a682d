package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Config 指标配置
type Config struct {
	// NodeID 作为 node 常量标签
	NodeID string

	// Registerer 指标注册目标，nil 时使用节点私有 Registry
	Registerer prometheus.Registerer

	// Disabled 关闭指标收集（组件收到 nil *Metrics）
	Disabled bool
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(ProvideMetrics),
)

// ProvideMetrics 根据配置提供指标集合
func ProvideMetrics(cfg Config) *Metrics {
	if cfg.Disabled {
		return nil
	}
	return New(cfg.NodeID, cfg.Registerer)
}
