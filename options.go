package tagentacle

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tagentacle/go-sdk/config"
)

// Option 节点配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config     *config.Config
	daemonURL  string
	timeout    time.Duration
	registerer prometheus.Registerer
	clock      clock.Clock
	fxLogging  bool
}

func newOptions() *options {
	return &options{config: config.DefaultConfig()}
}

// WithConfig 使用完整配置，之后的选项会覆盖其中的字段
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithDaemonURL 设置 Daemon 地址
//
// 示例：
//
//	tagentacle.WithDaemonURL("tcp://10.0.0.2:19999")
//	tagentacle.WithDaemonURL("ws://gateway:8080/bus")
func WithDaemonURL(url string) Option {
	return func(o *options) error {
		if url == "" {
			return errors.New("daemon url is empty")
		}
		o.daemonURL = url
		return nil
	}
}

// WithCallTimeout 设置未指定超时的服务调用使用的默认超时
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("call timeout must be positive")
		}
		o.timeout = d
		return nil
	}
}

// WithRegisterer 把节点指标注册到 reg（默认使用节点私有 Registry）
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithClock 替换调用超时使用的时钟，测试中传入 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithFxLogging 输出 Fx 依赖注入日志（默认关闭）
func WithFxLogging(enable bool) Option {
	return func(o *options) error {
		o.fxLogging = enable
		return nil
	}
}

// resolve 合并选项并返回最终配置
func (o *options) resolve(nodeID string) (*config.Config, error) {
	cfg := o.config.Clone()
	if nodeID != "" {
		cfg.NodeID = nodeID
	}
	if o.daemonURL != "" {
		cfg.DaemonURL = o.daemonURL
	}
	if o.timeout > 0 {
		cfg.WithCallTimeout(o.timeout)
	}
	if cfg.NodeID == "" {
		return nil, ErrEmptyNodeID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
