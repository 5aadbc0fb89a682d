// Package config 提供节点的文件与环境变量配置
//
// 配置按组件组织，每个子配置都有 Default 构造函数：
//   - Transport: Daemon 连接与帧限制
//   - Dispatcher: 服务调用超时与迟到结果缓存
//   - Log: 日志级别与格式
//   - Metrics: Prometheus 指标
//
// 使用示例：
//
//	cfg, err := config.Load("node.toml")
//	if err != nil {
//	    return err
//	}
//	node, err := tagentacle.New(cfg.NodeID, tagentacle.WithConfig(cfg))
package config

import (
	"time"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
	"github.com/Tagentacle/go-sdk/internal/core/dispatcher"
	"github.com/Tagentacle/go-sdk/internal/core/transport"
)

// Config 节点的完整配置
type Config struct {
	// NodeID 节点 ID，也可以在构造节点时直接指定
	NodeID string `json:"node_id,omitempty" toml:"node_id"`

	// DaemonURL Daemon 地址，tcp://host:port 或 ws(s)://host:port/path
	DaemonURL string `json:"daemon_url" toml:"daemon_url"`

	// SecretsFile 密钥文件路径，原样传递给使用方
	SecretsFile string `json:"secrets_file,omitempty" toml:"secrets_file"`

	Transport  TransportConfig  `json:"transport" toml:"transport"`
	Dispatcher DispatcherConfig `json:"dispatcher" toml:"dispatcher"`
	Log        LogConfig        `json:"log" toml:"log"`
	Metrics    MetricsConfig    `json:"metrics" toml:"metrics"`
}

// TransportConfig Daemon 连接配置
type TransportConfig struct {
	// DialTimeout 建立连接的超时
	DialTimeout Duration `json:"dial_timeout" toml:"dial_timeout"`

	// WriteTimeout 单帧写入超时
	WriteTimeout Duration `json:"write_timeout" toml:"write_timeout"`

	// InboundQueueSize 入站帧队列容量
	InboundQueueSize int `json:"inbound_queue_size" toml:"inbound_queue_size"`

	// MaxFrameBytes 单帧最大字节数
	MaxFrameBytes int `json:"max_frame_bytes" toml:"max_frame_bytes"`
}

// DispatcherConfig 调度器配置
type DispatcherConfig struct {
	// CallTimeout 未指定超时的服务调用使用的默认超时
	CallTimeout Duration `json:"call_timeout" toml:"call_timeout"`

	// ExpiredCacheSize 记住的已结束调用数，用于区分迟到结果与未知结果
	ExpiredCacheSize int `json:"expired_cache_size" toml:"expired_cache_size"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别说明，如 "info" 或 "info,core/dispatcher=debug"
	Level string `json:"level,omitempty" toml:"level"`

	// Format text 或 json
	Format string `json:"format,omitempty" toml:"format"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Disabled 不创建任何指标
	Disabled bool `json:"disabled,omitempty" toml:"disabled"`

	// ListenAddr 指标 HTTP 端点地址，为空不启动（仅命令行程序使用）
	ListenAddr string `json:"listen_addr,omitempty" toml:"listen_addr"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DaemonURL:  transport.DefaultAddress,
		Transport:  DefaultTransportConfig(),
		Dispatcher: DefaultDispatcherConfig(),
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	def := transport.DefaultConfig()
	return TransportConfig{
		DialTimeout:      Duration(def.DialTimeout),
		WriteTimeout:     Duration(def.WriteTimeout),
		InboundQueueSize: def.InboundQueueSize,
		MaxFrameBytes:    def.Limits.MaxFrameBytes,
	}
}

// DefaultDispatcherConfig 返回默认调度器配置
func DefaultDispatcherConfig() DispatcherConfig {
	def := dispatcher.DefaultConfig()
	return DispatcherConfig{
		CallTimeout:      Duration(def.CallTimeout),
		ExpiredCacheSize: def.ExpiredCacheSize,
	}
}

// TransportOptions 转换为传输层配置
func (c *Config) TransportOptions(nodeID string) transport.Config {
	return transport.Config{
		Address:          c.DaemonURL,
		NodeID:           nodeID,
		DialTimeout:      c.Transport.DialTimeout.Duration(),
		WriteTimeout:     c.Transport.WriteTimeout.Duration(),
		InboundQueueSize: c.Transport.InboundQueueSize,
		Limits:           codec.Limits{MaxFrameBytes: c.Transport.MaxFrameBytes},
	}
}

// DispatcherOptions 转换为调度器配置
func (c *Config) DispatcherOptions() dispatcher.Config {
	return dispatcher.Config{
		CallTimeout:      c.Dispatcher.CallTimeout.Duration(),
		ExpiredCacheSize: c.Dispatcher.ExpiredCacheSize,
	}
}

// Clone 返回配置的副本
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// WithCallTimeout 设置默认调用超时
func (c *Config) WithCallTimeout(d time.Duration) *Config {
	c.Dispatcher.CallTimeout = Duration(d)
	return c
}
