package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Tagentacle/go-sdk/internal/core/transport"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

// ErrInvalidConfig 配置无效
var ErrInvalidConfig = errors.New("config: invalid")

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if _, err := transport.ParseAddress(c.DaemonURL); err != nil {
		return fmt.Errorf("%w: daemon_url: %v", ErrInvalidConfig, err)
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Dispatcher.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Validate 验证传输配置，零值表示使用默认值
func (c TransportConfig) Validate() error {
	switch {
	case c.DialTimeout < 0:
		return fmt.Errorf("%w: transport.dial_timeout must not be negative", ErrInvalidConfig)
	case c.WriteTimeout < 0:
		return fmt.Errorf("%w: transport.write_timeout must not be negative", ErrInvalidConfig)
	case c.InboundQueueSize < 0:
		return fmt.Errorf("%w: transport.inbound_queue_size must not be negative", ErrInvalidConfig)
	case c.MaxFrameBytes < 0:
		return fmt.Errorf("%w: transport.max_frame_bytes must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Validate 验证调度器配置
func (c DispatcherConfig) Validate() error {
	if c.CallTimeout < 0 {
		return fmt.Errorf("%w: dispatcher.call_timeout must not be negative", ErrInvalidConfig)
	}
	if c.ExpiredCacheSize < 0 {
		return fmt.Errorf("%w: dispatcher.expired_cache_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	if c.Format != "" && c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Format)
	}
	for _, part := range strings.Split(c.Level, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, lv, ok := strings.Cut(part, "="); ok {
			part = lv
		}
		if _, ok := log.ParseLevel(part); !ok {
			return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Level)
		}
	}
	return nil
}
