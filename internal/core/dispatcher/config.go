package dispatcher

import "time"

// Config 调度配置
type Config struct {
	// CallTimeout 服务调用默认超时
	CallTimeout time.Duration

	// ExpiredCacheSize 记住的已过期关联 ID 数量，用于区分迟到帧与未知帧
	ExpiredCacheSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		CallTimeout:      30 * time.Second,
		ExpiredCacheSize: 1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.ExpiredCacheSize <= 0 {
		c.ExpiredCacheSize = def.ExpiredCacheSize
	}
	return c
}
