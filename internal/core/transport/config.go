package transport

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
)

// DefaultAddress Daemon 默认地址
const DefaultAddress = "tcp://127.0.0.1:19999"

// Config 连接配置
type Config struct {
	// Address Daemon 地址，空值使用 DefaultAddress
	Address string

	// NodeID 握手时声明的节点 ID
	NodeID string

	// DialTimeout 拨号与握手超时
	DialTimeout time.Duration

	// WriteTimeout 单次写入超时
	WriteTimeout time.Duration

	// InboundQueueSize 入站帧队列容量
	InboundQueueSize int

	// Limits 帧大小限制
	Limits codec.Limits
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Address:          DefaultAddress,
		DialTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		InboundQueueSize: 256,
		Limits:           codec.DefaultLimits(),
	}
}

// withDefaults 用默认值填充零值字段
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Address == "" {
		c.Address = def.Address
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.InboundQueueSize <= 0 {
		c.InboundQueueSize = def.InboundQueueSize
	}
	if c.Limits.MaxFrameBytes <= 0 {
		c.Limits = def.Limits
	}
	return c
}

// ============================================================================
//                              地址
// ============================================================================

// Scheme 承载协议
type Scheme string

const (
	SchemeTCP Scheme = "tcp"
	SchemeWS  Scheme = "ws"
	SchemeWSS Scheme = "wss"
)

// Address 已解析的 Daemon 地址
type Address struct {
	Scheme Scheme
	// Host host:port（ws/wss 可省略端口）
	Host string
	// Path WebSocket 路径，tcp 地址为空
	Path string
}

// ParseAddress 解析 Daemon 地址
//
// 空字符串返回默认地址；没有 scheme 的 host:port 视为 tcp。
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultAddress
	}
	if !strings.Contains(s, "://") {
		s = string(SchemeTCP) + "://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if u.Host == "" {
		return Address{}, fmt.Errorf("%w: %q: missing host", ErrInvalidAddress, s)
	}

	addr := Address{Scheme: Scheme(strings.ToLower(u.Scheme)), Host: u.Host}
	switch addr.Scheme {
	case SchemeTCP:
		if _, _, err := net.SplitHostPort(u.Host); err != nil {
			return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
		}
		if u.Path != "" && u.Path != "/" {
			return Address{}, fmt.Errorf("%w: %q: tcp address has a path", ErrInvalidAddress, s)
		}
	case SchemeWS, SchemeWSS:
		addr.Path = u.Path
	default:
		return Address{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return addr, nil
}

// String 返回地址的 URL 形式
func (a Address) String() string {
	return string(a.Scheme) + "://" + a.Host + a.Path
}
