package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
)

// framer 帧级别的双向连接
//
// ReadFrame 只由读取任务调用；WriteFrame 由 Session 串行化。
type framer interface {
	ReadFrame() (codec.Frame, error)
	WriteFrame(codec.Frame) error
	SetWriteDeadline(time.Time) error
	Close() error
	RemoteAddr() string
}

// dial 按地址协议建立 framer
func dial(ctx context.Context, addr Address, cfg Config) (framer, error) {
	switch addr.Scheme {
	case SchemeTCP:
		return dialStream(ctx, addr, cfg)
	case SchemeWS, SchemeWSS:
		return dialWebSocket(ctx, addr, cfg)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, addr.Scheme)
}

// ============================================================================
//                              TCP 流
// ============================================================================

// streamFramer 在字节流上按行收发帧
type streamFramer struct {
	conn net.Conn
	r    *codec.Reader
	w    *codec.Writer
}

func dialStream(ctx context.Context, addr Address, cfg Config) (framer, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr.Host)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return newStreamFramer(conn, cfg.Limits), nil
}

func newStreamFramer(conn net.Conn, limits codec.Limits) *streamFramer {
	return &streamFramer{
		conn: conn,
		r:    codec.NewReader(conn, limits),
		w:    codec.NewWriter(conn, limits),
	}
}

func (s *streamFramer) ReadFrame() (codec.Frame, error) { return s.r.ReadFrame() }

func (s *streamFramer) WriteFrame(f codec.Frame) error { return s.w.WriteFrame(f) }

func (s *streamFramer) SetWriteDeadline(t time.Time) error { return s.conn.SetWriteDeadline(t) }

func (s *streamFramer) Close() error { return s.conn.Close() }

func (s *streamFramer) RemoteAddr() string { return s.conn.RemoteAddr().String() }
