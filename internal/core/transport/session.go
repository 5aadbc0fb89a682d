package transport

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
	"github.com/Tagentacle/go-sdk/internal/core/metrics"
)

// Session 一次存活的 Daemon 连接
type Session struct {
	nodeID       string
	f            framer
	writeTimeout time.Duration
	metrics      *metrics.Metrics

	inbound chan codec.Frame
	closing chan struct{}
	done    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once

	errMu sync.Mutex
	err   error

	// 格式错误帧的日志限速
	warnLimiter *rate.Limiter
	suppressed  atomic.Int64
}

func newSession(nodeID string, f framer, cfg Config, m *metrics.Metrics) *Session {
	return &Session{
		nodeID:       nodeID,
		f:            f,
		writeTimeout: cfg.WriteTimeout,
		metrics:      m,
		inbound:      make(chan codec.Frame, cfg.InboundQueueSize),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
		warnLimiter:  rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// Frames 返回入站帧队列，会话结束后关闭
func (s *Session) Frames() <-chan codec.Frame {
	return s.inbound
}

// Done 会话结束（读取任务退出）后关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err 返回会话结束原因
//
// 本地关闭返回 nil；远端断开或传输失败返回包装 ErrConnectionClosed 的错误。
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Closed 会话是否已开始关闭
func (s *Session) Closed() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// NodeID 返回握手时声明的节点 ID
func (s *Session) NodeID() string {
	return s.nodeID
}

// Send 写入一个帧
//
// 写入失败会终止会话；调用方收到的错误包装 ErrConnectionClosed。
func (s *Session) Send(f codec.Frame) error {
	if s.Closed() {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.f.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.f.WriteFrame(f); err != nil {
		if errors.Is(err, codec.ErrInvalidFrame) || errors.Is(err, codec.ErrFrameTooLarge) ||
			errors.Is(err, codec.ErrUnencodablePayload) {
			return err
		}
		s.terminate(err, false)
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	s.metrics.FrameSent(f.Kind.String())
	return nil
}

// Close 关闭会话并等待读取任务退出
func (s *Session) Close() error {
	s.terminate(nil, true)
	<-s.done
	return nil
}

// terminate 只生效一次：记录原因并关闭底层连接
func (s *Session) terminate(cause error, local bool) {
	s.closeOnce.Do(func() {
		if !local {
			s.errMu.Lock()
			s.err = fmt.Errorf("%w: %v", ErrConnectionClosed, cause)
			s.errMu.Unlock()
		}
		close(s.closing)
		_ = s.f.Close()
	})
}

// readLoop 后台读取任务
func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.inbound)

	for {
		f, err := s.f.ReadFrame()
		if err != nil {
			if errors.Is(err, codec.ErrMalformedFrame) {
				s.discard(err)
				continue
			}
			s.terminate(err, false)
			if s.Err() != nil {
				logger.Warn("Daemon 连接断开", "remote", s.f.RemoteAddr(), "error", err)
			}
			return
		}

		s.metrics.FrameReceived(f.Kind.String())
		select {
		case s.inbound <- f:
		case <-s.closing:
			return
		}
	}
}

// discard 丢弃格式错误的帧
func (s *Session) discard(err error) {
	s.metrics.FrameMalformed()
	if !s.warnLimiter.Allow() {
		s.suppressed.Add(1)
		return
	}
	logger.Warn("丢弃格式错误的帧",
		"remote", s.f.RemoteAddr(),
		"error", err,
		"suppressed", s.suppressed.Swap(0))
}
