package transport

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
)

// wsFramer 每个 WebSocket 消息承载一个帧
type wsFramer struct {
	conn *websocket.Conn
}

func dialWebSocket(ctx context.Context, addr Address, cfg Config) (framer, error) {
	u := url.URL{Scheme: string(addr.Scheme), Host: addr.Host, Path: addr.Path}
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.DialTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newWSFramer(conn, cfg.Limits), nil
}

func newWSFramer(conn *websocket.Conn, limits codec.Limits) *wsFramer {
	// 额外的余量容纳消息末尾可能存在的换行
	conn.SetReadLimit(int64(limits.MaxFrameBytes) + 1)
	return &wsFramer{conn: conn}
}

// ReadFrame 读取下一条消息并解码
//
// 超过读取上限的消息由 gorilla 视为协议错误并关闭连接。
func (w *wsFramer) ReadFrame() (codec.Frame, error) {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return codec.Frame{}, err
		}
		if len(data) == 0 {
			continue
		}
		return codec.Decode(data)
	}
}

func (w *wsFramer) WriteFrame(f codec.Frame) error {
	data, err := codec.Encode(f)
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsFramer) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}

// Close 发送关闭控制帧后关闭底层连接
func (w *wsFramer) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

func (w *wsFramer) RemoteAddr() string { return w.conn.RemoteAddr().String() }
