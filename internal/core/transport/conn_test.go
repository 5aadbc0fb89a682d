package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
	"github.com/Tagentacle/go-sdk/internal/core/metrics"
)

// ============================================================================
//                              测试用 Daemon
// ============================================================================

// peer Daemon 侧的一条连接
type peer struct {
	conn net.Conn
	r    *codec.Reader
	w    *codec.Writer
}

func (p *peer) read(t *testing.T) codec.Frame {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	f, err := p.r.ReadFrame()
	require.NoError(t, err)
	return f
}

func (p *peer) writeRaw(t *testing.T, line string) {
	t.Helper()
	_, err := p.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

// listen 启动一个接受连接的 TCP 监听器
func listen(t *testing.T) (string, <-chan *peer) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	peers := make(chan *peer, 4)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			peers <- &peer{conn: c, r: codec.NewReader(c, codec.DefaultLimits()), w: codec.NewWriter(c, codec.DefaultLimits())}
		}
	}()
	return "tcp://" + ln.Addr().String(), peers
}

func accept(t *testing.T, peers <-chan *peer) *peer {
	t.Helper()
	select {
	case p := <-peers:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not accept a connection")
		return nil
	}
}

func nextFrame(t *testing.T, s *Session) codec.Frame {
	t.Helper()
	select {
	case f, ok := <-s.Frames():
		require.True(t, ok, "frames channel closed")
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return codec.Frame{}
	}
}

func newTestConn(t *testing.T, addr string, m *metrics.Metrics) *Conn {
	t.Helper()
	c, err := NewConn(Config{Address: addr, NodeID: "node_a"}, m)
	require.NoError(t, err)
	t.Cleanup(func() { c.Disconnect() })
	return c
}

// ============================================================================
//                              测试
// ============================================================================

func TestConn_ConnectSendsRegister(t *testing.T) {
	addr, peers := listen(t)
	c := newTestConn(t, addr, nil)

	s, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "node_a", s.NodeID())
	assert.True(t, c.Connected())

	p := accept(t, peers)
	f := p.read(t)
	assert.Equal(t, codec.KindRegister, f.Kind)
	assert.Equal(t, "node_a", f.Sender)
}

func TestConn_AlreadyConnected(t *testing.T) {
	addr, _ := listen(t)
	c := newTestConn(t, addr, nil)

	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	_, err = c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestConn_SendWithoutSession(t *testing.T) {
	c := newTestConn(t, "tcp://127.0.0.1:1", nil)

	err := c.Send(codec.Frame{Kind: codec.KindPublish, Name: "/chat"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, c.Connected())
}

func TestConn_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := "tcp://" + ln.Addr().String()
	ln.Close()

	c := newTestConn(t, addr, nil)
	_, err = c.Connect(context.Background())
	assert.Error(t, err)
	assert.False(t, c.Connected())
}

func TestSession_DeliversFramesAndSkipsMalformed(t *testing.T) {
	addr, peers := listen(t)
	reg := prometheus.NewRegistry()
	c := newTestConn(t, addr, metrics.New("node_a", reg))

	s, err := c.Connect(context.Background())
	require.NoError(t, err)
	p := accept(t, peers)
	p.read(t) // register

	p.writeRaw(t, "this is not json")
	p.writeRaw(t, `{"op":"frobnicate","topic":"/x"}`)
	p.writeRaw(t, `{"op":"message","topic":"/chat","sender":"node_b","payload":{"text":"hi"}}`)

	f := nextFrame(t, s)
	assert.Equal(t, codec.KindPublish, f.Kind)
	assert.Equal(t, "/chat", f.Name)
	assert.Equal(t, "node_b", f.Sender)
	assert.JSONEq(t, `{"text":"hi"}`, string(f.Payload))
	assert.False(t, s.Closed())

	expected := `
# HELP tagentacle_frames_malformed_total Inbound frames discarded because they could not be decoded.
# TYPE tagentacle_frames_malformed_total counter
tagentacle_frames_malformed_total{node="node_a"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tagentacle_frames_malformed_total"))
}

func TestSession_SendWritesLine(t *testing.T) {
	addr, peers := listen(t)
	c := newTestConn(t, addr, nil)

	_, err := c.Connect(context.Background())
	require.NoError(t, err)
	p := accept(t, peers)
	p.read(t)

	f, err := codec.NewFrame(codec.KindPublish, "/chat", map[string]string{"text": "hello"})
	require.NoError(t, err)
	f.Sender = "node_a"
	require.NoError(t, c.Send(f))

	got := p.read(t)
	assert.Equal(t, f.Name, got.Name)
	assert.Equal(t, "node_a", got.Sender)
	assert.JSONEq(t, `{"text":"hello"}`, string(got.Payload))

	// 非法帧不会终止会话
	err = c.Send(codec.Frame{Kind: codec.KindServiceCall, Name: "/svc"})
	assert.ErrorIs(t, err, codec.ErrInvalidFrame)
	assert.True(t, c.Connected())
}

func TestSession_RemoteClose(t *testing.T) {
	addr, peers := listen(t)
	c := newTestConn(t, addr, nil)

	s, err := c.Connect(context.Background())
	require.NoError(t, err)
	p := accept(t, peers)
	p.read(t)
	p.conn.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after remote close")
	}
	assert.ErrorIs(t, s.Err(), ErrConnectionClosed)
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Send(codec.Frame{Kind: codec.KindPublish, Name: "/x"}), ErrNotConnected)

	_, ok := <-s.Frames()
	assert.False(t, ok)
}

func TestConn_DisconnectAndReconnect(t *testing.T) {
	addr, peers := listen(t)
	c := newTestConn(t, addr, nil)

	s, err := c.Connect(context.Background())
	require.NoError(t, err)
	accept(t, peers)

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())

	<-s.Done()
	assert.NoError(t, s.Err())
	assert.False(t, c.Connected())

	_, err = c.Connect(context.Background())
	require.NoError(t, err)
	p := accept(t, peers)
	assert.Equal(t, codec.KindRegister, p.read(t).Kind)
}

func TestConn_WebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	registered := make(chan codec.Frame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		f, err := codec.Decode(data)
		if err != nil {
			return
		}
		registered <- f

		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"op":"publish","topic":"/ws","sender":"d","payload":1}`))
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	addr := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/bus"
	c := newTestConn(t, addr, nil)

	s, err := c.Connect(context.Background())
	require.NoError(t, err)

	select {
	case f := <-registered:
		assert.Equal(t, codec.KindRegister, f.Kind)
		assert.Equal(t, "node_a", f.Sender)
	case <-time.After(2 * time.Second):
		t.Fatal("no register message")
	}

	f := nextFrame(t, s)
	assert.Equal(t, "/ws", f.Name)
	assert.Equal(t, "1", string(f.Payload))
}

func TestModule_StopDisconnects(t *testing.T) {
	addr, peers := listen(t)

	var c *Conn
	app := fxtest.New(t,
		fx.Supply(Config{Address: addr, NodeID: "node_a"}),
		fx.Provide(func() *metrics.Metrics { return nil }),
		Module(),
		fx.Populate(&c),
	)
	app.RequireStart()

	_, err := c.Connect(context.Background())
	require.NoError(t, err)
	accept(t, peers)

	app.RequireStop()
	assert.False(t, c.Connected())
}
