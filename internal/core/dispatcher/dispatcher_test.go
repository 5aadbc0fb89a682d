package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tagentacle/go-sdk/internal/core/metrics"
	"github.com/Tagentacle/go-sdk/internal/core/transport"
	"github.com/Tagentacle/go-sdk/internal/testutil/testdaemon"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
)

// ============================================================================
//                              测试辅助
// ============================================================================

const waitFor = 3 * time.Second

func startDaemon(t *testing.T) *testdaemon.Daemon {
	t.Helper()
	d, err := testdaemon.Start()
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

type testNode struct {
	*Dispatcher
	daemon *testdaemon.Daemon
	reg    *prometheus.Registry
	mock   *clock.Mock
	spinCh chan error
}

type nodeOption func(*testNode)

func withMockClock() nodeOption {
	return func(n *testNode) { n.mock = clock.NewMock() }
}

// newNode 创建未连接的节点
func newNode(t *testing.T, d *testdaemon.Daemon, id string, opts ...nodeOption) *testNode {
	t.Helper()
	n := &testNode{daemon: d, reg: prometheus.NewRegistry(), spinCh: make(chan error, 1)}
	for _, opt := range opts {
		opt(n)
	}

	m := metrics.New(id, n.reg)
	conn, err := transport.NewConn(transport.Config{Address: d.Addr(), NodeID: id}, m)
	require.NoError(t, err)

	var clk clock.Clock
	if n.mock != nil {
		clk = n.mock
	}
	n.Dispatcher = New(Config{}, conn, clk, m)
	t.Cleanup(func() { n.Disconnect() })
	return n
}

// start 连接并在后台运行调度循环
func (n *testNode) start(t *testing.T) *testNode {
	t.Helper()
	require.NoError(t, n.Connect(context.Background()))
	waitRegistered(t, n.daemon, n.NodeID())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { n.spinCh <- n.Spin(ctx) }()
	require.Eventually(t, n.spinning.Load, waitFor, time.Millisecond)
	return n
}

// waitRegistered 等待 Daemon 处理注册帧，之后 Kick 与 Inject 才能找到该节点
func waitRegistered(t *testing.T, d *testdaemon.Daemon, id string) {
	t.Helper()
	require.Eventually(t, func() bool { return d.Registered(id) }, waitFor, 5*time.Millisecond)
}

func startNode(t *testing.T, d *testdaemon.Daemon, id string, opts ...nodeOption) *testNode {
	return newNode(t, d, id, opts...).start(t)
}

// dropped 期望的丢帧计数
func (n *testNode) dropped(reason string, count int) func() bool {
	expected := fmt.Sprintf(`
# HELP tagentacle_frames_dropped_total Inbound frames that had no destination, by reason.
# TYPE tagentacle_frames_dropped_total counter
tagentacle_frames_dropped_total{node=%q,reason=%q} %d
`, n.NodeID(), reason, count)
	return func() bool {
		return testutil.GatherAndCompare(n.reg, strings.NewReader(expected), "tagentacle_frames_dropped_total") == nil
	}
}

func waitSubscribed(t *testing.T, d *testdaemon.Daemon, topic string, nodes ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(nodes, d.Subscribers(topic))
	}, waitFor, 10*time.Millisecond)
}

func waitProvided(t *testing.T, d *testdaemon.Daemon, service, node string) {
	t.Helper()
	require.Eventually(t, func() bool {
		owner, ok := d.Provider(service)
		return ok && owner == node
	}, waitFor, 10*time.Millisecond)
}

// ============================================================================
//                              发布订阅
// ============================================================================

func TestPublishSubscribe_PreservesOrder(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")

	var (
		mu  sync.Mutex
		got []int
	)
	_, err := b.Subscribe("/counter", func(_ context.Context, msg *interfaces.Message) error {
		var v int
		if err := msg.Decode(&v); err != nil {
			return err
		}
		assert.Equal(t, "node_a", msg.Sender)
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	waitSubscribed(t, d, "/counter", "node_b")

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, a.Publish(context.Background(), "/counter", i))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == n
	}, waitFor, 10*time.Millisecond)

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSubscribe_DuplicateCallbacksBothFire(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")

	var calls sync.WaitGroup
	calls.Add(2)
	handler := func(context.Context, *interfaces.Message) error {
		calls.Done()
		return nil
	}
	_, err := a.Subscribe("/dup", handler)
	require.NoError(t, err)
	_, err = a.Subscribe("/dup", handler)
	require.NoError(t, err)
	waitSubscribed(t, d, "/dup", "node_a")

	require.NoError(t, a.Publish(context.Background(), "/dup", "x"))

	done := make(chan struct{})
	go func() { calls.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("both callbacks should fire")
	}
}

func TestCallbackFailuresAreIsolated(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")

	received := make(chan string, 4)
	_, err := a.Subscribe("/fragile", func(context.Context, *interfaces.Message) error {
		panic("boom")
	})
	require.NoError(t, err)
	_, err = a.Subscribe("/fragile", func(context.Context, *interfaces.Message) error {
		return errors.New("refused")
	})
	require.NoError(t, err)
	_, err = a.Subscribe("/fragile", func(_ context.Context, msg *interfaces.Message) error {
		received <- string(msg.Payload)
		return nil
	})
	require.NoError(t, err)
	waitSubscribed(t, d, "/fragile", "node_a")

	require.NoError(t, a.Publish(context.Background(), "/fragile", "one"))
	require.NoError(t, a.Publish(context.Background(), "/fragile", "two"))

	for _, want := range []string{`"one"`, `"two"`} {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(waitFor):
			t.Fatal("healthy callback did not run")
		}
	}
	assert.True(t, a.Connected())
}

func TestRegistrationsBeforeConnectAreAnnounced(t *testing.T) {
	d := startDaemon(t)
	a := newNode(t, d, "node_a")

	_, err := a.Subscribe("/early", func(context.Context, *interfaces.Message) error { return nil })
	require.NoError(t, err)
	require.NoError(t, a.Service("/early/svc", func(context.Context, *interfaces.Request) (any, error) {
		return "ok", nil
	}))

	a.start(t)
	waitSubscribed(t, d, "/early", "node_a")
	waitProvided(t, d, "/early/svc", "node_a")
}

func TestUnsubscribe_LastRemovalUnsubscribes(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")

	noop := func(context.Context, *interfaces.Message) error { return nil }
	s1, err := a.Subscribe("/t", noop)
	require.NoError(t, err)
	s2, err := a.Subscribe("/t", noop)
	require.NoError(t, err)
	assert.Equal(t, "/t", s1.Topic())
	waitSubscribed(t, d, "/t", "node_a")

	a.Unsubscribe(s1)
	a.Unsubscribe(s1)
	// 还剩一个回调，Daemon 侧仍订阅
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"node_a"}, d.Subscribers("/t"))

	a.Unsubscribe(s2)
	waitSubscribed(t, d, "/t")
	a.Unsubscribe(nil)
}

func TestPublish_Errors(t *testing.T) {
	d := startDaemon(t)
	a := newNode(t, d, "node_a")

	assert.ErrorIs(t, a.Publish(context.Background(), "/t", 1), ErrNotConnected)
	assert.ErrorIs(t, a.Publish(context.Background(), "", 1), ErrEmptyName)

	a.start(t)
	assert.Error(t, a.Publish(context.Background(), "/t", make(chan int)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Publish(ctx, "/t", 1), context.Canceled)

	_, err := a.Subscribe("", func(context.Context, *interfaces.Message) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyName)
	_, err = a.Subscribe("/t", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

// ============================================================================
//                              服务调用
// ============================================================================

func TestCallService_RoundTrip(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")

	require.NoError(t, b.Service("/math/add", func(_ context.Context, req *interfaces.Request) (any, error) {
		var args struct{ A, B int }
		if err := req.Decode(&args); err != nil {
			return nil, err
		}
		assert.Equal(t, "node_a", req.Sender)
		return map[string]int{"sum": args.A + args.B}, nil
	}))
	waitProvided(t, d, "/math/add", "node_b")

	raw, err := a.CallService(context.Background(), "/math/add", map[string]int{"A": 2, "B": 3}, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":5}`, string(raw))
}

func TestCallService_ConcurrentCallsResolveIndependently(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")

	require.NoError(t, b.Service("/echo", func(_ context.Context, req *interfaces.Request) (any, error) {
		return req.Payload, nil
	}))
	waitProvided(t, d, "/echo", "node_b")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, err := a.CallService(context.Background(), "/echo", i, 2*time.Second)
			if assert.NoError(t, err) {
				assert.Equal(t, fmt.Sprint(i), string(raw))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, a.pending.len())
}

func TestCallService_NoSuchService(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")

	_, err := a.CallService(context.Background(), "/missing", nil, time.Second)
	assert.ErrorIs(t, err, interfaces.ErrNoSuchService)
}

func TestCallService_UnregisteredOnProvider(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")

	require.NoError(t, b.Service("/gone", func(context.Context, *interfaces.Request) (any, error) { return 1, nil }))
	waitProvided(t, d, "/gone", "node_b")

	// 本地移除处理器但 Daemon 侧仍有路由时，由节点自己回复 no_such_service
	b.services.remove("/gone")

	_, err := a.CallService(context.Background(), "/gone", nil, time.Second)
	assert.ErrorIs(t, err, interfaces.ErrNoSuchService)
}

func TestCallService_BusinessErrorVerbatim(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")

	require.NoError(t, b.Service("/bank/withdraw", func(context.Context, *interfaces.Request) (any, error) {
		return nil, interfaces.NewServiceError(map[string]any{"reason": "insufficient funds", "balance": 3})
	}))
	require.NoError(t, b.Service("/plain", func(context.Context, *interfaces.Request) (any, error) {
		return nil, errors.New("not today")
	}))
	waitProvided(t, d, "/plain", "node_b")

	_, err := a.CallService(context.Background(), "/bank/withdraw", nil, time.Second)
	var se *interfaces.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "/bank/withdraw", se.Service)
	assert.JSONEq(t, `{"reason":"insufficient funds","balance":3}`, string(se.Payload))

	_, err = a.CallService(context.Background(), "/plain", nil, time.Second)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "not today", se.Message())
}

func TestCallService_HandlerPanic(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")

	var calls atomic.Int32
	require.NoError(t, b.Service("/flaky", func(context.Context, *interfaces.Request) (any, error) {
		if calls.Add(1) == 1 {
			panic("first call explodes")
		}
		return "recovered", nil
	}))
	waitProvided(t, d, "/flaky", "node_b")

	_, err := a.CallService(context.Background(), "/flaky", nil, time.Second)
	assert.ErrorIs(t, err, interfaces.ErrHandlerFailure)

	raw, err := a.CallService(context.Background(), "/flaky", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, `"recovered"`, string(raw))
}

func TestCallService_TimeoutAndLateResult(t *testing.T) {
	d := startDaemon(t)
	d.Blackhole("/slow")
	a := startNode(t, d, "node_a", withMockClock())

	call, err := a.CallServiceAsync(context.Background(), "/slow", nil, 5*time.Second)
	require.NoError(t, err)

	a.mock.Add(4 * time.Second)
	select {
	case <-call.Done():
		t.Fatal("call finished before its deadline")
	default:
	}

	a.mock.Add(time.Second)
	_, err = call.Result()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, a.pending.len())

	late := fmt.Sprintf(`{"op":"service_response","service":"/slow","request_id":%q,"caller_id":"node_a","payload":1}`, call.ID())
	require.NoError(t, d.Inject("node_a", []byte(late)))
	require.Eventually(t, a.dropped(dropLate, 1), waitFor, 10*time.Millisecond)

	unknown := `{"op":"service_response","service":"/slow","request_id":"never-issued","caller_id":"node_a"}`
	require.NoError(t, d.Inject("node_a", []byte(unknown)))
	require.Eventually(t, a.dropped(dropUnknown, 1), waitFor, 10*time.Millisecond)
}

func TestCallService_DefaultTimeout(t *testing.T) {
	d := startDaemon(t)
	d.Blackhole("/slow")
	a := startNode(t, d, "node_a", withMockClock())

	call, err := a.CallServiceAsync(context.Background(), "/slow", nil, 0)
	require.NoError(t, err)

	a.mock.Add(DefaultConfig().CallTimeout)
	_, err = call.Result()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCallService_ContextCanceled(t *testing.T) {
	d := startDaemon(t)
	d.Blackhole("/slow")
	a := startNode(t, d, "node_a")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := a.CallService(ctx, "/slow", nil, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)

	call, err := a.CallServiceAsync(context.Background(), "/slow", nil, time.Minute)
	require.NoError(t, err)
	call.Cancel()
	_, err = call.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.pending.len())
}

func TestCallService_NotConnected(t *testing.T) {
	d := startDaemon(t)
	a := newNode(t, d, "node_a")

	_, err := a.CallService(context.Background(), "/x", nil, time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = a.CallService(context.Background(), "", nil, time.Second)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestUnsubscribe_ForeignHandleIsNoop(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")
	pub := startNode(t, d, "node_pub")

	var received atomic.Int32
	_, err := a.Subscribe("/t", func(context.Context, *interfaces.Message) error {
		received.Add(1)
		return nil
	})
	require.NoError(t, err)
	bSub, err := b.Subscribe("/t", func(context.Context, *interfaces.Message) error { return nil })
	require.NoError(t, err)
	waitSubscribed(t, d, "/t", "node_a", "node_b")

	// b 的句柄不能移除 a 的订阅
	a.Unsubscribe(bSub)
	a.Unsubscribe(nil)

	require.NoError(t, pub.Publish(context.Background(), "/t", 1))
	require.Eventually(t, func() bool { return received.Load() == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []string{"node_a", "node_b"}, d.Subscribers("/t"))
}

func TestSlowCallbackDoesNotBlockCalls(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")

	release := make(chan struct{})
	entered := make(chan struct{})
	_, err := b.Subscribe("/slow-topic", func(context.Context, *interfaces.Message) error {
		close(entered)
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, b.Service("/echo", func(_ context.Context, req *interfaces.Request) (any, error) {
		return req.Payload, nil
	}))
	waitSubscribed(t, d, "/slow-topic", "node_b")
	waitProvided(t, d, "/echo", "node_b")

	require.NoError(t, a.Publish(context.Background(), "/slow-topic", 1))
	<-entered

	raw, err := a.CallService(context.Background(), "/echo", "still alive", time.Second)
	require.NoError(t, err)
	assert.Equal(t, `"still alive"`, string(raw))
	close(release)
}

func TestHandlerCanCallWhileServing(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")
	b := startNode(t, d, "node_b")

	require.NoError(t, a.Service("/inner", func(context.Context, *interfaces.Request) (any, error) {
		return "inner", nil
	}))
	require.NoError(t, b.Service("/outer", func(ctx context.Context, _ *interfaces.Request) (any, error) {
		raw, err := b.CallService(ctx, "/inner", nil, time.Second)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	}))
	waitProvided(t, d, "/inner", "node_a")
	waitProvided(t, d, "/outer", "node_b")

	raw, err := a.CallService(context.Background(), "/outer", nil, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, `"inner"`, string(raw))
}

func TestService_Registration(t *testing.T) {
	d := startDaemon(t)
	a := startNode(t, d, "node_a")

	h := func(context.Context, *interfaces.Request) (any, error) { return nil, nil }
	require.NoError(t, a.Service("/svc", h))
	assert.ErrorIs(t, a.Service("/svc", h), ErrServiceExists)
	waitProvided(t, d, "/svc", "node_a")

	require.NoError(t, a.Unservice("/svc"))
	assert.ErrorIs(t, a.Unservice("/svc"), ErrServiceNotFound)
	require.Eventually(t, func() bool {
		_, ok := d.Provider("/svc")
		return !ok
	}, waitFor, 10*time.Millisecond)

	assert.ErrorIs(t, a.Service("", h), ErrEmptyName)
	assert.ErrorIs(t, a.Service("/nil", nil), ErrNilHandler)
}

// ============================================================================
//                              断开
// ============================================================================

func TestDisconnect_FailsPendingCalls(t *testing.T) {
	d := startDaemon(t)
	d.Blackhole("/slow")
	a := startNode(t, d, "node_a")

	_, err := a.Subscribe("/kept", func(context.Context, *interfaces.Message) error { return nil })
	require.NoError(t, err)

	call, err := a.CallServiceAsync(context.Background(), "/slow", nil, time.Minute)
	require.NoError(t, err)

	require.NoError(t, a.Disconnect())
	select {
	case <-call.Done():
	default:
		t.Fatal("pending call must finish before Disconnect returns")
	}
	_, err = call.Result()
	assert.ErrorIs(t, err, ErrConnectionClosed)

	select {
	case err := <-a.spinCh:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("spin did not stop")
	}

	// 注册在断开后保留，重连时重新声明
	require.Eventually(t, func() bool { return !d.Registered("node_a") }, waitFor, 5*time.Millisecond)
	require.NoError(t, a.Connect(context.Background()))
	waitSubscribed(t, d, "/kept", "node_a")
}

func TestRemoteClose_StopsSpinAndFailsCalls(t *testing.T) {
	d := startDaemon(t)
	d.Blackhole("/slow")
	a := startNode(t, d, "node_a")

	call, err := a.CallServiceAsync(context.Background(), "/slow", nil, time.Minute)
	require.NoError(t, err)

	require.True(t, d.Kick("node_a"))

	select {
	case err := <-a.spinCh:
		assert.ErrorIs(t, err, ErrConnectionClosed)
	case <-time.After(waitFor):
		t.Fatal("spin did not stop")
	}
	_, err = call.Result()
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.False(t, a.Connected())
}

func TestSpin_Guards(t *testing.T) {
	d := startDaemon(t)
	a := newNode(t, d, "node_a")

	assert.ErrorIs(t, a.Spin(context.Background()), ErrNotConnected)

	a.start(t)
	require.Eventually(t, a.spinning.Load, waitFor, time.Millisecond)
	assert.ErrorIs(t, a.Spin(context.Background()), ErrAlreadySpinning)

	b := newNode(t, d, "node_b")
	require.NoError(t, b.Connect(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Spin(ctx), context.Canceled)
}
