package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Tagentacle/go-sdk/internal/core/metrics"
	"github.com/Tagentacle/go-sdk/internal/core/transport"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
)

// 调用结果分类（指标标签）
const (
	outcomeOK           = "ok"
	outcomeServiceError = "service_error"
	outcomeTimeout      = "timeout"
	outcomeCanceled     = "canceled"
	outcomeClosed       = "closed"
	outcomeSendFailed   = "send_failed"
)

// 无去向帧的分类（指标标签）
const (
	dropLate       = "late"
	dropUnknown    = "unknown"
	dropUnexpected = "unexpected"
)

// ============================================================================
//                              待定调用
// ============================================================================

// pendingCall 一次出站服务调用
type pendingCall struct {
	table   *pendingTable
	id      string
	service string
	session *transport.Session
	started time.Time

	// stop 停止超时计时器与 context 监听，由 finish 调用
	stop func()

	done   chan struct{}
	result json.RawMessage
	err    error
}

var _ interfaces.PendingCall = (*pendingCall)(nil)

func (c *pendingCall) ID() string { return c.id }

func (c *pendingCall) Service() string { return c.service }

func (c *pendingCall) Done() <-chan struct{} { return c.done }

// Result 阻塞直到调用完成
func (c *pendingCall) Result() (json.RawMessage, error) {
	<-c.done
	return c.result, c.err
}

// Cancel 放弃等待，已完成的调用不受影响
func (c *pendingCall) Cancel() {
	c.table.finish(c.id, nil, fmt.Errorf("call %s: %w", c.service, context.Canceled), outcomeCanceled)
}

// ============================================================================
//                              待定调用表
// ============================================================================

type pendingTable struct {
	clock   clock.Clock
	metrics *metrics.Metrics
	prefix  string

	mu      sync.Mutex
	counter uint64
	calls   map[string]*pendingCall

	// 已结束调用的关联 ID，迟到的结果帧据此归类为 late
	expired *lru.Cache[string, struct{}]
}

func newPendingTable(nodeID string, cacheSize int, clk clock.Clock, m *metrics.Metrics) *pendingTable {
	expired, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		// 仅在 cacheSize <= 0 时出错，调用方已保证为正数
		panic(err)
	}
	return &pendingTable{
		clock:   clk,
		metrics: m,
		prefix:  nodeID + "-",
		calls:   make(map[string]*pendingCall),
		expired: expired,
	}
}

// open 分配关联 ID 并登记调用
func (t *pendingTable) open(service string, s *transport.Session) *pendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counter++
	call := &pendingCall{
		table:   t,
		id:      t.prefix + fmt.Sprint(t.counter),
		service: service,
		session: s,
		started: t.clock.Now(),
		stop:    func() {},
		done:    make(chan struct{}),
	}
	t.calls[call.id] = call
	t.metrics.SetPendingCalls(len(t.calls))
	return call
}

// arm 设置调用的清理函数；调用已结束时立即执行
func (t *pendingTable) arm(call *pendingCall, stop func()) {
	t.mu.Lock()
	_, live := t.calls[call.id]
	if live {
		call.stop = stop
	}
	t.mu.Unlock()

	if !live {
		stop()
	}
}

// finish 结束调用，返回调用是否仍处于待定状态
func (t *pendingTable) finish(id string, result json.RawMessage, err error, outcome string) bool {
	t.mu.Lock()
	call, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
		t.expired.Add(id, struct{}{})
		t.metrics.SetPendingCalls(len(t.calls))
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	call.stop()
	call.result, call.err = result, err
	close(call.done)

	t.metrics.ObserveCall(call.service, outcome, t.clock.Since(call.started))
	return true
}

// classify 为找不到待定调用的结果帧归类
func (t *pendingTable) classify(id string) string {
	if t.expired.Contains(id) {
		return dropLate
	}
	return dropUnknown
}

// failSession 以 err 结束所有经由会话 s 发出的调用
func (t *pendingTable) failSession(s *transport.Session, err error) int {
	t.mu.Lock()
	ids := make([]string, 0, len(t.calls))
	for id, call := range t.calls {
		if call.session == s {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	n := 0
	for _, id := range ids {
		if t.finish(id, nil, err, outcomeClosed) {
			n++
		}
	}
	return n
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
