package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tagentacle"

// Metrics 节点运行时指标集合
type Metrics struct {
	registry prometheus.Gatherer

	framesReceived   *prometheus.CounterVec
	framesSent       *prometheus.CounterVec
	framesMalformed  prometheus.Counter
	framesDropped    *prometheus.CounterVec
	pendingCalls     prometheus.Gauge
	callDuration     *prometheus.HistogramVec
	callbackFailures *prometheus.CounterVec
	handlerFailures  *prometheus.CounterVec
	transitions      *prometheus.CounterVec
}

// New 创建指标集合并注册到 reg
//
// reg 为 nil 时创建私有 Registry。
func New(nodeID string, reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"node": nodeID}, reg))
	return &Metrics{
		registry: gatherer,
		framesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames decoded from the daemon connection, by kind.",
		}, []string{"kind"}),
		framesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the daemon connection, by kind.",
		}, []string{"kind"}),
		framesMalformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_malformed_total",
			Help:      "Inbound frames discarded because they could not be decoded.",
		}),
		framesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames that had no destination, by reason.",
		}, []string{"reason"}),
		pendingCalls: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_calls",
			Help:      "Outstanding outbound service calls.",
		}),
		callDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_call_duration_seconds",
			Help:      "Outbound service call latency, by service and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"service", "outcome"}),
		callbackFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_failures_total",
			Help:      "Subscriber callbacks that returned an error or panicked, by topic.",
		}, []string{"topic"}),
		handlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Service handlers that failed, by service and reason.",
		}, []string{"service", "reason"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Lifecycle transitions attempted, by transition and result.",
		}, []string{"transition", "result"}),
	}
}

// Gatherer 返回可供 promhttp 暴露的 Gatherer（外部 Registerer 不可采集时为 nil）
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.registry
}

// FrameReceived 记录一个入站帧
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

// FrameSent 记录一个出站帧
func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(kind).Inc()
}

// FrameMalformed 记录一个被丢弃的格式错误帧
func (m *Metrics) FrameMalformed() {
	if m == nil {
		return
	}
	m.framesMalformed.Inc()
}

// FrameDropped 记录一个无去向的帧
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// SetPendingCalls 设置未完成调用数
func (m *Metrics) SetPendingCalls(n int) {
	if m == nil {
		return
	}
	m.pendingCalls.Set(float64(n))
}

// ObserveCall 记录一次出站服务调用的耗时与结果
func (m *Metrics) ObserveCall(service, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.callDuration.WithLabelValues(service, outcome).Observe(d.Seconds())
}

// CallbackFailed 记录一次订阅回调失败
func (m *Metrics) CallbackFailed(topic string) {
	if m == nil {
		return
	}
	m.callbackFailures.WithLabelValues(topic).Inc()
}

// HandlerFailed 记录一次服务处理器失败
func (m *Metrics) HandlerFailed(service, reason string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(service, reason).Inc()
}

// Transition 记录一次生命周期迁移
func (m *Metrics) Transition(transition, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, result).Inc()
}
