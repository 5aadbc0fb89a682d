// Package metrics 提供节点运行时的 Prometheus 监控指标
//
// 每个节点拥有独立的指标集合（带有 node 常量标签），默认注册到节点私有的
// prometheus.Registry，多个节点在同一进程内互不干扰。
//
// # 指标
//
//   - tagentacle_frames_received_total{kind}      入站帧计数
//   - tagentacle_frames_sent_total{kind}          出站帧计数
//   - tagentacle_frames_malformed_total           格式错误被丢弃的帧
//   - tagentacle_frames_dropped_total{reason}     未能路由的帧（late / unknown / unexpected）
//   - tagentacle_pending_calls                    未完成的服务调用数
//   - tagentacle_service_call_duration_seconds{service,outcome}
//   - tagentacle_callback_failures_total{topic}
//   - tagentacle_handler_failures_total{service,reason}
//   - tagentacle_lifecycle_transitions_total{transition,result}
//
// 所有方法对 nil *Metrics 安全，组件可以在未启用指标时直接调用。
package metrics
