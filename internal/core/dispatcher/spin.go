package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

// Spin 运行调度循环
//
// 返回值：ctx 取消时返回 ctx.Err()；本地 Disconnect 返回 nil；
// 远端断开返回包装 ErrConnectionClosed 的错误。
func (d *Dispatcher) Spin(ctx context.Context) error {
	if !d.spinning.CompareAndSwap(false, true) {
		return ErrAlreadySpinning
	}
	defer d.spinning.Store(false)

	s, ok := d.link.Session()
	if !ok {
		return ErrNotConnected
	}

	logger.Debug("调度循环启动", "nodeID", d.NodeID())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-s.Frames():
			if !ok {
				return s.Err()
			}
			d.route(f)
		}
	}
}

// route 只依据帧类型与名称/关联 ID 决定去向
func (d *Dispatcher) route(f codec.Frame) {
	switch f.Kind {
	case codec.KindPublish:
		d.deliver(f)
	case codec.KindServiceCall:
		d.serve(f)
	case codec.KindServiceResult:
		d.resolve(f, f.Payload, nil)
	case codec.KindServiceError:
		d.resolve(f, nil, &interfaces.ServiceError{Service: f.Name, Payload: f.Payload})
	case codec.KindSubscribeAck:
		logger.Debug("订阅已确认", "topic", f.Name)
	default:
		d.metrics.FrameDropped(dropUnexpected)
		logger.Debug("丢弃非预期的帧", "op", f.Kind.String(), "name", f.Name)
	}
}

// ============================================================================
//                              主题投递
// ============================================================================

// deliver 将消息交给主题的串行队列
func (d *Dispatcher) deliver(f codec.Frame) {
	subs := d.subs.snapshot(f.Name)
	if len(subs) == 0 {
		d.metrics.FrameDropped(dropUnknown)
		return
	}

	ctx := d.currentScope()
	d.topics.push(f.Name, func() {
		for _, sub := range subs {
			msg := &interfaces.Message{Topic: f.Name, Sender: f.Sender, Payload: f.Payload}
			d.invokeCallback(ctx, sub, msg)
		}
	})
}

// invokeCallback 调用一个回调，错误与 panic 都不会影响其他回调
func (d *Dispatcher) invokeCallback(ctx context.Context, sub *subscription, msg *interfaces.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.CallbackFailed(sub.topic)
			logger.Error("订阅回调 panic", "topic", sub.topic, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := sub.handler(ctx, msg); err != nil {
		d.metrics.CallbackFailed(sub.topic)
		logger.Warn("订阅回调失败", "topic", sub.topic, "sender", msg.Sender, "error", err)
	}
}

// ============================================================================
//                              服务处理
// ============================================================================

// serve 在独立 goroutine 中执行服务处理器，恰好回复一次
func (d *Dispatcher) serve(f codec.Frame) {
	handler, ok := d.services.lookup(f.Name)
	if !ok {
		d.metrics.HandlerFailed(f.Name, interfaces.CodeNoSuchService)
		d.reply(f, nil, interfaces.NewCodedError(interfaces.CodeNoSuchService, "no such service: "+f.Name))
		return
	}

	ctx := d.currentScope()
	req := &interfaces.Request{
		Service:       f.Name,
		CorrelationID: f.CorrelationID,
		Sender:        f.Sender,
		Payload:       f.Payload,
	}
	go func() {
		result, serr := d.invokeHandler(ctx, handler, req)
		d.reply(f, result, serr)
	}()
}

// invokeHandler 将处理器的返回值转换为结果负载或错误负载
func (d *Dispatcher) invokeHandler(ctx context.Context, h interfaces.ServiceHandler, req *interfaces.Request) (result json.RawMessage, serr *interfaces.ServiceError) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.HandlerFailed(req.Service, interfaces.CodeHandlerFailure)
			logger.Error("服务处理器 panic", "service", req.Service, "panic", r, "stack", string(debug.Stack()))
			result, serr = nil, interfaces.NewCodedError(interfaces.CodeHandlerFailure, fmt.Sprint(r))
		}
	}()

	v, err := h(ctx, req)
	if err != nil {
		d.metrics.HandlerFailed(req.Service, "error")
		var se *interfaces.ServiceError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, interfaces.NewServiceError(map[string]string{"error": err.Error()})
	}

	raw, err := codec.MarshalPayload(v)
	if err != nil {
		d.metrics.HandlerFailed(req.Service, interfaces.CodeHandlerFailure)
		return nil, interfaces.NewCodedError(interfaces.CodeHandlerFailure, err.Error())
	}
	return raw, nil
}

// reply 发送服务结果或服务错误
func (d *Dispatcher) reply(call codec.Frame, result json.RawMessage, serr *interfaces.ServiceError) {
	f := codec.Frame{
		Kind:          codec.KindServiceResult,
		Name:          call.Name,
		CorrelationID: call.CorrelationID,
		Sender:        d.NodeID(),
		CallerID:      call.Sender,
		Payload:       result,
	}
	if serr != nil {
		f.Kind = codec.KindServiceError
		f.Payload = serr.Payload
	}

	if err := d.send(f); err != nil {
		logger.Warn("服务回复未发送",
			"service", call.Name,
			"requestID", log.TruncateID(call.CorrelationID, 32),
			"error", err)
	}
}

// ============================================================================
//                              调用结果
// ============================================================================

// resolve 完成对应的待定调用，找不到时丢弃
func (d *Dispatcher) resolve(f codec.Frame, result json.RawMessage, serr *interfaces.ServiceError) {
	var (
		err     error
		outcome = outcomeOK
	)
	if serr != nil {
		err, outcome = serr, outcomeServiceError
	}

	if d.pending.finish(f.CorrelationID, result, err, outcome) {
		return
	}
	reason := d.pending.classify(f.CorrelationID)
	d.metrics.FrameDropped(reason)
	logger.Debug("丢弃无对应调用的结果帧", "service", f.Name, "requestID", f.CorrelationID, "reason", reason)
}
