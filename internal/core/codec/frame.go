package codec

import (
	"encoding/json"
	"fmt"
)

// Kind 帧类型
type Kind int

const (
	// KindUnknown 未知类型（零值，永远不会出现在合法帧中）
	KindUnknown Kind = iota

	// ═══════════════════════════ 节点 → Daemon 控制帧 ═══════════════════════

	// KindRegister 连接握手，声明节点 ID
	KindRegister
	// KindSubscribe 订阅主题
	KindSubscribe
	// KindUnsubscribe 取消订阅
	KindUnsubscribe
	// KindAdvertiseService 声明服务
	KindAdvertiseService
	// KindUnadvertiseService 撤销服务
	KindUnadvertiseService

	// ═══════════════════════════ 路由帧 ═══════════════════════════════════

	// KindPublish 主题消息
	KindPublish
	// KindSubscribeAck 订阅确认
	KindSubscribeAck
	// KindServiceCall 服务调用
	KindServiceCall
	// KindServiceResult 服务调用成功结果
	KindServiceResult
	// KindServiceError 服务调用失败
	KindServiceError
)

// opMessage 是 Daemon 转发主题消息时使用的 op，解码为 KindPublish
const opMessage = "message"

var kindOps = map[Kind]string{
	KindRegister:           "register",
	KindSubscribe:          "subscribe",
	KindUnsubscribe:        "unsubscribe",
	KindAdvertiseService:   "advertise_service",
	KindUnadvertiseService: "unadvertise_service",
	KindPublish:            "publish",
	KindSubscribeAck:       "subscribe_ack",
	KindServiceCall:        "call_service",
	KindServiceResult:      "service_response",
	KindServiceError:       "service_error",
}

var opKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindOps)+1)
	for k, op := range kindOps {
		m[op] = k
	}
	m[opMessage] = KindPublish
	return m
}()

// String 返回帧类型的线上 op 名称
func (k Kind) String() string {
	if op, ok := kindOps[k]; ok {
		return op
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// ParseKind 解析线上 op 名称
func ParseKind(op string) (Kind, bool) {
	k, ok := opKinds[op]
	return k, ok
}

// IsTopic 类型的名称字段是否为主题
func (k Kind) IsTopic() bool {
	switch k {
	case KindSubscribe, KindUnsubscribe, KindPublish, KindSubscribeAck:
		return true
	}
	return false
}

// IsService 类型的名称字段是否为服务名
func (k Kind) IsService() bool {
	switch k {
	case KindAdvertiseService, KindUnadvertiseService,
		KindServiceCall, KindServiceResult, KindServiceError:
		return true
	}
	return false
}

// NeedsCorrelation 类型是否必须携带关联 ID
func (k Kind) NeedsCorrelation() bool {
	switch k {
	case KindServiceCall, KindServiceResult, KindServiceError:
		return true
	}
	return false
}

// Frame 一个完整的总线帧
type Frame struct {
	// Kind 帧类型，唯一决定帧的去向
	Kind Kind

	// Name 主题名或服务名（由 Kind 决定）
	Name string

	// CorrelationID 关联 ID，服务调用/结果/错误帧必需，主题消息不携带
	CorrelationID string

	// Sender 发送方节点 ID
	Sender string

	// CallerID 服务结果/错误帧的目标调用方
	CallerID string

	// Payload 任意 JSON 值
	Payload json.RawMessage
}

// NewFrame 使用任意可 JSON 化的负载创建帧
//
// payload 为 nil 时帧不携带负载；json.RawMessage 原样使用（仍会校验合法性）。
func NewFrame(kind Kind, name string, payload any) (Frame, error) {
	raw, err := MarshalPayload(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Kind: kind, Name: name, Payload: raw}, nil
}

// MarshalPayload 将任意值编码为 JSON 负载
func MarshalPayload(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: invalid raw JSON", ErrUnencodablePayload)
		}
		return v, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodablePayload, err)
	}
	return raw, nil
}

// Validate 校验帧是否满足其类型的字段要求
func (f Frame) Validate() error {
	if _, ok := kindOps[f.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidFrame, int(f.Kind))
	}
	if (f.Kind.IsTopic() || f.Kind.IsService()) && f.Name == "" {
		return fmt.Errorf("%w: %s requires a name", ErrInvalidFrame, f.Kind)
	}
	if f.Kind.NeedsCorrelation() && f.CorrelationID == "" {
		return fmt.Errorf("%w: %s requires a correlation id", ErrInvalidFrame, f.Kind)
	}
	if f.Kind == KindPublish && f.CorrelationID != "" {
		return fmt.Errorf("%w: publish must not carry a correlation id", ErrInvalidFrame)
	}
	return nil
}
