package interfaces

import (
	"encoding/json"
	"errors"
)

// ErrEmptyPayload 负载为空时无法解码
var ErrEmptyPayload = errors.New("interfaces: empty payload")

// Message 主题消息
type Message struct {
	// Topic 主题名
	Topic string

	// Sender 发布方节点 ID
	Sender string

	// Payload 原始 JSON 负载
	Payload json.RawMessage
}

// Decode 将负载解码到 v
func (m *Message) Decode(v any) error {
	return decodePayload(m.Payload, v)
}

// Request 服务请求
type Request struct {
	// Service 服务名
	Service string

	// CorrelationID 请求关联 ID
	CorrelationID string

	// Sender 调用方节点 ID
	Sender string

	// Payload 原始 JSON 负载
	Payload json.RawMessage
}

// Decode 将负载解码到 v
func (r *Request) Decode(v any) error {
	return decodePayload(r.Payload, v)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(raw, v)
}
