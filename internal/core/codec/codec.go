package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireFrame 线上 JSON 结构
type wireFrame struct {
	Op        string          `json:"op"`
	Topic     string          `json:"topic,omitempty"`
	Service   string          `json:"service,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	NodeID    string          `json:"node_id,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	CallerID  string          `json:"caller_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// isControl 控制帧使用 node_id 字段标识发送方
func isControl(k Kind) bool {
	switch k {
	case KindRegister, KindSubscribe, KindUnsubscribe,
		KindAdvertiseService, KindUnadvertiseService:
		return true
	}
	return false
}

// Encode 编码帧为一行 JSON（不含换行符）
func Encode(f Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Payload != nil && !json.Valid(f.Payload) {
		return nil, fmt.Errorf("%w: invalid raw JSON", ErrUnencodablePayload)
	}

	w := wireFrame{
		Op:        f.Kind.String(),
		RequestID: f.CorrelationID,
		CallerID:  f.CallerID,
		Payload:   f.Payload,
	}
	switch {
	case f.Kind.IsTopic():
		w.Topic = f.Name
	case f.Kind.IsService():
		w.Service = f.Name
	}
	if isControl(f.Kind) {
		w.NodeID = f.Sender
	} else {
		w.Sender = f.Sender
	}

	data, err := json.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodablePayload, err)
	}
	return data, nil
}

// Decode 解码一行 JSON 为帧
//
// 所有失败都包装 ErrMalformedFrame。
func Decode(data []byte) (Frame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Frame{}, fmt.Errorf("%w: not a JSON object", ErrMalformedFrame)
	}

	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	kind, ok := ParseKind(w.Op)
	if !ok {
		return Frame{}, fmt.Errorf("%w: unknown op %q", ErrMalformedFrame, w.Op)
	}

	f := Frame{
		Kind:          kind,
		CorrelationID: w.RequestID,
		CallerID:      w.CallerID,
	}
	switch {
	case kind.IsTopic():
		f.Name = w.Topic
	case kind.IsService():
		f.Name = w.Service
	}
	if isControl(kind) {
		f.Sender = w.NodeID
	} else {
		f.Sender = w.Sender
	}
	if f.Sender == "" {
		// 兼容只填写了另一个发送方字段的 Daemon
		if isControl(kind) {
			f.Sender = w.Sender
		} else {
			f.Sender = w.NodeID
		}
	}
	if kind == KindPublish {
		// 主题消息不携带关联 ID
		f.CorrelationID = ""
	}

	if len(w.Payload) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, w.Payload); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		f.Payload = json.RawMessage(buf.Bytes())
	}

	if err := f.Validate(); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}
