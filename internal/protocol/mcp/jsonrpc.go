package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 错误码
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// kind JSON-RPC 消息类别
type kind int

const (
	kindInvalid kind = iota
	kindRequest
	kindNotification
	kindResponse
)

// envelope 只解析路由需要的字段
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError JSON-RPC 错误对象
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// parse 解析消息并判断类别
func parse(msg json.RawMessage) (envelope, kind, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return env, kindInvalid, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	hasID := len(env.ID) > 0 && !bytes.Equal(env.ID, []byte("null"))
	switch {
	case env.Method != "" && hasID:
		return env, kindRequest, nil
	case env.Method != "":
		return env, kindNotification, nil
	case hasID && (env.Result != nil || env.Error != nil):
		return env, kindResponse, nil
	}
	return env, kindInvalid, fmt.Errorf("%w: neither request, notification nor response", ErrInvalidMessage)
}

// idKey 把 JSON id 规范化为可比较的键
func idKey(id json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, id); err != nil {
		return string(id)
	}
	return buf.String()
}

// withID 替换消息的 id 字段，其余字段原样保留
func withID(msg json.RawMessage, id json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidMessage)
	}
	fields["id"] = id
	return json.Marshal(fields)
}

// errorResponse 构造 JSON-RPC 错误响应
func errorResponse(id json.RawMessage, code int, message string) json.RawMessage {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	raw, _ := json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Error   *RPCError       `json:"error"`
	}{"2.0", id, &RPCError{Code: code, Message: message}})
	return raw
}
