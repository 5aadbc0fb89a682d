package codec

import "errors"

// 错误定义
var (
	// ErrMalformedFrame 帧格式错误（可恢复，丢弃该帧即可）
	ErrMalformedFrame = errors.New("codec: malformed frame")

	// ErrUnencodablePayload 负载无法表示为 JSON
	ErrUnencodablePayload = errors.New("codec: payload is not JSON-representable")

	// ErrInvalidFrame 待编码的帧缺少必需字段
	ErrInvalidFrame = errors.New("codec: invalid frame")

	// ErrFrameTooLarge 帧超过大小限制
	ErrFrameTooLarge = errors.New("codec: frame too large")
)
