package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 服务错误码
const (
	// CodeNoSuchService 目标节点没有注册该服务
	CodeNoSuchService = "no_such_service"

	// CodeHandlerFailure 服务处理器异常退出
	CodeHandlerFailure = "handler_failure"
)

var (
	// ErrNoSuchService 对应 CodeNoSuchService 的哨兵错误
	ErrNoSuchService = errors.New("tagentacle: no such service")

	// ErrHandlerFailure 对应 CodeHandlerFailure 的哨兵错误
	ErrHandlerFailure = errors.New("tagentacle: service handler failure")
)

// ServiceError 服务调用返回的 SERVICE_ERROR
//
// Payload 为服务端给出的原始负载。标准负载形如
// {"code": "no_such_service", "error": "..."}，业务负载可以是任意 JSON。
type ServiceError struct {
	// Service 服务名
	Service string

	// Payload 原始错误负载
	Payload json.RawMessage
}

// standardPayload 运行时生成的错误负载
type standardPayload struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewServiceError 用任意可 JSON 化的值创建业务错误
//
// 服务处理器返回该错误时，payload 原样发送给调用方。
func NewServiceError(payload any) *ServiceError {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw, _ = json.Marshal(standardPayload{Error: fmt.Sprint(payload)})
	}
	return &ServiceError{Payload: raw}
}

// NewCodedError 创建带错误码的标准错误负载
func NewCodedError(code, msg string) *ServiceError {
	raw, _ := json.Marshal(standardPayload{Code: code, Error: msg})
	return &ServiceError{Payload: raw}
}

// Code 返回标准负载中的错误码
func (e *ServiceError) Code() string {
	return e.standard().Code
}

// Message 返回错误描述，非标准负载返回原始 JSON
func (e *ServiceError) Message() string {
	if p := e.standard(); p.Error != "" {
		return p.Error
	}
	return string(e.Payload)
}

func (e *ServiceError) standard() standardPayload {
	var p standardPayload
	_ = json.Unmarshal(e.Payload, &p)
	return p
}

// Error 实现 error 接口
func (e *ServiceError) Error() string {
	if e.Service == "" {
		return "service error: " + e.Message()
	}
	return fmt.Sprintf("service %s: %s", e.Service, e.Message())
}

// Is 支持 errors.Is(err, ErrNoSuchService) 等按错误码匹配
func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrNoSuchService:
		return e.Code() == CodeNoSuchService
	case ErrHandlerFailure:
		return e.Code() == CodeHandlerFailure
	}
	return false
}
