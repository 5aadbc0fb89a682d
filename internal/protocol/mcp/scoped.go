package mcp

import (
	"context"

	"go.uber.org/multierr"

	"github.com/Tagentacle/go-sdk/pkg/interfaces"
)

// WithClient 打开客户端会话并执行 fn，返回前总会关闭会话
func WithClient(ctx context.Context, bus interfaces.Bus, remoteID string, opts ClientOptions, fn func(*ClientSession) error) (err error) {
	s, err := OpenClient(ctx, bus, remoteID, opts)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(s))
	return fn(s)
}

// WithServer 注册服务端会话并执行 fn，返回前总会注销服务
func WithServer(ctx context.Context, bus interfaces.Bus, opts ServerOptions, fn func(*ServerSession) error) (err error) {
	s, err := Serve(ctx, bus, opts)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(s))
	return fn(s)
}
