// Package mcp 在总线原语之上承载 MCP（JSON-RPC 2.0）会话
//
// # 架构定位
//
//   - 依赖: pkg/interfaces.Bus（只使用公共的发布与服务调用原语）
//   - 服务名约定: /mcp/{node_id}/rpc
//   - 审计主题: TrafficTopic（/mcp/traffic）
//
// # 客户端
//
// OpenClient 返回面向远端节点的 ClientSession。本地 MCP 引擎写入的请求变为
// CallServiceAsync("/mcp/{remote}/rpc")，结果按原 id 推送到读取侧；调用失败
// 转换成同 id 的 JSON-RPC 错误响应，引擎不会无限等待。通知直接转发，不等待回复。
//
// # 服务端
//
// Serve 注册 /mcp/{self}/rpc 并返回 ServerSession。每个总线调用分配一个桥内部
// 的 JSON-RPC id，避免不同客户端的 id 冲突；引擎写回的响应恢复原 id 后作为服务
// 结果返回。通知以 null 确认。
//
// 两种会话都必须 Close；WithClient / WithServer 保证所有退出路径上都会关闭。
//
// # 使用示例
//
//	err := mcp.WithClient(ctx, bus, "weather_server", mcp.ClientOptions{}, func(s *mcp.ClientSession) error {
//	    return engine.Run(ctx, s)
//	})
package mcp
