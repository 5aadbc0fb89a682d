// Package publishbridge 预置的 MCP 服务端引擎，把总线 Publish 暴露为 MCP 工具
//
// 工具：
//   - publish_to_topic：向主题发布 JSON 负载，可用主题前缀白名单限制
//   - list_available_topics：列出白名单
//
// 引擎运行在 mcp.ServerSession 之上：
//
//	b := publishbridge.New(node, publishbridge.WithAllowList("/alerts/"))
//	err := b.Serve(ctx, mcp.ServerOptions{})
package publishbridge
