// Package lib 包含基础设施工具库
//
// 本目录包含与总线组件无关的通用工具库：
//
//   - log: 基于 slog 的组件日志
//
// # 与 pkg/ 其他目录的关系
//
//   - interfaces/: 总线公共接口与消息类型
//   - lib/: 基础设施工具库（本目录）
package lib
