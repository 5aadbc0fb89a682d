// Package interfaces 定义 Tagentacle 节点的公共接口
//
// 接口分为两层：
//
//   - bus.go       Bus 总线原语（发布订阅、服务调用）与 Node（带连接管理的 Bus）
//   - message.go   回调收到的消息与服务请求
//   - errors.go    跨包共享的服务错误
//   - reserved.go  Daemon 保留的 /tagentacle/ 服务名
//
// 实现位于 internal/core/dispatcher，根包 tagentacle 对外暴露。
package interfaces
