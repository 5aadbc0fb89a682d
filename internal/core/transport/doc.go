// Package transport 维护节点到 Daemon 的单条连接
//
// 支持两种承载方式：
//
//   - tcp://host:port   换行分隔的 JSON 帧（默认，也接受裸 host:port）
//   - ws:// / wss://     每个 WebSocket 文本消息承载一个帧
//
// # 会话
//
// Conn.Connect 拨号、发送 register 握手帧并启动后台读取任务，返回 *Session。
// 读取任务把解码后的帧放入有界队列（Frames），队列满时停止读取 socket，
// 由 TCP 流控向 Daemon 施加背压。格式错误的帧被计数、限速记录日志后丢弃，
// 会话保持可用。
//
// 会话结束时 Done 关闭：本地 Disconnect 的 Err 为 nil，远端断开或写失败的
// Err 包装 ErrConnectionClosed。连接不会自动重连，Disconnect 之后可以再次 Connect。
package transport
