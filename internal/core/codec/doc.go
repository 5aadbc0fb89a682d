// Package codec 实现 Tagentacle 总线帧的编解码
//
// # 帧格式
//
// 每个帧是一行 JSON 对象（以 '\n' 结尾），字段：
//
//	{"op": "call_service", "service": "/math/add", "request_id": "7",
//	 "sender": "node_a", "payload": {"a": 10, "b": 20}}
//
// op 决定帧类型（Kind），与帧去向一一对应：
//   - publish / message: 主题消息（PUBLISH）
//   - subscribe_ack: 订阅确认
//   - call_service: 服务调用（需要 request_id）
//   - service_response / service_error: 服务结果 / 服务错误（需要 request_id）
//   - register / subscribe / unsubscribe / advertise_service / unadvertise_service:
//     节点发往 Daemon 的控制帧
//
// # 错误处理
//
// 任何无法解析的输入都返回包装了 ErrMalformedFrame 的错误，调用方丢弃该帧即可，
// Reader 在遇到格式错误的行之后仍然可以继续读取。
package codec
