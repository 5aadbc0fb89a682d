// Package dispatcher 实现节点运行时的调度核心
//
// Dispatcher 持有一条 Daemon 连接以及三张路由表：
//
//   - 订阅表：主题 → 按注册顺序排列的回调
//   - 服务表：服务名 → 唯一处理器
//   - 待定调用表：关联 ID → 未完成的出站调用
//
// # 调度
//
// Spin 从会话的入站队列取帧，只依据帧类型与名称/关联 ID 路由，不检查负载：
//
//   - publish       交给该主题的串行队列，按到达顺序依次调用回调
//   - call_service  处理器在独立 goroutine 中执行，恰好回复一次
//   - service_response / service_error  完成对应的待定调用，找不到则丢弃
//
// 路由表各自加锁，查表与执行解耦：慢回调只会延迟自己主题的后续投递，
// 不会阻塞服务调用的结果。
//
// # 断开
//
// Disconnect 或远端断开会以 ErrConnectionClosed 结束所有待定调用；
// 订阅与服务注册保留，下次 Connect 时重新声明。
package dispatcher
