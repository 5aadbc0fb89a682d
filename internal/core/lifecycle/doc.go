// Package lifecycle 为受管节点提供生命周期状态机
//
// 状态：
//
//	UNCONFIGURED ──configure──▶ INACTIVE ──activate──▶ ACTIVE
//	                               ▲                     │
//	                               └─────deactivate──────┘
//	任意非终止状态 ──shutdown──▶ FINALIZED
//
// 每个迁移先调用用户钩子，钩子成功后状态才前进；钩子失败时返回错误，状态不变。
// 同一时刻只允许一个迁移运行，钩子内部再次请求迁移会得到 ErrInvalidTransition。
//
// 状态机只依赖 interfaces.Node 的公共方法，不持有连接状态。
package lifecycle
