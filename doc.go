// Package tagentacle 提供 Tagentacle 总线的 Go 节点 SDK
//
// 节点通过一条长连接接入 Daemon，在其上发布订阅主题、注册与调用服务。
// Daemon 负责路由，节点之间互不直连。
//
// # 核心概念
//
//   - Node: 总线节点，用户交互的主入口
//   - Topic: 发布订阅的主题，同一主题的回调按到达顺序串行执行
//   - Service: 请求/响应服务，每个服务名只有一个提供方
//   - Lifecycle: 可选的 unconfigured → inactive ⇄ active → finalized 状态机
//
// # 快速开始
//
//	node, err := tagentacle.New("planner",
//	    tagentacle.WithDaemonURL("tcp://127.0.0.1:19999"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	_, _ = node.Subscribe("/chat", func(ctx context.Context, msg *tagentacle.Message) error {
//	    fmt.Println(msg.Sender, string(msg.Payload))
//	    return nil
//	})
//	_ = node.Service("/planner/plan", func(ctx context.Context, req *tagentacle.Request) (any, error) {
//	    return map[string]string{"plan": "ok"}, nil
//	})
//
//	if err := node.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	go node.Spin(ctx)
//
//	result, err := node.CallService(ctx, "/weather/now", map[string]string{"city": "Paris"}, 0)
//
// # 文件组织
//
//	tagentacle/
//	├── node.go       # Node 入口与 Daemon 内置服务
//	├── options.go    # 配置选项
//	├── fx.go         # 组件组装
//	├── types.go      # 类型别名
//	├── errors.go     # 公共错误
//	├── config/       # 文件与环境变量配置
//	├── internal/     # 传输、编解码、调度、生命周期、指标、MCP 桥
//	└── pkg/          # 公共接口与日志
package tagentacle
