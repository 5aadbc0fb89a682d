// Package testnode 在 testdaemon 上启动已连接、正在调度的节点
package testnode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tagentacle/go-sdk/internal/core/dispatcher"
	"github.com/Tagentacle/go-sdk/internal/core/transport"
	"github.com/Tagentacle/go-sdk/internal/testutil/testdaemon"
)

// Wait 异步断言的默认等待时间
const Wait = 3 * time.Second

// Daemon 启动 Daemon，测试结束时关闭
func Daemon(t testing.TB) *testdaemon.Daemon {
	t.Helper()
	d, err := testdaemon.Start()
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

// Start 连接节点并在后台运行调度循环，测试结束时断开
func Start(t testing.TB, d *testdaemon.Daemon, nodeID string) *dispatcher.Dispatcher {
	t.Helper()
	conn, err := transport.NewConn(transport.Config{Address: d.Addr(), NodeID: nodeID}, nil)
	require.NoError(t, err)

	node := dispatcher.New(dispatcher.Config{}, conn, nil, nil)
	require.NoError(t, node.Connect(context.Background()))
	WaitRegistered(t, d, nodeID)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = node.Spin(ctx) }()
	t.Cleanup(func() {
		cancel()
		node.Disconnect()
	})
	return node
}

// WaitRegistered 等待 Daemon 处理节点的注册帧
func WaitRegistered(t testing.TB, d *testdaemon.Daemon, nodeID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return d.Registered(nodeID)
	}, Wait, 5*time.Millisecond)
}

// WaitProvided 等待 Daemon 记录服务提供方
func WaitProvided(t testing.TB, d *testdaemon.Daemon, service, nodeID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		owner, ok := d.Provider(service)
		return ok && owner == nodeID
	}, Wait, 10*time.Millisecond)
}

// WaitGone 等待 Daemon 删除服务
func WaitGone(t testing.TB, d *testdaemon.Daemon, service string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := d.Provider(service)
		return !ok
	}, Wait, 10*time.Millisecond)
}

// WaitSubscribed 等待 Daemon 上主题的订阅者恰好为 nodes
func WaitSubscribed(t testing.TB, d *testdaemon.Daemon, topic string, nodes ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(nodes, d.Subscribers(topic))
	}, Wait, 10*time.Millisecond)
}
