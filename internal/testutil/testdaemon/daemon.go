// Package testdaemon 提供测试用的进程内 Daemon
//
// Daemon 在真实 TCP 连接上按 Tagentacle 帧协议路由：主题消息转发给订阅者，
// 服务调用转发给提供方，结果帧按 caller_id 送回调用方。/tagentacle/ 下的保留服务
// 由 Daemon 自己应答。
package testdaemon

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/Tagentacle/go-sdk/internal/core/codec"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

var logger = log.Logger("testutil/testdaemon")

// RegisterWait Inject 与 Kick 等待节点完成注册的上限
const RegisterWait = 3 * time.Second

// Daemon 测试用 Daemon
type Daemon struct {
	ln net.Listener

	mu        sync.Mutex
	clients   map[string]*client
	topics    map[string]map[string]struct{}
	services  map[string]string
	blackhole map[string]struct{}
	observers []func(from string, f codec.Frame)

	wg sync.WaitGroup
}

type client struct {
	nodeID string
	conn   net.Conn

	writeMu sync.Mutex
	w       *codec.Writer
}

func (c *client) send(f codec.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.w.WriteFrame(f)
}

func (c *client) sendRaw(line []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(append(line, '\n'))
	return err
}

// Start 在 127.0.0.1 的随机端口启动 Daemon
func Start() (*Daemon, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		ln:        ln,
		clients:   make(map[string]*client),
		topics:    make(map[string]map[string]struct{}),
		services:  make(map[string]string),
		blackhole: make(map[string]struct{}),
	}
	d.wg.Add(1)
	go d.acceptLoop()
	return d, nil
}

// Addr 返回可用于 transport 的地址
func (d *Daemon) Addr() string {
	return "tcp://" + d.ln.Addr().String()
}

// Close 关闭监听器与所有连接
func (d *Daemon) Close() error {
	err := d.ln.Close()
	d.mu.Lock()
	for _, c := range d.clients {
		c.conn.Close()
	}
	d.mu.Unlock()
	d.wg.Wait()
	return err
}

// Observe 注册帧观察者（在路由前调用）
func (d *Daemon) Observe(fn func(from string, f codec.Frame)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// Blackhole 吞掉对该服务的调用，不转发也不回复
func (d *Daemon) Blackhole(service string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blackhole[service] = struct{}{}
}

// Inject 向节点发送原始行
//
// 节点的注册帧可能尚未处理，最多等待 RegisterWait。
func (d *Daemon) Inject(nodeID string, line []byte) error {
	c, ok := d.awaitClient(nodeID)
	if !ok {
		return errors.New("testdaemon: unknown node " + nodeID)
	}
	return c.sendRaw(line)
}

// Kick 关闭节点的连接，节点未注册时返回 false
func (d *Daemon) Kick(nodeID string) bool {
	c, ok := d.awaitClient(nodeID)
	if ok {
		c.conn.Close()
	}
	return ok
}

// Registered 节点是否已完成注册
func (d *Daemon) Registered(nodeID string) bool {
	_, ok := d.client(nodeID)
	return ok
}

// Nodes 返回已注册的节点
func (d *Daemon) Nodes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedKeys(d.clients)
}

// Subscribers 返回主题的订阅节点
func (d *Daemon) Subscribers(topic string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedKeys(d.topics[topic])
}

// Provider 返回服务的提供节点
func (d *Daemon) Provider(service string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.services[service]
	return id, ok
}

func (d *Daemon) awaitClient(nodeID string) (*client, bool) {
	deadline := time.Now().Add(RegisterWait)
	for {
		if c, ok := d.client(nodeID); ok {
			return c, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (d *Daemon) client(nodeID string) (*client, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[nodeID]
	return c, ok
}

// ============================================================================
//                              连接处理
// ============================================================================

func (d *Daemon) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		d.wg.Add(1)
		go d.handle(conn)
	}
}

func (d *Daemon) handle(conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()

	r := codec.NewReader(conn, codec.DefaultLimits())
	first, err := r.ReadFrame()
	if err != nil || first.Kind != codec.KindRegister || first.Sender == "" {
		return
	}

	c := &client{nodeID: first.Sender, conn: conn, w: codec.NewWriter(conn, codec.DefaultLimits())}
	d.mu.Lock()
	if old, ok := d.clients[c.nodeID]; ok {
		old.conn.Close()
	}
	d.clients[c.nodeID] = c
	d.mu.Unlock()
	defer d.drop(c)

	for {
		f, err := r.ReadFrame()
		if errors.Is(err, codec.ErrMalformedFrame) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("节点连接结束", "nodeID", c.nodeID, "error", err)
			}
			return
		}
		d.route(c, f)
	}
}

// drop 清理节点的全部注册
func (d *Daemon) drop(c *client) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.clients[c.nodeID] != c {
		return
	}
	delete(d.clients, c.nodeID)
	for _, subs := range d.topics {
		delete(subs, c.nodeID)
	}
	for name, owner := range d.services {
		if owner == c.nodeID {
			delete(d.services, name)
		}
	}
}

func (d *Daemon) route(c *client, f codec.Frame) {
	d.mu.Lock()
	observers := append(([]func(string, codec.Frame))(nil), d.observers...)
	d.mu.Unlock()
	for _, fn := range observers {
		fn(c.nodeID, f)
	}

	switch f.Kind {
	case codec.KindSubscribe:
		d.mu.Lock()
		if d.topics[f.Name] == nil {
			d.topics[f.Name] = make(map[string]struct{})
		}
		d.topics[f.Name][c.nodeID] = struct{}{}
		d.mu.Unlock()
		_ = c.send(codec.Frame{Kind: codec.KindSubscribeAck, Name: f.Name})

	case codec.KindUnsubscribe:
		d.mu.Lock()
		delete(d.topics[f.Name], c.nodeID)
		d.mu.Unlock()

	case codec.KindAdvertiseService:
		d.mu.Lock()
		d.services[f.Name] = c.nodeID
		d.mu.Unlock()

	case codec.KindUnadvertiseService:
		d.mu.Lock()
		if d.services[f.Name] == c.nodeID {
			delete(d.services, f.Name)
		}
		d.mu.Unlock()

	case codec.KindPublish:
		f.Sender = c.nodeID
		for _, id := range d.Subscribers(f.Name) {
			if sub, ok := d.client(id); ok {
				_ = sub.send(f)
			}
		}

	case codec.KindServiceCall:
		d.call(c, f)

	case codec.KindServiceResult, codec.KindServiceError:
		if caller, ok := d.client(f.CallerID); ok {
			f.Sender = c.nodeID
			_ = caller.send(f)
		}
	}
}

// call 转发服务调用或由 Daemon 自己应答
func (d *Daemon) call(c *client, f codec.Frame) {
	f.Sender = c.nodeID

	d.mu.Lock()
	_, swallowed := d.blackhole[f.Name]
	d.mu.Unlock()
	if swallowed {
		return
	}

	if interfaces.IsReserved(f.Name) {
		result, ok := d.reserved(f.Name)
		if ok {
			_ = c.send(codec.Frame{Kind: codec.KindServiceResult, Name: f.Name, CorrelationID: f.CorrelationID, CallerID: c.nodeID, Payload: result})
			return
		}
	}

	owner, ok := d.Provider(f.Name)
	if ok {
		if provider, live := d.client(owner); live {
			_ = provider.send(f)
			return
		}
	}

	serr := interfaces.NewCodedError(interfaces.CodeNoSuchService, "no such service: "+f.Name)
	_ = c.send(codec.Frame{Kind: codec.KindServiceError, Name: f.Name, CorrelationID: f.CorrelationID, CallerID: c.nodeID, Payload: serr.Payload})
}

func (d *Daemon) reserved(name string) (json.RawMessage, bool) {
	var v any
	switch name {
	case interfaces.ServicePing:
		v = map[string]string{"status": "ok"}
	case interfaces.ServiceListNodes:
		v = map[string][]string{"nodes": d.Nodes()}
	case interfaces.ServiceListTopics:
		d.mu.Lock()
		topics := make([]string, 0, len(d.topics))
		for t, subs := range d.topics {
			if len(subs) > 0 {
				topics = append(topics, t)
			}
		}
		d.mu.Unlock()
		sort.Strings(topics)
		v = map[string][]string{"topics": topics}
	case interfaces.ServiceListServices:
		d.mu.Lock()
		services := sortedKeys(d.services)
		d.mu.Unlock()
		v = map[string][]string{"services": services}
	default:
		return nil, false
	}
	raw, _ := json.Marshal(v)
	return raw, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
