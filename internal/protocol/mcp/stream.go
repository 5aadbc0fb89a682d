package mcp

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// Stream 双向 JSON-RPC 消息流，MCP 引擎通过它收发消息
type Stream interface {
	// Read 读取下一条发给引擎的消息，会话关闭后返回 io.EOF
	Read(ctx context.Context) (json.RawMessage, error)

	// Write 写入一条引擎发出的消息
	Write(ctx context.Context, msg json.RawMessage) error

	// Close 关闭会话
	Close() error
}

// inbox 引擎读取侧的无界队列
//
// 写入方是总线回调，不能被慢引擎阻塞。
type inbox struct {
	mu     sync.Mutex
	queue  []json.RawMessage
	notify chan struct{}
	closed bool
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 1)}
}

// push 入队，关闭后丢弃
func (b *inbox) push(msg json.RawMessage) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// pop 出队，队列为空时等待
func (b *inbox) pop(ctx context.Context) (json.RawMessage, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, io.EOF
		}
		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return msg, nil
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (b *inbox) close() {
	b.mu.Lock()
	b.closed = true
	b.queue = nil
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}
