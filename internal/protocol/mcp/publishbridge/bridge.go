package publishbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Tagentacle/go-sdk/internal/protocol/mcp"
	"github.com/Tagentacle/go-sdk/pkg/interfaces"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

var logger = log.Logger("protocol/mcp/publishbridge")

// 协议握手信息
const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "tagentacle-publish-bridge"
	ServerVersion   = "0.1.0"
)

// Option 配置 Bridge
type Option func(*Bridge)

// WithAllowList 只允许发布到以 prefixes 之一开头的主题
//
// 不调用时不做限制；传入空列表则拒绝所有主题。
func WithAllowList(prefixes ...string) Option {
	return func(b *Bridge) {
		b.restricted = true
		b.allowed = append([]string(nil), prefixes...)
	}
}

// Bridge 发布桥引擎
type Bridge struct {
	bus        interfaces.Bus
	restricted bool
	allowed    []string
}

// New 创建发布桥
func New(bus interfaces.Bus, opts ...Option) *Bridge {
	b := &Bridge{bus: bus}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tools 返回工具定义
func (b *Bridge) Tools() []Tool {
	return append([]Tool(nil), builtinTools...)
}

// Allowed 判断主题是否在白名单中
func (b *Bridge) Allowed(topic string) bool {
	if !b.restricted {
		return true
	}
	for _, prefix := range b.allowed {
		if strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}

// Serve 注册本节点的 MCP 服务并运行引擎，直到 ctx 取消
func (b *Bridge) Serve(ctx context.Context, opts mcp.ServerOptions) error {
	return mcp.WithServer(ctx, b.bus, opts, func(s *mcp.ServerSession) error {
		names := make([]string, 0, len(builtinTools))
		for _, t := range builtinTools {
			names = append(names, t.Name)
		}
		logger.Info("发布桥已就绪", "service", s.Service(), "tools", names)
		return b.Run(ctx, s)
	})
}

// Run 在 stream 上处理消息，stream 关闭时返回 nil
func (b *Bridge) Run(ctx context.Context, stream mcp.Stream) error {
	for {
		msg, err := stream.Read(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		resp := b.Handle(ctx, msg)
		if resp == nil {
			continue
		}
		if err := stream.Write(ctx, resp); err != nil {
			if errors.Is(err, mcp.ErrClosed) {
				return nil
			}
			logger.Warn("响应未写回", "error", err)
		}
	}
}

// ============================================================================
//                              JSON-RPC 处理
// ============================================================================

type request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *mcp.RPCError   `json:"error,omitempty"`
}

// Handle 处理一条 JSON-RPC 消息，通知返回 nil
func (b *Bridge) Handle(ctx context.Context, msg json.RawMessage) json.RawMessage {
	var req request
	if err := json.Unmarshal(msg, &req); err != nil {
		return b.fail(nil, mcp.CodeParseError, "Parse error: "+err.Error())
	}
	if len(req.ID) == 0 || bytes.Equal(req.ID, []byte("null")) {
		logger.Debug("收到通知", "method", req.Method)
		return nil
	}

	switch req.Method {
	case "initialize":
		return b.ok(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			"serverInfo": map[string]any{
				"name":    ServerName,
				"version": ServerVersion,
			},
		})
	case "tools/list":
		return b.ok(req.ID, map[string]any{"tools": builtinTools})
	case "tools/call":
		return b.call(ctx, req.ID, req.Params)
	default:
		return b.fail(req.ID, mcp.CodeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (b *Bridge) call(ctx context.Context, id json.RawMessage, params json.RawMessage) json.RawMessage {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return b.fail(id, mcp.CodeInvalidParams, "Invalid params: "+err.Error())
		}
	}

	switch p.Name {
	case ToolPublish:
		return b.ok(id, b.publish(ctx, p.Arguments))
	case ToolListTopics:
		return b.ok(id, textResult(b.describeAllowList()))
	default:
		return b.fail(id, mcp.CodeMethodNotFound, "Unknown tool: "+p.Name)
	}
}

// publish 执行 publish_to_topic，错误以 isError 内容返回
func (b *Bridge) publish(ctx context.Context, arguments json.RawMessage) toolResult {
	var args struct {
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			logger.Error("工具执行失败", "tool", ToolPublish, "error", err)
			return errorResult("Error: " + err.Error())
		}
	}
	if !b.Allowed(args.Topic) {
		logger.Info("主题不在白名单中", "topic", args.Topic)
		return errorResult(fmt.Sprintf("Error: Topic '%s' is not in the allow-list.", args.Topic))
	}

	payload := args.Payload
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = json.RawMessage("{}")
	}
	if err := b.bus.Publish(ctx, args.Topic, payload); err != nil {
		logger.Error("工具执行失败", "tool", ToolPublish, "topic", args.Topic, "error", err)
		return errorResult("Error: " + err.Error())
	}
	logger.Debug("已代为发布", "topic", args.Topic)
	return textResult(fmt.Sprintf("Published to '%s' successfully.", args.Topic))
}

func (b *Bridge) describeAllowList() string {
	if !b.restricted {
		return "All topics are allowed (no restrictions)."
	}
	quoted := make([]string, len(b.allowed))
	for i, p := range b.allowed {
		quoted[i] = "'" + p + "'"
	}
	return "Allowed topic prefixes: [" + strings.Join(quoted, ", ") + "]"
}

func (b *Bridge) ok(id json.RawMessage, result any) json.RawMessage {
	return b.encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (b *Bridge) fail(id json.RawMessage, code int, message string) json.RawMessage {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return b.encode(response{JSONRPC: "2.0", ID: id, Error: &mcp.RPCError{Code: code, Message: message}})
}

func (b *Bridge) encode(r response) json.RawMessage {
	raw, err := json.Marshal(r)
	if err != nil {
		// 结果均由本包构造，只有负载异常时才会走到这里
		raw, _ = json.Marshal(response{JSONRPC: "2.0", ID: r.ID, Error: &mcp.RPCError{Code: mcp.CodeInternalError, Message: err.Error()}})
	}
	return raw
}
