package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Tagentacle/go-sdk/pkg/interfaces"
	"github.com/Tagentacle/go-sdk/pkg/lib/log"
)

var logger = log.Logger("protocol/mcp")

// TrafficTopic MCP 流量审计主题
const TrafficTopic = "/mcp/traffic"

// Direction 流量方向
type Direction string

const (
	DirectionRequest      Direction = "request"
	DirectionResponse     Direction = "response"
	DirectionNotification Direction = "notification"
)

// TrafficRecord 审计主题上的一条记录
type TrafficRecord struct {
	Session   string          `json:"session"`
	Direction Direction       `json:"direction"`
	Client    string          `json:"client"`
	Server    string          `json:"server"`
	Message   json.RawMessage `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// ServiceName 返回节点的 MCP 服务名
func ServiceName(nodeID string) string {
	return "/mcp/" + nodeID + "/rpc"
}

// mirror 将流量以 fire-and-forget 方式发布到审计主题
func mirror(bus interfaces.Bus, enabled bool, rec TrafficRecord) {
	if !enabled {
		return
	}
	rec.Timestamp = time.Now().UTC()
	if err := bus.Publish(context.Background(), TrafficTopic, rec); err != nil {
		logger.Debug("审计流量未发布", "session", rec.Session, "direction", string(rec.Direction), "error", err)
	}
}
