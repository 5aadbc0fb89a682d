package publishbridge

import "encoding/json"

// 工具名
const (
	ToolPublish    = "publish_to_topic"
	ToolListTopics = "list_available_topics"
)

// Tool MCP 工具定义
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

var builtinTools = []Tool{
	{
		Name: ToolPublish,
		Description: "Publish a JSON message to a Tagentacle bus Topic. " +
			"Other nodes subscribed to that topic will receive the message.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"topic": {"type": "string", "description": "The topic path to publish to (e.g., '/alerts/critical')"},
				"payload": {"type": "object", "description": "The JSON payload to publish"}
			},
			"required": ["topic", "payload"]
		}`),
	},
	{
		Name: ToolListTopics,
		Description: "List the topics that this bridge is allowed to publish to. " +
			"Returns 'all' if there are no restrictions.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
}

// content MCP 工具结果中的文本块
type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolResult tools/call 的结果
type toolResult struct {
	Content []content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

func textResult(text string) toolResult {
	return toolResult{Content: []content{{Type: "text", Text: text}}}
}

func errorResult(text string) toolResult {
	r := textResult(text)
	r.IsError = true
	return r
}
