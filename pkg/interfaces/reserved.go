package interfaces

import "strings"

// ReservedPrefix Daemon 保留的服务名前缀
const ReservedPrefix = "/tagentacle/"

// Daemon 内置服务
const (
	ServicePing         = ReservedPrefix + "ping"
	ServiceListNodes    = ReservedPrefix + "list_nodes"
	ServiceListTopics   = ReservedPrefix + "list_topics"
	ServiceListServices = ReservedPrefix + "list_services"
)

// IsReserved 服务名是否属于 Daemon 保留命名空间
func IsReserved(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}
