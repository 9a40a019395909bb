package types

// ============================================================================
//                              协议常量
// ============================================================================

const (
	// ProtocolVersion 能力识别时交换的协议版本
	//
	// 版本不同的节点仍可连接，但可据此判断是否兼容。
	ProtocolVersion = "xchangefs/0.0.1"

	// ProtocolFamily 协议版本前缀，用于兼容性判断
	ProtocolFamily = "xchangefs/"

	// AgentName 节点代理名称前缀
	AgentName = "go-xchangefs"

	// DHTProtocolPrefix 分布式查找协议前缀
	DHTProtocolPrefix = "/xchangefs"

	// RecordNamespace DHT 记录命名空间（键形如 /xfs/<name>）
	RecordNamespace = "xfs"

	// MDNSServiceName 本地发现的 mDNS 服务名
	MDNSServiceName = "_xchangefs._udp"
)
