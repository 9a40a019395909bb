package types

// ============================================================================
//                              BehaviourName - 行为名称
// ============================================================================

// BehaviourName 组合行为的名称
type BehaviourName string

const (
	// BehaviourLiveness 存活探测
	BehaviourLiveness BehaviourName = "liveness"
	// BehaviourDiscovery 本地发现（mDNS）
	BehaviourDiscovery BehaviourName = "discovery"
	// BehaviourLookup 分布式查找（Kademlia）
	BehaviourLookup BehaviourName = "lookup"
	// BehaviourIdentify 能力识别
	BehaviourIdentify BehaviourName = "identify"
	// BehaviourReachability 可达性探测（AutoNAT）
	BehaviourReachability BehaviourName = "reachability"
)

// String 返回行为名称
func (n BehaviourName) String() string {
	return string(n)
}

// ============================================================================
//                              ListenStatus - 监听结果
// ============================================================================

// ListenStatus 单个监听地址的处理结果
type ListenStatus int

const (
	// ListenBound 绑定成功
	ListenBound ListenStatus = iota
	// ListenParseFailed 地址解析失败
	ListenParseFailed
	// ListenBindFailed 解析成功但绑定失败
	ListenBindFailed
)

// String 返回监听结果的字符串表示
func (s ListenStatus) String() string {
	switch s {
	case ListenBound:
		return "bound"
	case ListenParseFailed:
		return "parse_failed"
	case ListenBindFailed:
		return "bind_failed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              LookupOp - 查找操作
// ============================================================================

// LookupOp 分布式查找操作类型
type LookupOp int

const (
	// LookupBootstrap 路由表引导
	LookupBootstrap LookupOp = iota
	// LookupPutRecord 发布记录
	LookupPutRecord
	// LookupGetRecord 查询记录
	LookupGetRecord
	// LookupProvide 宣告提供者
	LookupProvide
	// LookupFindProviders 查找提供者
	LookupFindProviders
	// LookupFindPeer 查找节点
	LookupFindPeer
)

// String 返回操作的字符串表示
func (op LookupOp) String() string {
	switch op {
	case LookupBootstrap:
		return "bootstrap"
	case LookupPutRecord:
		return "put_record"
	case LookupGetRecord:
		return "get_record"
	case LookupProvide:
		return "provide"
	case LookupFindProviders:
		return "find_providers"
	case LookupFindPeer:
		return "find_peer"
	default:
		return "unknown"
	}
}
