// Package types 定义 xchangefs 公共类型
//
// 本文件定义事件相关类型。
package types

import (
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// ============================================================================
//                              Event - 事件接口
// ============================================================================

// Event 事件循环分发的事件
//
// Event 是封闭的联合类型：每种行为/传输事件对应一个具体结构体，
// 事件循环通过 type switch 分发。只有嵌入 BaseEvent 的类型才能实现它。
type Event interface {
	// Type 返回事件类型
	Type() string

	// Timestamp 返回事件时间戳
	Timestamp() time.Time

	sealed()
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	EventType string
	Time      time.Time
}

// Type 返回事件类型
func (e BaseEvent) Type() string {
	return e.EventType
}

// Timestamp 返回事件时间戳
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

func (BaseEvent) sealed() {}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
	}
}

// EmitFunc 行为向事件循环投递事件
//
// 实现会在事件循环退出后丢弃事件，调用方无需检查返回。
type EmitFunc func(Event)

// 事件类型常量
const (
	EventTypeNewListenAddr         = "swarm.new_listen_addr"
	EventTypeExpiredListenAddr     = "swarm.expired_listen_addr"
	EventTypeConnectionEstablished = "swarm.connection_established"
	EventTypeConnectionClosed      = "swarm.connection_closed"
	EventTypeRuntimeError          = "swarm.runtime_error"
	EventTypeLiveness              = "behaviour.liveness"
	EventTypeDiscovery             = "behaviour.discovery"
	EventTypeLookup                = "behaviour.lookup"
	EventTypeIdentify              = "behaviour.identify"
	EventTypeReachability          = "behaviour.reachability"
)

// ============================================================================
//                              传输层事件
// ============================================================================

// NewListenAddrEvent 监听地址已确认
//
// 端口为 0 的监听地址在这里以实际端口出现。
type NewListenAddrEvent struct {
	BaseEvent
	Addr ma.Multiaddr
}

// ExpiredListenAddrEvent 监听地址失效
type ExpiredListenAddrEvent struct {
	BaseEvent
	Addr ma.Multiaddr
}

// ConnectionEstablishedEvent 与节点建立了第一条连接
type ConnectionEstablishedEvent struct {
	BaseEvent
	Peer peer.ID
}

// ConnectionClosedEvent 与节点的最后一条连接关闭
type ConnectionClosedEvent struct {
	BaseEvent
	Peer peer.ID
}

// RuntimeErrorEvent 稳态运行中出现的错误
//
// Fatal 为 true 表示传输端点已不可用，事件循环将退出。
type RuntimeErrorEvent struct {
	BaseEvent
	Source string
	Err    error
	Fatal  bool
}

// ============================================================================
//                              行为事件
// ============================================================================

// LivenessEvent 存活探测结果
type LivenessEvent struct {
	BaseEvent
	Peer peer.ID
	RTT  time.Duration
	Err  error
}

// DiscoveryEvent 本地网络发现节点
type DiscoveryEvent struct {
	BaseEvent
	Peer  peer.ID
	Addrs []ma.Multiaddr
}

// LookupEvent 分布式查找操作结果
type LookupEvent struct {
	BaseEvent
	Op       LookupOp
	Key      string
	Peers    []peer.ID
	Found    bool
	Duration time.Duration
	Err      error
}

// IdentifyEvent 能力识别结果
//
// Err 非空表示识别失败，其余字段无效。
type IdentifyEvent struct {
	BaseEvent
	Peer            peer.ID
	ProtocolVersion string
	AgentVersion    string
	Protocols       []string
	ListenAddrs     []ma.Multiaddr
	ObservedAddr    ma.Multiaddr
	Compatible      bool
	Err             error
}

// ReachabilityEvent 本地可达性变化
type ReachabilityEvent struct {
	BaseEvent
	Reachability network.Reachability
}
