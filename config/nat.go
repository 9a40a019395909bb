package config

import "fmt"

// 强制可达性取值
const (
	ReachabilityAuto    = ""
	ReachabilityPublic  = "public"
	ReachabilityPrivate = "private"
)

// NATConfig 可达性配置
type NATConfig struct {
	// EnableAutoNATService 是否为其他节点提供 AutoNAT 回拨探测
	EnableAutoNATService bool `json:"enable_autonat_service"`

	// ForceReachability 跳过探测，直接声明可达性
	// 可选值: ""（自动探测）, "public", "private"
	ForceReachability string `json:"force_reachability,omitempty"`
}

// DefaultNATConfig 返回默认可达性配置
func DefaultNATConfig() NATConfig {
	return NATConfig{
		EnableAutoNATService: true,
		ForceReachability:    ReachabilityAuto,
	}
}

// Validate 验证可达性配置
func (c NATConfig) Validate() error {
	switch c.ForceReachability {
	case ReachabilityAuto, ReachabilityPublic, ReachabilityPrivate:
		return nil
	default:
		return fmt.Errorf("invalid force reachability %q", c.ForceReachability)
	}
}
