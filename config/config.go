// Package config 提供 xchangefs 节点的统一配置
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义。
// 配置来源按优先级从低到高：
//   - 内置默认值（NewConfig）
//   - JSON 配置文件（XCHANGEFS__CONFIG 指定，或当前目录的 config.json）
//   - XCHANGEFS__* 环境变量
//
// 使用示例：
//
//	// 默认配置 + 文件 + 环境变量
//	cfg, err := config.Load(os.LookupEnv)
//
//	// 直接构造
//	cfg := config.NewConfig()
//	cfg.Node.ListenAddrs = []string{"127.0.0.1:4001"}
package config

import (
	"fmt"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// Config 是 xchangefs 节点的完整配置结构
//
// 配置按照功能模块组织：
//   - Node: 数据目录、监听地址、挂载路径
//   - Identity: 身份密钥文件
//   - Liveness: 存活探测
//   - Discovery: 本地发现（mDNS）与分布式查找（DHT）
//   - NAT: 可达性探测
//   - ConnMgr: 连接管理
//   - Diagnostics: 指标服务
type Config struct {
	// Node 节点基础配置
	Node NodeConfig `json:"node"`

	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Liveness 存活探测配置
	Liveness LivenessConfig `json:"liveness"`

	// Discovery 节点发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// NAT 可达性配置
	NAT NATConfig `json:"nat"`

	// ConnMgr 连接管理配置
	ConnMgr ConnManagerConfig `json:"conn_mgr"`

	// Diagnostics 诊断配置
	Diagnostics DiagnosticsConfig `json:"diagnostics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Node:        DefaultNodeConfig(),
		Identity:    DefaultIdentityConfig(),
		Liveness:    DefaultLivenessConfig(),
		Discovery:   DefaultDiscoveryConfig(),
		NAT:         DefaultNATConfig(),
		ConnMgr:     DefaultConnManagerConfig(),
		Diagnostics: DefaultDiagnosticsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 返回的错误包装 types.ErrConfiguration。
func (c *Config) Validate() error {
	checks := []struct {
		name     string
		validate func() error
	}{
		{"node", c.Node.Validate},
		{"identity", c.Identity.Validate},
		{"liveness", c.Liveness.Validate},
		{"discovery", c.Discovery.Validate},
		{"nat", c.NAT.Validate},
		{"conn_mgr", c.ConnMgr.Validate},
		{"diagnostics", c.Diagnostics.Validate},
	}
	for _, check := range checks {
		if err := check.validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", types.ErrConfiguration, check.name, err)
		}
	}
	return nil
}

// Clone 返回配置的深拷贝
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cloned := *c
	cloned.Node.ListenAddrs = append([]string(nil), c.Node.ListenAddrs...)
	cloned.Discovery.DHT.BootstrapPeers = append([]string(nil), c.Discovery.DHT.BootstrapPeers...)
	return &cloned
}
