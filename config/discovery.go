package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// DHT 运行模式
const (
	DHTModeAuto   = "auto"
	DHTModeClient = "client"
	DHTModeServer = "server"
)

// DiscoveryConfig 节点发现配置
type DiscoveryConfig struct {
	// MDNS 本地网络发现
	MDNS MDNSConfig `json:"mdns"`

	// DHT 分布式查找
	DHT DHTConfig `json:"dht"`
}

// MDNSConfig mDNS 配置
type MDNSConfig struct {
	// Enable 是否在本地网络上广播和监听
	Enable bool `json:"enable"`

	// ServiceName DNS-SD 服务名
	ServiceName string `json:"service_name"`
}

// DHTConfig Kademlia DHT 配置
type DHTConfig struct {
	// Mode 运行模式: auto, client, server
	Mode string `json:"mode"`

	// MaxRecords 本地记录存储的最大键数
	MaxRecords int `json:"max_records"`

	// MaxProviders 本地保存的提供者关联总数上限
	MaxProviders int `json:"max_providers"`

	// MaxProvidersPerKey 每个键保留的提供者数量上限
	MaxProvidersPerKey int `json:"max_providers_per_key"`

	// MaxValueBytes 单条记录值的最大字节数
	MaxValueBytes int `json:"max_value_bytes"`

	// ProviderTTL 提供者记录的有效期
	ProviderTTL Duration `json:"provider_ttl"`

	// QueryTimeout 单次查找操作的超时
	QueryTimeout Duration `json:"query_timeout"`

	// BootstrapPeers 引导节点，完整 multiaddr（包含 /p2p/<id>）
	BootstrapPeers []string `json:"bootstrap_peers,omitempty"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		MDNS: MDNSConfig{
			Enable:      true,
			ServiceName: types.MDNSServiceName,
		},
		DHT: DHTConfig{
			Mode:               DHTModeAuto,
			MaxRecords:         4096,                       // 最多 4096 个键
			MaxProviders:       4096,                       // 最多 4096 条提供者关联
			MaxProvidersPerKey: 20,                         // 与 K 值一致
			MaxValueBytes:      65 * 1024,                  // 单值 65 KiB
			ProviderTTL:        Duration(48 * time.Hour),   // 提供者记录保留 48 小时
			QueryTimeout:       Duration(60 * time.Second), // 查找超时 60 秒
			BootstrapPeers:     []string{},
		},
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	if c.MDNS.Enable && c.MDNS.ServiceName == "" {
		return errors.New("mDNS service name must not be empty")
	}
	return c.DHT.Validate()
}

// Validate 验证 DHT 配置
func (c DHTConfig) Validate() error {
	switch c.Mode {
	case DHTModeAuto, DHTModeClient, DHTModeServer:
	default:
		return fmt.Errorf("invalid DHT mode %q: must be auto, client or server", c.Mode)
	}
	if c.MaxRecords <= 0 {
		return errors.New("DHT max records must be positive")
	}
	if c.MaxProviders <= 0 {
		return errors.New("DHT max providers must be positive")
	}
	if c.MaxProvidersPerKey <= 0 {
		return errors.New("DHT max providers per key must be positive")
	}
	if c.MaxValueBytes <= 0 {
		return errors.New("DHT max value bytes must be positive")
	}
	if c.ProviderTTL <= 0 {
		return errors.New("DHT provider TTL must be positive")
	}
	if c.QueryTimeout <= 0 {
		return errors.New("DHT query timeout must be positive")
	}
	return nil
}
