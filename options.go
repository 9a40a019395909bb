package xchangefs

import (
	"errors"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// Option 节点配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 基础配置，为空时使用 config.NewConfig()
	config *config.Config

	// 覆盖项
	dataDir     string
	listenAddrs []string
	mdns        *bool
	metrics     *bool

	// 直接注入的私钥，不读写磁盘
	privateKey crypto.PrivKey

	// 事件观察者
	observers []func(types.Event)
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// toConfig 合成最终配置
//
// 基础配置会被复制，调用方持有的 Config 不受影响。
func (o *options) toConfig() *config.Config {
	var cfg *config.Config
	if o.config != nil {
		cfg = o.config.Clone()
	} else {
		cfg = config.NewConfig()
	}

	if o.dataDir != "" {
		cfg.Node.DataDir = o.dataDir
	}
	if len(o.listenAddrs) > 0 {
		cfg.Node.ListenAddrs = append([]string(nil), o.listenAddrs...)
	}
	if o.mdns != nil {
		cfg.Discovery.MDNS.Enable = *o.mdns
	}
	if o.metrics != nil {
		cfg.Diagnostics.EnableMetrics = *o.metrics
	}
	return cfg
}

// WithConfig 使用完整配置
//
// 其余选项在此配置之上覆盖，与选项顺序无关。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config must not be nil")
		}
		o.config = cfg
		return nil
	}
}

// WithDataDir 设置数据目录
func WithDataDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return errors.New("data dir must not be empty")
		}
		o.dataDir = dir
		return nil
	}
}

// WithListenAddrs 设置监听地址，格式为 "host:port"
//
// 示例：
//
//	xchangefs.WithListenAddrs("0.0.0.0:4001", "[::]:4001")
func WithListenAddrs(addrs ...string) Option {
	return func(o *options) error {
		if len(addrs) == 0 {
			return errors.New("at least one listen address is required")
		}
		o.listenAddrs = addrs
		return nil
	}
}

// WithPrivateKey 使用给定的私钥作为节点身份
//
// 设置后不会读取或写入数据目录中的密钥文件。
func WithPrivateKey(key crypto.PrivKey) Option {
	return func(o *options) error {
		if key == nil {
			return errors.New("private key must not be nil")
		}
		o.privateKey = key
		return nil
	}
}

// WithMDNS 启用或关闭本地网络发现
func WithMDNS(enable bool) Option {
	return func(o *options) error {
		o.mdns = &enable
		return nil
	}
}

// WithMetrics 启用或关闭 Prometheus 指标
func WithMetrics(enable bool) Option {
	return func(o *options) error {
		o.metrics = &enable
		return nil
	}
}

// WithEventHandler 添加事件观察者
//
// 观察者在事件循环协程中被调用，不应阻塞。
func WithEventHandler(fn func(types.Event)) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("event handler must not be nil")
		}
		o.observers = append(o.observers, fn)
		return nil
	}
}
