package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// 环境变量名
const (
	EnvPrefix          = "XCHANGEFS__"
	EnvConfigFile      = EnvPrefix + "CONFIG"
	EnvDataDir         = EnvPrefix + "DATA_DIR"
	EnvListenAddr      = EnvPrefix + "LISTEN_ADDR"
	EnvMountPath       = EnvPrefix + "MOUNT_PATH"
	EnvIdleTimeoutSecs = EnvPrefix + "IDLE_TIMEOUT_SECS"
)

// DefaultConfigFile 未指定 XCHANGEFS__CONFIG 时尝试读取的文件
const DefaultConfigFile = "config.json"

// LookupFunc 环境变量查找函数，签名与 os.LookupEnv 一致
type LookupFunc func(key string) (string, bool)

// FromJSON 从 JSON 数据创建配置
//
// 缺失的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "node": {"data_dir": "/var/lib/xchangefs", "listen_addr": ["0.0.0.0:4001"]},
//	  "discovery": {"mdns": {"enable": false}}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", types.ErrConfiguration, err)
	}
	return cfg, nil
}

// ToJSON 将配置序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file %s: %w", types.ErrConfiguration, path, err)
	}
	return FromJSON(data)
}

// Load 按 默认值 -> 配置文件 -> 环境变量 的顺序构建配置并验证
//
// lookup 为 nil 时使用 os.LookupEnv。
// XCHANGEFS__CONFIG 指定的文件必须存在；未指定时当前目录的 config.json 可选。
func Load(lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := NewConfig()
	if path, ok := lookup(EnvConfigFile); ok && path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		loaded, err := LoadFile(DefaultConfigFile)
		switch {
		case err == nil:
			cfg = loaded
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv 用 XCHANGEFS__* 环境变量覆盖配置
//
// XCHANGEFS__LISTEN_ADDR 是逗号分隔的列表。
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvDataDir); ok && v != "" {
		cfg.Node.DataDir = v
	}
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		cfg.Node.ListenAddrs = SplitList(v)
	}
	if v, ok := lookup(EnvMountPath); ok && v != "" {
		cfg.Node.MountPath = v
	}
	if v, ok := lookup(EnvIdleTimeoutSecs); ok && v != "" {
		secs, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", types.ErrConfiguration, EnvIdleTimeoutSecs, v, err)
		}
		cfg.Node.IdleTimeout = Duration(time.Duration(secs) * time.Second)
	}
	return nil
}

// SplitList 拆分逗号分隔的列表，去掉空白和空项
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
