package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// envMap 把 map 包装成 LookupFunc
func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// TestNewConfig 测试默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"0.0.0.0:0"}, cfg.Node.ListenAddrs)
	assert.Equal(t, DefaultDirName, filepath.Base(cfg.Node.DataDir))
	assert.Equal(t, DefaultDirName, filepath.Base(cfg.Node.MountPath))
	assert.Equal(t, 300*time.Second, cfg.Node.IdleTimeout.Duration())
	assert.Equal(t, 4096, cfg.Discovery.DHT.MaxRecords)
	assert.Equal(t, 4096, cfg.Discovery.DHT.MaxProviders)
	assert.True(t, cfg.Discovery.MDNS.Enable)
}

// TestConfig_Validate 测试各子配置验证失败都归类为配置错误
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyDataDir", func(c *Config) { c.Node.DataDir = "" }},
		{"NoListenAddrs", func(c *Config) { c.Node.ListenAddrs = nil }},
		{"ZeroIdleTimeout", func(c *Config) { c.Node.IdleTimeout = 0 }},
		{"KeyFileIsDir", func(c *Config) { c.Identity.KeyFile = "keys" + string(filepath.Separator) }},
		{"ZeroLivenessInterval", func(c *Config) { c.Liveness.Interval = 0 }},
		{"EmptyMDNSService", func(c *Config) { c.Discovery.MDNS.ServiceName = "" }},
		{"BadDHTMode", func(c *Config) { c.Discovery.DHT.Mode = "peer" }},
		{"ZeroMaxRecords", func(c *Config) { c.Discovery.DHT.MaxRecords = 0 }},
		{"ZeroMaxProviders", func(c *Config) { c.Discovery.DHT.MaxProviders = 0 }},
		{"BadReachability", func(c *Config) { c.NAT.ForceReachability = "maybe" }},
		{"WaterInverted", func(c *Config) { c.ConnMgr.LowWater, c.ConnMgr.HighWater = 10, 5 }},
		{"BadMetricsAddr", func(c *Config) {
			c.Diagnostics.EnableMetrics = true
			c.Diagnostics.MetricsAddr = "nowhere"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}

// TestLivenessConfig_Disabled 测试关闭探测时不检查间隔
func TestLivenessConfig_Disabled(t *testing.T) {
	cfg := DefaultLivenessConfig()
	cfg.Enable = false
	cfg.Interval = 0
	assert.NoError(t, cfg.Validate())
}

// TestIdentityConfig_KeyPath 测试密钥文件路径
func TestIdentityConfig_KeyPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", IdentityFileName), DefaultIdentityConfig().KeyPath("/data"))

	cfg := IdentityConfig{KeyFile: "/etc/xchangefs/key"}
	assert.Equal(t, "/etc/xchangefs/key", cfg.KeyPath("/data"))
}

// TestDuration_JSON 测试 Duration 的 JSON 编解码
func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`600`), &d))
	assert.Equal(t, 600*time.Second, d.Duration())

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	data, err := json.Marshal(Duration(5 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"5m0s"`, string(data))
}

// TestFromJSON 测试部分 JSON 覆盖默认值
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"node": {"listen_addr": ["127.0.0.1:8080"], "idle_timeout": "10m"},
		"discovery": {"mdns": {"enable": false}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"127.0.0.1:8080"}, cfg.Node.ListenAddrs)
	assert.Equal(t, 10*time.Minute, cfg.Node.IdleTimeout.Duration())
	assert.False(t, cfg.Discovery.MDNS.Enable)
	// 未出现的字段保持默认
	assert.Equal(t, types.MDNSServiceName, cfg.Discovery.MDNS.ServiceName)
	assert.Equal(t, 4096, cfg.Discovery.DHT.MaxRecords)

	_, err = FromJSON([]byte(`{not json`))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

// TestConfig_ToJSON 测试序列化后可重新加载
func TestConfig_ToJSON(t *testing.T) {
	cfg := NewConfig()
	cfg.Node.DataDir = "/srv/xchangefs"

	data, err := cfg.ToJSON()
	require.NoError(t, err)

	loaded, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// TestLoad_CustomFile 测试 XCHANGEFS__CONFIG 指定的文件
func TestLoad_CustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"node": {
			"data_dir": "/custom/data/dir",
			"listen_addr": ["127.0.0.1:8080", "192.168.1.1:8080"],
			"idle_timeout": 600
		}
	}`), 0o600))

	cfg, err := Load(envMap(map[string]string{EnvConfigFile: path}))
	require.NoError(t, err)

	assert.Equal(t, "/custom/data/dir", cfg.Node.DataDir)
	assert.Equal(t, []string{"127.0.0.1:8080", "192.168.1.1:8080"}, cfg.Node.ListenAddrs)
	assert.Equal(t, 600*time.Second, cfg.Node.IdleTimeout.Duration())
}

// TestLoad_MissingCustomFile 测试指定的配置文件不存在
func TestLoad_MissingCustomFile(t *testing.T) {
	_, err := Load(envMap(map[string]string{
		EnvConfigFile: filepath.Join(t.TempDir(), "absent.json"),
	}))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

// TestLoad_Env 测试环境变量覆盖
func TestLoad_Env(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		EnvDataDir:         "/env/data/dir",
		EnvListenAddr:      "127.0.0.1:8081, 192.168.1.1:8081,",
		EnvMountPath:       "/mnt/xfs",
		EnvIdleTimeoutSecs: "900",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/env/data/dir", cfg.Node.DataDir)
	assert.Equal(t, []string{"127.0.0.1:8081", "192.168.1.1:8081"}, cfg.Node.ListenAddrs)
	assert.Equal(t, "/mnt/xfs", cfg.Node.MountPath)
	assert.Equal(t, 900*time.Second, cfg.Node.IdleTimeout.Duration())
}

// TestLoad_EnvOverridesFile 测试环境变量优先于文件
func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"node": {"data_dir": "/from/file"}}`), 0o600))

	cfg, err := Load(envMap(map[string]string{
		EnvConfigFile: path,
		EnvDataDir:    "/from/env",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Node.DataDir)
}

// TestApplyEnv_BadIdleTimeout 测试无法解析的超时值
func TestApplyEnv_BadIdleTimeout(t *testing.T) {
	err := ApplyEnv(NewConfig(), envMap(map[string]string{EnvIdleTimeoutSecs: "-3"}))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

// TestSplitList 测试列表拆分
func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,, b "))
	assert.Nil(t, SplitList(" , "))
}

// TestConfig_Clone 测试深拷贝
func TestConfig_Clone(t *testing.T) {
	cfg := NewConfig()
	cloned := cfg.Clone()
	cloned.Node.ListenAddrs[0] = "127.0.0.1:1"

	assert.Equal(t, DefaultListenAddr, cfg.Node.ListenAddrs[0])
	assert.Nil(t, (*Config)(nil).Clone())
}
