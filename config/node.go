package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	// DefaultDirName 数据目录与挂载目录的默认名称
	DefaultDirName = "XchangeFS"

	// DefaultListenAddr 默认监听地址（所有 IPv4 接口，端口由系统分配）
	DefaultListenAddr = "0.0.0.0:0"

	// DefaultIdleTimeout 默认空闲超时
	DefaultIdleTimeout = 300 * time.Second
)

// NodeConfig 节点基础配置
type NodeConfig struct {
	// DataDir 节点数据目录，身份密钥文件保存在这里
	DataDir string `json:"data_dir"`

	// ListenAddrs 监听地址列表，格式为 "host:port"
	// IPv6 使用 "[::1]:4001" 形式
	ListenAddrs []string `json:"listen_addr"`

	// MountPath 文件系统挂载路径
	MountPath string `json:"mount_path"`

	// IdleTimeout 空闲超时
	// 在此期间没有成功探测的连接会被关闭
	IdleTimeout Duration `json:"idle_timeout"`
}

// DefaultNodeConfig 返回默认节点配置
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		DataDir:     filepath.Join(userDataDir(), DefaultDirName),
		ListenAddrs: []string{DefaultListenAddr},
		MountPath:   defaultMountPath(),
		IdleTimeout: Duration(DefaultIdleTimeout),
	}
}

// Validate 验证节点配置
//
// 监听地址的格式由地址解析器在绑定时逐个检查，这里只要求列表非空。
func (c NodeConfig) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data dir must not be empty")
	}
	if len(c.ListenAddrs) == 0 {
		return errors.New("at least one listen address is required")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	return nil
}

// userDataDir 返回当前用户的数据目录
//
// Linux 遵循 XDG_DATA_HOME（默认 ~/.local/share），
// macOS 和 Windows 使用 os.UserConfigDir 的结果。
// 无法确定时退回系统临时目录。
func userDataDir() string {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		if dir, err := os.UserConfigDir(); err == nil {
			return dir
		}
		return os.TempDir()
	}
	if dir := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return os.TempDir()
}

// defaultMountPath 返回 ~/XchangeFS
func defaultMountPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}
