package config

import (
	"errors"
	"path/filepath"
	"strings"
)

// IdentityFileName 身份密钥文件名（位于数据目录下）
const IdentityFileName = "identity_keypair"

// IdentityConfig 身份配置
type IdentityConfig struct {
	// KeyFile 密钥文件路径
	// 为空时使用 <data_dir>/identity_keypair
	KeyFile string `json:"key_file,omitempty"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if c.KeyFile != "" && strings.HasSuffix(c.KeyFile, string(filepath.Separator)) {
		return errors.New("key file must name a file, not a directory")
	}
	return nil
}

// KeyPath 返回密钥文件的实际路径
func (c IdentityConfig) KeyPath(dataDir string) string {
	if c.KeyFile != "" {
		return c.KeyFile
	}
	return filepath.Join(dataDir, IdentityFileName)
}
