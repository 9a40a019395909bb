package config

import (
	"errors"
	"time"
)

// ConnManagerConfig 连接管理配置
//
// 连接数超过高水位时裁剪到低水位。
type ConnManagerConfig struct {
	// LowWater 低水位
	LowWater int `json:"low_water"`

	// HighWater 高水位
	HighWater int `json:"high_water"`

	// GracePeriod 新连接保护期，期间不会被裁剪
	GracePeriod Duration `json:"grace_period"`
}

// DefaultConnManagerConfig 返回默认连接管理配置
func DefaultConnManagerConfig() ConnManagerConfig {
	return ConnManagerConfig{
		LowWater:    100,
		HighWater:   400,
		GracePeriod: Duration(20 * time.Second),
	}
}

// Validate 验证连接管理配置
func (c ConnManagerConfig) Validate() error {
	if c.LowWater < 0 {
		return errors.New("low water must be non-negative")
	}
	if c.HighWater < c.LowWater {
		return errors.New("high water must be >= low water")
	}
	if c.GracePeriod < 0 {
		return errors.New("grace period must be non-negative")
	}
	return nil
}
