package config

import (
	"errors"
	"time"
)

// LivenessConfig 存活探测配置
//
// 对每个已连接节点周期性发送 ping，记录往返时延。
type LivenessConfig struct {
	// Enable 是否启用周期探测
	// 关闭后仍响应对端的 ping 请求
	Enable bool `json:"enable"`

	// Interval 探测间隔
	Interval Duration `json:"interval"`

	// Timeout 单次探测超时
	Timeout Duration `json:"timeout"`
}

// DefaultLivenessConfig 返回默认存活探测配置
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		Enable:   true,
		Interval: Duration(15 * time.Second), // 每 15 秒探测一次
		Timeout:  Duration(20 * time.Second), // 20 秒无回应视为失败
	}
}

// Validate 验证存活探测配置
func (c LivenessConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.Interval <= 0 {
		return errors.New("liveness interval must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("liveness timeout must be positive")
	}
	return nil
}
