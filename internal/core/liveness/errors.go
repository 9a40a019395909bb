package liveness

import "errors"

var (
	// ErrIdle 节点在空闲超时内没有成功探测
	ErrIdle = errors.New("liveness: peer idle timeout exceeded")

	// ErrInvalidIdleTimeout 空闲超时无效
	ErrInvalidIdleTimeout = errors.New("liveness: idle timeout must be positive")
)
