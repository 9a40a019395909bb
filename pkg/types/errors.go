// Package types 定义 xchangefs 的基础类型
//
// 本文件定义错误分类。
package types

import "errors"

// ============================================================================
//                              错误分类
// ============================================================================
//
// 各组件定义自己的具体错误，并用 %w 包装以下分类之一，
// 调用方通过 errors.Is 判断错误类别：
//
//	if errors.Is(err, types.ErrIdentity) { ... }

var (
	// ErrConfiguration 配置错误：监听地址格式错误、端口无效、IP 无法识别
	//
	// 按地址恢复，只有在所有地址都失败时才会汇总为致命错误。
	ErrConfiguration = errors.New("configuration error")

	// ErrIdentity 身份错误：持久化密钥损坏/不可读，或新密钥无法写入
	//
	// 总是致命的，节点不能带着不稳定的身份继续运行。
	ErrIdentity = errors.New("identity error")

	// ErrBind 绑定错误：已解析地址上的传输层监听失败
	ErrBind = errors.New("bind error")

	// ErrBehaviourSetup 行为装配错误：任一行为构建或启动失败
	ErrBehaviourSetup = errors.New("behaviour setup error")

	// ErrRuntimeEvent 运行时事件错误：稳态事件处理中出现的错误
	ErrRuntimeEvent = errors.New("runtime event error")
)
