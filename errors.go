package xchangefs

import (
	"errors"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ────────────────────────────────────────────────────────────────────────
	// 错误类别（pkg/types 的别名）
	// ────────────────────────────────────────────────────────────────────────

	// ErrConfiguration 配置错误，包括无法解析的监听地址
	ErrConfiguration = types.ErrConfiguration

	// ErrIdentity 身份密钥无法读取、解析或保存
	ErrIdentity = types.ErrIdentity

	// ErrBind 没有任何监听地址绑定成功
	ErrBind = types.ErrBind

	// ErrBehaviourSetup 行为组合或启动失败
	ErrBehaviourSetup = types.ErrBehaviourSetup

	// ErrRuntimeEvent 事件循环因致命的运行时错误退出
	ErrRuntimeEvent = types.ErrRuntimeEvent
)
