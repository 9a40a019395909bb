package swarm

import (
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// ============================================================================
//                              State - 生命周期状态
// ============================================================================

// State 事件循环的生命周期状态
type State int32

const (
	// StateUnbound 尚未绑定任何地址
	StateUnbound State = iota
	// StateListeningPartial 部分地址绑定成功
	StateListeningPartial
	// StateListeningFull 全部地址绑定成功
	StateListeningFull
	// StateRunning 事件循环运行中
	StateRunning
	// StateStopped 已停止
	StateStopped
)

// String 返回状态名
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateListeningPartial:
		return "listening_partial"
	case StateListeningFull:
		return "listening_full"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Listening 是否处于已绑定、尚未运行的状态
func (s State) Listening() bool {
	return s == StateListeningPartial || s == StateListeningFull
}

// ============================================================================
//                              ListenOutcome - 监听结果
// ============================================================================

// ListenOutcome 单个监听字符串的处理结果
type ListenOutcome struct {
	// Input 原始监听字符串
	Input string

	// Addr 解析得到的地址，解析失败时为 nil
	Addr ma.Multiaddr

	// Status 处理结果
	Status types.ListenStatus

	// Err 失败原因，成功时为 nil
	Err error
}

// AnyBound 是否至少有一个地址绑定成功
func AnyBound(outcomes []ListenOutcome) bool {
	for _, o := range outcomes {
		if o.Status == types.ListenBound {
			return true
		}
	}
	return false
}

// Summarize 根据全部监听结果决定绑定后的状态
//
// 一个都没有成功时返回 StateUnbound 和包装 types.ErrBind 的错误，
// 错误中合并了每个失败地址的原因。
func Summarize(outcomes []ListenOutcome) (State, error) {
	if len(outcomes) == 0 {
		return StateUnbound, ErrNoListenAddrs
	}

	var (
		bound int
		errs  error
	)
	for _, o := range outcomes {
		if o.Status == types.ListenBound {
			bound++
			continue
		}
		errs = multierr.Append(errs, fmt.Errorf("%s (%s): %w", o.Input, o.Status, o.Err))
	}

	switch bound {
	case 0:
		return StateUnbound, fmt.Errorf("%w: failed to listen on any address: %w", types.ErrBind, errs)
	case len(outcomes):
		return StateListeningFull, nil
	default:
		return StateListeningPartial, nil
	}
}
