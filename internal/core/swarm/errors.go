package swarm

import (
	"errors"
	"fmt"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var (
	// ErrAlreadyBound 已经执行过绑定
	ErrAlreadyBound = errors.New("swarm: already bound")

	// ErrNotBound 事件循环只能在绑定成功后运行
	ErrNotBound = errors.New("swarm: not bound")

	// ErrNoListenAddrs 没有配置监听地址
	ErrNoListenAddrs = fmt.Errorf("%w: no listen addresses configured", types.ErrBind)

	// ErrDuplicateListenAddr 监听地址与前面的某个地址解析结果相同
	ErrDuplicateListenAddr = errors.New("swarm: duplicate listen address")

	// ErrListenersGone 所有监听地址都已关闭
	ErrListenersGone = errors.New("swarm: all listeners closed")
)
