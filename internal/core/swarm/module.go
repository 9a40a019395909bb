package swarm

import (
	"context"

	"github.com/libp2p/go-libp2p/core/host"
	"go.uber.org/fx"

	"github.com/xchangefs/go-xchangefs/internal/core/behaviour"
	"github.com/xchangefs/go-xchangefs/internal/core/metrics"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// Module 事件循环模块
//
// 只负责创建与关闭，绑定和运行由节点在启动时发起。
var Module = fx.Module("swarm",
	fx.Provide(ProvideSwarm),
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	LC      fx.Lifecycle
	Host    host.Host
	Set     *behaviour.Set
	Metrics *metrics.Metrics `optional:"true"`

	// Observers 额外的事件观察者
	Observers []func(types.Event) `group:"event_observers"`
}

// ProvideSwarm 创建事件循环，应用停止时关闭
func ProvideSwarm(input ModuleInput) (*Swarm, error) {
	opts := []Option{WithMetrics(input.Metrics)}
	for _, fn := range input.Observers {
		opts = append(opts, WithEventHandler(fn))
	}

	s, err := New(input.Host, input.Set, opts...)
	if err != nil {
		_ = input.Set.Close()
		_ = input.Host.Close()
		return nil, err
	}

	input.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}
