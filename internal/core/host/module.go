package host

import (
	"context"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"go.uber.org/fx"

	"github.com/xchangefs/go-xchangefs/config"
)

// Module 传输端点模块
var Module = fx.Module("host",
	fx.Provide(ProvideHost),
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	LC      fx.Lifecycle
	Config  *config.Config
	PrivKey crypto.PrivKey

	// Options 各行为贡献的端点选项
	Options []libp2p.Option `group:"libp2p_options"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Host host.Host
}

// ProvideHost 创建传输端点，应用停止时关闭
func ProvideHost(input ModuleInput) (ModuleOutput, error) {
	h, err := New(input.PrivKey, input.Config, input.Options...)
	if err != nil {
		return ModuleOutput{}, err
	}

	input.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return h.Close()
		},
	})
	return ModuleOutput{Host: h}, nil
}
