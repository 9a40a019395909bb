package behaviour

import (
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"go.uber.org/fx"

	"github.com/xchangefs/go-xchangefs/config"
)

// Module 行为组合模块
//
// 向 host 模块贡献 libp2p 选项，并在 host 创建后组合行为。
var Module = fx.Module("behaviour",
	fx.Provide(
		fx.Annotate(
			HostOptions,
			fx.ResultTags(`group:"libp2p_options,flatten"`),
		),
		ProvideSet,
	),
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config  *config.Config
	PrivKey crypto.PrivKey
	Host    host.Host
}

// ProvideSet 组合行为
//
// 行为由 swarm 负责关闭。组合失败时应用不会启动，host 的 OnStop 不会执行，
// 这里直接关闭 host。
func ProvideSet(input ModuleInput) (*Set, error) {
	set, err := Compose(input.PrivKey, input.Host, input.Config)
	if err != nil {
		if cerr := input.Host.Close(); cerr != nil {
			log.Warn("关闭 host 失败", "error", cerr)
		}
		return nil, err
	}
	return set, nil
}
