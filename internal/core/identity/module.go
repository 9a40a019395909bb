package identity

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/fx"

	"github.com/xchangefs/go-xchangefs/config"
)

// Module 身份模块
var Module = fx.Module("identity",
	fx.Provide(ProvideIdentity),
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config

	// PrivKey 直接注入的私钥，存在时不读写磁盘
	PrivKey crypto.PrivKey `name:"injected_key" optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Manager *Manager
	PrivKey crypto.PrivKey
	PeerID  peer.ID
}

// ProvideIdentity 加载或生成节点身份
func ProvideIdentity(input ModuleInput) (ModuleOutput, error) {
	manager := NewManager(input.Config.Identity.KeyPath(input.Config.Node.DataDir))

	priv := input.PrivKey
	if priv == nil {
		var err error
		if priv, err = manager.LoadOrGenerate(); err != nil {
			return ModuleOutput{}, err
		}
	}

	id, err := PeerIDOf(priv)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("%w: derive peer id: %w", ErrCorruptKey, err)
	}
	log.Info("本地节点身份", "peer", id)

	return ModuleOutput{Manager: manager, PrivKey: priv, PeerID: id}, nil
}
