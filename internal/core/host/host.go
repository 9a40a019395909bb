package host

import (
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var log = logger.Logger("host")

// ErrNilKey 未提供私钥
var ErrNilKey = fmt.Errorf("%w: host requires a private key", types.ErrIdentity)

// New 创建传输端点
//
// 返回的 host 尚未监听任何地址。extra 中的选项追加在基础选项之后。
func New(priv crypto.PrivKey, cfg *config.Config, extra ...libp2p.Option) (host.Host, error) {
	if priv == nil {
		return nil, ErrNilKey
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	opts, err := baseOptions(priv, cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	log.Debug("传输端点已创建", "peer", h.ID())
	return h, nil
}

// baseOptions 返回与行为无关的端点选项
func baseOptions(priv crypto.PrivKey, cfg *config.Config) ([]libp2p.Option, error) {
	cm, err := connmgr.NewConnManager(
		cfg.ConnMgr.LowWater,
		cfg.ConnMgr.HighWater,
		connmgr.WithGracePeriod(cfg.ConnMgr.GracePeriod.Duration()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: conn manager: %w", types.ErrConfiguration, err)
	}

	return []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.NoListenAddrs,
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.ConnectionManager(cm),
		libp2p.DisableRelay(),
	}, nil
}
