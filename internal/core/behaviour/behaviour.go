package behaviour

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/multierr"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/core/liveness"
	"github.com/xchangefs/go-xchangefs/internal/core/protocol/system/identify"
	"github.com/xchangefs/go-xchangefs/internal/core/reachability"
	"github.com/xchangefs/go-xchangefs/internal/discovery/dht"
	"github.com/xchangefs/go-xchangefs/internal/discovery/mdns"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var log = logger.Logger("behaviour")

// Handler 组合中的单个行为
//
// Start 之后行为通过 emit 投递事件，emit 可能阻塞到事件循环消费或 ctx 取消。
// Close 可以在 Start 之前或之后调用，重复调用安全。
type Handler interface {
	Name() types.BehaviourName
	Start(ctx context.Context, emit types.EmitFunc) error
	Close() error
}

// 行为构造函数，测试中替换以注入失败
var (
	newLiveness     = liveness.New
	newDiscovery    = mdns.New
	newLookup       = dht.New
	newReachability = reachability.New
)

// Set 组合后的行为集合，构造后不再变化
type Set struct {
	PeerID       peer.ID
	Liveness     *liveness.Liveness
	Discovery    *mdns.Discovery
	Lookup       *dht.Lookup
	Identify     *identify.Identify
	Reachability *reachability.Reachability

	closeOnce sync.Once
	closeErr  error
}

// HostOptions 返回各行为需要的 host 选项
//
// 内置 ping 服务被关闭，由存活探测行为注册兼容的处理器。
func HostOptions(cfg *config.Config) []libp2p.Option {
	opts := []libp2p.Option{libp2p.Ping(false)}
	opts = append(opts, identify.HostOptions()...)
	opts = append(opts, reachability.HostOptions(cfg.NAT)...)
	return opts
}

// Compose 在 host 上创建全部行为
//
// 任一行为创建失败时关闭已创建的行为，返回的错误包装 types.ErrBehaviourSetup。
func Compose(priv crypto.PrivKey, h host.Host, cfg *config.Config) (*Set, error) {
	if priv == nil {
		return nil, ErrNilKey
	}
	if h == nil {
		return nil, ErrNilHost
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: derive peer ID: %w", types.ErrBehaviourSetup, err)
	}
	if h.ID() != id {
		return nil, fmt.Errorf("%w: host %s, key %s", ErrPeerIDMismatch, h.ID(), id)
	}

	s := &Set{PeerID: id}
	var built []Handler
	fail := func(name types.BehaviourName, err error) (*Set, error) {
		for i := len(built) - 1; i >= 0; i-- {
			if cerr := built[i].Close(); cerr != nil {
				log.Debug("关闭已创建的行为失败", "behaviour", built[i].Name(), "error", cerr)
			}
		}
		return nil, fmt.Errorf("%w: %s: %w", types.ErrBehaviourSetup, name, err)
	}

	if s.Liveness, err = newLiveness(h, cfg.Liveness, cfg.Node.IdleTimeout.Duration()); err != nil {
		return fail(types.BehaviourLiveness, err)
	}
	built = append(built, s.Liveness)

	if s.Discovery, err = newDiscovery(h, cfg.Discovery.MDNS); err != nil {
		return fail(types.BehaviourDiscovery, err)
	}
	built = append(built, s.Discovery)

	if s.Lookup, err = newLookup(h, cfg.Discovery.DHT); err != nil {
		return fail(types.BehaviourLookup, err)
	}
	built = append(built, s.Lookup)

	s.Identify = identify.New(h)
	built = append(built, s.Identify)

	if s.Reachability, err = newReachability(h, cfg.NAT); err != nil {
		return fail(types.BehaviourReachability, err)
	}

	log.Info("行为组合完成", "peer", id)
	return s, nil
}

// Handlers 按固定顺序返回全部行为
func (s *Set) Handlers() []Handler {
	return []Handler{
		s.Liveness,
		s.Discovery,
		s.Lookup,
		s.Identify,
		s.Reachability,
	}
}

// Start 按顺序启动全部行为
//
// 任一行为启动失败时关闭全部行为，返回的错误包装 types.ErrBehaviourSetup。
func (s *Set) Start(ctx context.Context, emit types.EmitFunc) error {
	for _, h := range s.Handlers() {
		if err := h.Start(ctx, emit); err != nil {
			_ = s.Close()
			return fmt.Errorf("%w: start %s: %w", types.ErrBehaviourSetup, h.Name(), err)
		}
		log.Debug("行为已启动", "behaviour", h.Name())
	}
	return nil
}

// Close 逆序关闭全部行为，重复调用返回第一次的结果
func (s *Set) Close() error {
	s.closeOnce.Do(func() {
		handlers := s.Handlers()
		for i := len(handlers) - 1; i >= 0; i-- {
			s.closeErr = multierr.Append(s.closeErr, handlers[i].Close())
		}
	})
	return s.closeErr
}
