package swarm

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/p2p/host/eventbus"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// runtimeSourceTransport 传输层运行时错误的来源
const runtimeSourceTransport = "transport"

// watchTransport 把传输层事件接入事件循环
//
// 监听地址的变化来自网络通知，连接变化来自事件总线。调用时持有 bindMu。
func (s *Swarm) watchTransport() error {
	sub, err := s.host.EventBus().Subscribe(
		new(event.EvtPeerConnectednessChanged),
		eventbus.Name("xchangefs-swarm"),
	)
	if err != nil {
		return fmt.Errorf("%w: subscribe transport events: %w", types.ErrBind, err)
	}
	s.sub = sub

	s.notifiee = &network.NotifyBundle{
		ListenF:      s.onListen,
		ListenCloseF: s.onListenClose,
	}
	s.host.Network().Notify(s.notifiee)

	s.wg.Add(1)
	go s.pumpConnectedness(s.ctx, sub)
	return nil
}

// onListen 新的监听地址生效，端口为 0 时这里是实际端口
func (s *Swarm) onListen(_ network.Network, addr ma.Multiaddr) {
	s.emit(&types.NewListenAddrEvent{
		BaseEvent: types.NewBaseEvent(types.EventTypeNewListenAddr),
		Addr:      addr,
	})
}

// onListenClose 监听地址关闭，没有剩余地址时投递致命错误
func (s *Swarm) onListenClose(n network.Network, addr ma.Multiaddr) {
	if s.ctx.Err() != nil {
		return
	}
	s.emit(&types.ExpiredListenAddrEvent{
		BaseEvent: types.NewBaseEvent(types.EventTypeExpiredListenAddr),
		Addr:      addr,
	})

	if s.State() == StateUnbound || len(n.ListenAddresses()) > 0 {
		return
	}
	s.emit(&types.RuntimeErrorEvent{
		BaseEvent: types.NewBaseEvent(types.EventTypeRuntimeError),
		Source:    runtimeSourceTransport,
		Err:       ErrListenersGone,
		Fatal:     true,
	})
}

// pumpConnectedness 把节点连接状态变化转为连接事件
func (s *Swarm) pumpConnectedness(ctx context.Context, sub event.Subscription) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Out():
			if !ok {
				return
			}
			evt, ok := e.(event.EvtPeerConnectednessChanged)
			if !ok {
				continue
			}
			switch evt.Connectedness {
			case network.Connected:
				s.emit(&types.ConnectionEstablishedEvent{
					BaseEvent: types.NewBaseEvent(types.EventTypeConnectionEstablished),
					Peer:      evt.Peer,
				})
			case network.NotConnected:
				s.emit(&types.ConnectionClosedEvent{
					BaseEvent: types.NewBaseEvent(types.EventTypeConnectionClosed),
					Peer:      evt.Peer,
				})
			}
		}
	}
}
