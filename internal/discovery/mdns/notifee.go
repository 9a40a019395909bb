package mdns

import (
	"context"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// HandlePeerFound 处理 mDNS 发现的节点
//
// 忽略自身，记录地址、投递事件，未连接时在后台发起连接。
func (d *Discovery) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == d.host.ID() || len(info.Addrs) == 0 {
		return
	}

	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.discovered[info.ID] = info
	emit := d.emit
	ctx := d.ctx
	d.wg.Add(1)
	d.mu.Unlock()

	log.Debug("发现本地节点", "peer", info.ID, "addrs", len(info.Addrs))

	d.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)

	if emit != nil {
		emit(&types.DiscoveryEvent{
			BaseEvent: types.NewBaseEvent(types.EventTypeDiscovery),
			Peer:      info.ID,
			Addrs:     info.Addrs,
		})
	}

	go func() {
		defer d.wg.Done()
		d.connect(ctx, info)
	}()
}

// connect 连接尚未连接的已发现节点
func (d *Discovery) connect(ctx context.Context, info peer.AddrInfo) {
	if d.host.Network().Connectedness(info.ID) == network.Connected {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := d.host.Connect(ctx, info); err != nil {
		log.Debug("连接本地节点失败", "peer", info.ID, "error", err)
		return
	}
	log.Debug("已连接本地节点", "peer", info.ID)
}
