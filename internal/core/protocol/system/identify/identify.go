package identify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/host/eventbus"

	"github.com/xchangefs/go-xchangefs/internal/util/logger"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var log = logger.Logger("protocol.identify")

// AgentVersion 本节点的代理版本
var AgentVersion = types.AgentName + "/" + strings.TrimPrefix(types.ProtocolVersion, types.ProtocolFamily)

// HostOptions 返回 identify 需要的 host 选项
func HostOptions() []libp2p.Option {
	return []libp2p.Option{
		libp2p.ProtocolVersion(types.ProtocolVersion),
		libp2p.UserAgent(AgentVersion),
	}
}

// PeerInfo 对端识别结果
type PeerInfo struct {
	ProtocolVersion string
	AgentVersion    string
	Protocols       []protocol.ID
	Compatible      bool
}

// Identify 能力识别行为
type Identify struct {
	host host.Host

	mu      sync.RWMutex
	peers   map[peer.ID]PeerInfo
	emit    types.EmitFunc
	sub     event.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New 创建能力识别行为
func New(h host.Host) *Identify {
	return &Identify{
		host:  h,
		peers: make(map[peer.ID]PeerInfo),
	}
}

// Name 返回行为名称
func (i *Identify) Name() types.BehaviourName {
	return types.BehaviourIdentify
}

// Start 订阅识别结果事件
func (i *Identify) Start(ctx context.Context, emit types.EmitFunc) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started {
		return nil
	}

	sub, err := i.host.EventBus().Subscribe(
		[]interface{}{
			new(event.EvtPeerIdentificationCompleted),
			new(event.EvtPeerIdentificationFailed),
			new(event.EvtPeerConnectednessChanged),
		},
		eventbus.Name("xchangefs-identify"),
	)
	if err != nil {
		return fmt.Errorf("subscribe identify events: %w", err)
	}

	i.sub = sub
	i.emit = emit
	i.started = true
	ctx, i.cancel = context.WithCancel(ctx)

	i.wg.Add(1)
	go i.loop(ctx, sub)

	log.Info("能力识别已启动", "protocolVersion", types.ProtocolVersion, "agent", AgentVersion)
	return nil
}

// Close 取消订阅
func (i *Identify) Close() error {
	i.mu.Lock()
	cancel := i.cancel
	sub := i.sub
	i.cancel = nil
	i.sub = nil
	i.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	i.wg.Wait()
	if sub != nil {
		return sub.Close()
	}
	return nil
}

// loop 处理事件总线上的识别结果
func (i *Identify) loop(ctx context.Context, sub event.Subscription) {
	defer i.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Out():
			if !ok {
				return
			}
			switch evt := e.(type) {
			case event.EvtPeerIdentificationCompleted:
				i.handleCompleted(evt)
			case event.EvtPeerIdentificationFailed:
				i.handleFailed(evt)
			case event.EvtPeerConnectednessChanged:
				if evt.Connectedness == network.NotConnected {
					i.forget(evt.Peer)
				}
			}
		}
	}
}

// handleCompleted 记录识别结果并投递事件
func (i *Identify) handleCompleted(evt event.EvtPeerIdentificationCompleted) {
	compatible := Compatible(evt.ProtocolVersion)
	info := PeerInfo{
		ProtocolVersion: evt.ProtocolVersion,
		AgentVersion:    evt.AgentVersion,
		Protocols:       append([]protocol.ID(nil), evt.Protocols...),
		Compatible:      compatible,
	}

	i.mu.Lock()
	i.peers[evt.Peer] = info
	emit := i.emit
	i.mu.Unlock()

	if !compatible {
		log.Debug("对端协议版本不兼容",
			"peer", evt.Peer,
			"protocolVersion", evt.ProtocolVersion,
			"agent", evt.AgentVersion)
	}

	if emit == nil {
		return
	}
	protocols := make([]string, len(evt.Protocols))
	for idx, p := range evt.Protocols {
		protocols[idx] = string(p)
	}
	emit(&types.IdentifyEvent{
		BaseEvent:       types.NewBaseEvent(types.EventTypeIdentify),
		Peer:            evt.Peer,
		ProtocolVersion: evt.ProtocolVersion,
		AgentVersion:    evt.AgentVersion,
		Protocols:       protocols,
		ListenAddrs:     evt.ListenAddrs,
		ObservedAddr:    evt.ObservedAddr,
		Compatible:      compatible,
	})
}

// handleFailed 投递识别失败事件
func (i *Identify) handleFailed(evt event.EvtPeerIdentificationFailed) {
	i.mu.RLock()
	emit := i.emit
	i.mu.RUnlock()

	log.Debug("能力识别失败", "peer", evt.Peer, "error", evt.Reason)
	if emit == nil {
		return
	}
	emit(&types.IdentifyEvent{
		BaseEvent: types.NewBaseEvent(types.EventTypeIdentify),
		Peer:      evt.Peer,
		Err:       evt.Reason,
	})
}

// forget 删除断开节点的识别结果
func (i *Identify) forget(p peer.ID) {
	i.mu.Lock()
	delete(i.peers, p)
	i.mu.Unlock()
}

// Peer 返回对端的识别结果
func (i *Identify) Peer(p peer.ID) (PeerInfo, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	info, ok := i.peers[p]
	return info, ok
}

// Compatible 判断对端协议版本是否与本节点兼容
func Compatible(remote string) bool {
	rMajor, rMinor, ok := parseVersion(remote)
	if !ok {
		return false
	}
	lMajor, lMinor, _ := parseVersion(types.ProtocolVersion)
	if rMajor != lMajor {
		return false
	}
	return lMajor != 0 || rMinor == lMinor
}

// parseVersion 解析 "xchangefs/<major>.<minor>.<patch>"
func parseVersion(v string) (major, minor int, ok bool) {
	rest, found := strings.CutPrefix(v, types.ProtocolFamily)
	if !found {
		return 0, 0, false
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return 0, 0, false
	}
	nums := make([]int, 3)
	for idx, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		nums[idx] = n
	}
	return nums[0], nums[1], true
}
