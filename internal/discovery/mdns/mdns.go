package mdns

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var log = logger.Logger("discovery.mdns")

// connectTimeout 连接已发现节点的超时
const connectTimeout = 10 * time.Second

// newMDNS 创建 mDNS 服务，测试中替换以避免真实组播
var newMDNS = func(h host.Host, serviceName string, notifee mdns.Notifee) mdns.Service {
	return mdns.NewMdnsService(h, serviceName, notifee)
}

// Discovery 本地网络发现行为
type Discovery struct {
	host host.Host
	cfg  config.MDNSConfig
	svc  mdns.Service

	mu         sync.RWMutex
	emit       types.EmitFunc
	started    bool
	ctx        context.Context
	cancel     context.CancelFunc
	discovered map[peer.ID]peer.AddrInfo
	wg         sync.WaitGroup
}

// New 创建发现行为
func New(h host.Host, cfg config.MDNSConfig) (*Discovery, error) {
	if cfg.Enable && cfg.ServiceName == "" {
		return nil, fmt.Errorf("%w: mDNS service name must not be empty", types.ErrConfiguration)
	}

	d := &Discovery{
		host:       h,
		cfg:        cfg,
		discovered: make(map[peer.ID]peer.AddrInfo),
	}
	if cfg.Enable {
		d.svc = newMDNS(h, cfg.ServiceName, d)
	}
	return d, nil
}

// Name 返回行为名称
func (d *Discovery) Name() types.BehaviourName {
	return types.BehaviourDiscovery
}

// Enabled 是否在本地网络上收发组播
func (d *Discovery) Enabled() bool {
	return d.svc != nil
}

// Start 开始广播并监听本地网络
func (d *Discovery) Start(ctx context.Context, emit types.EmitFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	d.emit = emit
	d.ctx, d.cancel = context.WithCancel(ctx)

	if d.svc == nil {
		d.started = true
		log.Info("mDNS 已关闭")
		return nil
	}

	if err := d.svc.Start(); err != nil {
		d.cancel()
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	d.started = true

	log.Info("mDNS 已启动", "service", d.cfg.ServiceName)
	return nil
}

// Close 停止广播并等待后台连接结束
func (d *Discovery) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	started := d.started
	d.cancel = nil
	d.started = false
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if started && d.svc != nil {
		err = d.svc.Close()
	}
	d.wg.Wait()
	return err
}

// Discovered 返回已发现节点的快照
func (d *Discovery) Discovered() []peer.AddrInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]peer.AddrInfo, 0, len(d.discovered))
	for _, info := range d.discovered {
		out = append(out, info)
	}
	return out
}
