package dht

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	kaddht "github.com/libp2p/go-libp2p-kad-dht"
	record "github.com/libp2p/go-libp2p-record"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/core/routing"
	"go.uber.org/multierr"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var log = logger.Logger("discovery.dht")

// gcInterval 过期提供者的清理间隔上限
const gcInterval = time.Hour

// newDHT 创建 kad-dht 实例，测试中替换以注入失败
var newDHT = kaddht.New

// Lookup 分布式查找行为
type Lookup struct {
	host           host.Host
	dht            *kaddht.IpfsDHT
	store          *RecordStore
	cfg            config.DHTConfig
	bootstrapPeers []peer.AddrInfo
	clock          clock.Clock

	mu      sync.RWMutex
	emit    types.EmitFunc
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New 创建查找行为
//
// 记录存储按 cfg 的上限创建，并作为 kad-dht 的 datastore 和 provider store。
func New(h host.Host, cfg config.DHTConfig) (*Lookup, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}

	bootstrapPeers, err := ParseBootstrapPeers(cfg.BootstrapPeers)
	if err != nil {
		return nil, err
	}

	storeCfg := StoreConfigFromUnified(cfg)
	storeCfg.AddrBook = h.Peerstore()
	store, err := NewRecordStore(storeCfg)
	if err != nil {
		return nil, err
	}

	opts := []kaddht.Option{
		kaddht.Mode(modeFromConfig(cfg.Mode)),
		kaddht.ProtocolPrefix(protocol.ID(types.DHTProtocolPrefix)),
		kaddht.Datastore(store),
		kaddht.ProviderStore(store),
		kaddht.NamespacedValidator(types.RecordNamespace, Validator{MaxValueBytes: cfg.MaxValueBytes}),
		kaddht.NamespacedValidator("pk", record.PublicKeyValidator{}),
	}
	if len(bootstrapPeers) > 0 {
		opts = append(opts, kaddht.BootstrapPeers(bootstrapPeers...))
	}

	d, err := newDHT(context.Background(), h, opts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create kad-dht: %w", err)
	}

	return &Lookup{
		host:           h,
		dht:            d,
		store:          store,
		cfg:            cfg,
		bootstrapPeers: bootstrapPeers,
		clock:          clock.New(),
	}, nil
}

// ParseBootstrapPeers 解析引导节点地址（必须包含 /p2p/<id>）
func ParseBootstrapPeers(addrs []string) ([]peer.AddrInfo, error) {
	infos := make([]peer.AddrInfo, 0, len(addrs))
	for _, s := range addrs {
		info, err := peer.AddrInfoFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidBootstrapPeer, s, err)
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// modeFromConfig 把配置中的模式名转换为 kad-dht 模式
func modeFromConfig(mode string) kaddht.ModeOpt {
	switch mode {
	case config.DHTModeClient:
		return kaddht.ModeClient
	case config.DHTModeServer:
		return kaddht.ModeServer
	default:
		return kaddht.ModeAuto
	}
}

// Name 返回行为名称
func (l *Lookup) Name() types.BehaviourName {
	return types.BehaviourLookup
}

// Store 返回本地记录存储
func (l *Lookup) Store() *RecordStore {
	return l.store
}

// DHT 返回底层 kad-dht 实例
func (l *Lookup) DHT() *kaddht.IpfsDHT {
	return l.dht
}

// Start 开始投递事件，后台连接引导节点并启动路由表刷新
func (l *Lookup) Start(ctx context.Context, emit types.EmitFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	l.started = true
	l.emit = emit

	ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		if err := l.Bootstrap(ctx); err != nil && ctx.Err() == nil {
			log.Warn("DHT 引导失败", "error", err)
		}
	}()
	go l.gcLoop(ctx)

	log.Info("DHT 查找已启动",
		"mode", l.cfg.Mode,
		"bootstrapPeers", len(l.bootstrapPeers))
	return nil
}

// gcLoop 定期清理过期的提供者关联
func (l *Lookup) gcLoop(ctx context.Context) {
	defer l.wg.Done()

	interval := l.cfg.ProviderTTL.Duration()
	if interval > gcInterval {
		interval = gcInterval
	}
	ticker := l.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.store.CollectExpired(); n > 0 {
				log.Debug("清理过期提供者", "count", n)
			}
		}
	}
}

// Close 停止后台任务并关闭 kad-dht 和记录存储
func (l *Lookup) Close() error {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()

	return multierr.Combine(l.dht.Close(), l.store.Close())
}

// ============================================================================
//                              查找操作
// ============================================================================

// Bootstrap 连接配置的引导节点并触发一次路由表刷新
func (l *Lookup) Bootstrap(ctx context.Context) error {
	start := l.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout.Duration())
	defer cancel()

	var (
		connected []peer.ID
		dialErrs  error
	)
	for _, info := range l.bootstrapPeers {
		if err := l.host.Connect(ctx, info); err != nil {
			log.Debug("连接引导节点失败", "peer", info.ID, "error", err)
			dialErrs = multierr.Append(dialErrs, err)
			continue
		}
		connected = append(connected, info.ID)
	}

	err := l.dht.Bootstrap(ctx)
	if len(l.bootstrapPeers) > 0 && len(connected) == 0 {
		err = multierr.Append(err, fmt.Errorf("no bootstrap peer reachable: %w", dialErrs))
	}

	l.report(types.LookupBootstrap, "", start, connected, len(connected) > 0, err)
	return err
}

// PutRecord 在 xfs 命名空间下发布记录
func (l *Lookup) PutRecord(ctx context.Context, name string, value []byte) error {
	start := l.clock.Now()
	key := RecordKey(name)
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout.Duration())
	defer cancel()

	err := l.dht.PutValue(ctx, key, value)
	l.report(types.LookupPutRecord, key, start, nil, err == nil, err)
	return err
}

// GetRecord 查找 xfs 命名空间下的记录
//
// 不存在时返回 routing.ErrNotFound。
func (l *Lookup) GetRecord(ctx context.Context, name string) ([]byte, error) {
	start := l.clock.Now()
	key := RecordKey(name)
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout.Duration())
	defer cancel()

	value, err := l.dht.GetValue(ctx, key)
	if errors.Is(err, context.DeadlineExceeded) && value == nil {
		err = fmt.Errorf("%w: %w", routing.ErrNotFound, err)
	}
	l.report(types.LookupGetRecord, key, start, nil, err == nil, err)
	return value, err
}

// Provide 声明本节点提供 name 对应的内容
//
// announce 为 false 时只写入本地记录存储。
func (l *Lookup) Provide(ctx context.Context, name string, announce bool) error {
	start := l.clock.Now()
	c, err := ContentKey(name)
	if err != nil {
		l.report(types.LookupProvide, name, start, nil, false, err)
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout.Duration())
	defer cancel()

	err = l.dht.Provide(ctx, c, announce)
	l.report(types.LookupProvide, c.String(), start, nil, err == nil, err)
	return err
}

// FindProviders 查找提供 name 对应内容的节点，最多返回 limit 个
//
// limit 为 0 表示不限数量，直到查询结束或超时。
func (l *Lookup) FindProviders(ctx context.Context, name string, limit int) ([]peer.AddrInfo, error) {
	start := l.clock.Now()
	c, err := ContentKey(name)
	if err != nil {
		l.report(types.LookupFindProviders, name, start, nil, false, err)
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout.Duration())
	defer cancel()

	var (
		infos []peer.AddrInfo
		ids   []peer.ID
	)
	for info := range l.dht.FindProvidersAsync(ctx, c, limit) {
		infos = append(infos, info)
		ids = append(ids, info.ID)
	}
	l.report(types.LookupFindProviders, c.String(), start, ids, len(ids) > 0, nil)
	return infos, nil
}

// FindPeer 查找节点地址
func (l *Lookup) FindPeer(ctx context.Context, id peer.ID) (peer.AddrInfo, error) {
	start := l.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout.Duration())
	defer cancel()

	info, err := l.dht.FindPeer(ctx, id)
	var peers []peer.ID
	if err == nil {
		peers = []peer.ID{info.ID}
	}
	l.report(types.LookupFindPeer, id.String(), start, peers, err == nil, err)
	return info, err
}

// report 投递查找结果事件
func (l *Lookup) report(op types.LookupOp, key string, start time.Time, peers []peer.ID, found bool, err error) {
	l.mu.RLock()
	emit := l.emit
	l.mu.RUnlock()
	if emit == nil {
		return
	}
	emit(&types.LookupEvent{
		BaseEvent: types.NewBaseEvent(types.EventTypeLookup),
		Op:        op,
		Key:       key,
		Peers:     peers,
		Found:     found,
		Duration:  l.clock.Since(start),
		Err:       err,
	})
}
