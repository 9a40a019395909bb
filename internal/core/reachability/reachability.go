package reachability

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/p2p/host/eventbus"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var log = logger.Logger("reachability")

// HostOptions 返回可达性探测需要的 host 选项
func HostOptions(cfg config.NATConfig) []libp2p.Option {
	var opts []libp2p.Option
	if cfg.EnableAutoNATService {
		opts = append(opts, libp2p.EnableNATService())
	}
	switch cfg.ForceReachability {
	case config.ReachabilityPublic:
		opts = append(opts, libp2p.ForceReachabilityPublic())
	case config.ReachabilityPrivate:
		opts = append(opts, libp2p.ForceReachabilityPrivate())
	}
	return opts
}

// Reachability 可达性探测行为
type Reachability struct {
	host host.Host
	cfg  config.NATConfig

	mu      sync.RWMutex
	current network.Reachability
	emit    types.EmitFunc
	sub     event.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New 创建可达性探测行为
func New(h host.Host, cfg config.NATConfig) (*Reachability, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	return &Reachability{
		host:    h,
		cfg:     cfg,
		current: network.ReachabilityUnknown,
	}, nil
}

// Name 返回行为名称
func (r *Reachability) Name() types.BehaviourName {
	return types.BehaviourReachability
}

// Start 订阅本地可达性变化
func (r *Reachability) Start(ctx context.Context, emit types.EmitFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	sub, err := r.host.EventBus().Subscribe(
		new(event.EvtLocalReachabilityChanged),
		eventbus.Name("xchangefs-reachability"),
	)
	if err != nil {
		return fmt.Errorf("subscribe reachability events: %w", err)
	}

	r.sub = sub
	r.emit = emit
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.loop(ctx, sub)

	log.Info("可达性探测已启动",
		"autonatService", r.cfg.EnableAutoNATService,
		"force", r.cfg.ForceReachability)
	return nil
}

// Close 取消订阅
func (r *Reachability) Close() error {
	r.mu.Lock()
	cancel := r.cancel
	sub := r.sub
	r.cancel = nil
	r.sub = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	if sub != nil {
		return sub.Close()
	}
	return nil
}

// loop 处理可达性变化事件
func (r *Reachability) loop(ctx context.Context, sub event.Subscription) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Out():
			if !ok {
				return
			}
			if evt, ok := e.(event.EvtLocalReachabilityChanged); ok {
				r.update(evt.Reachability)
			}
		}
	}
}

// update 保存新状态，状态变化时投递事件
func (r *Reachability) update(status network.Reachability) {
	r.mu.Lock()
	prev := r.current
	r.current = status
	emit := r.emit
	r.mu.Unlock()

	if prev == status {
		return
	}
	log.Info("本地可达性变化", "from", prev, "to", status)

	if emit != nil {
		emit(&types.ReachabilityEvent{
			BaseEvent:    types.NewBaseEvent(types.EventTypeReachability),
			Reachability: status,
		})
	}
}

// Current 返回当前可达性
func (r *Reachability) Current() network.Reachability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}
