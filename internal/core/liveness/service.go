package liveness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/sync/errgroup"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/core/protocol/system/ping"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var log = logger.Logger("liveness")

// maxConcurrentPings 一轮探测中同时进行的 ping 数量
const maxConcurrentPings = 16

// peerState 节点探测状态
type peerState struct {
	lastRTT     time.Duration
	lastSuccess time.Time
	failures    int
	measured    bool
}

// PeerStatus 节点探测状态快照
type PeerStatus struct {
	// LastRTT 最近一次成功探测的往返时延，从未成功时为 0
	LastRTT time.Duration

	// LastSuccess 最近一次成功探测的时间，从未成功时为首次观察到连接的时间
	LastSuccess time.Time

	// Failures 连续失败次数
	Failures int
}

// Liveness 存活探测行为
type Liveness struct {
	host        host.Host
	cfg         config.LivenessConfig
	idleTimeout time.Duration
	clock       clock.Clock

	// ping 发送一次探测，测试中替换
	ping func(ctx context.Context, h host.Host, p peer.ID) (time.Duration, error)

	mu      sync.RWMutex
	peers   map[peer.ID]*peerState
	emit    types.EmitFunc
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New 创建存活探测行为
//
// idleTimeout 对应节点配置中的空闲超时。
func New(h host.Host, cfg config.LivenessConfig, idleTimeout time.Duration) (*Liveness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	if idleTimeout <= 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, ErrInvalidIdleTimeout)
	}

	return &Liveness{
		host:        h,
		cfg:         cfg,
		idleTimeout: idleTimeout,
		clock:       clock.New(),
		ping:        ping.Ping,
		peers:       make(map[peer.ID]*peerState),
	}, nil
}

// Name 返回行为名称
func (l *Liveness) Name() types.BehaviourName {
	return types.BehaviourLiveness
}

// Start 注册 ping 处理器，启用时开始周期探测
func (l *Liveness) Start(ctx context.Context, emit types.EmitFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	l.started = true
	l.emit = emit

	ping.Register(l.host)

	if !l.cfg.Enable {
		log.Info("周期探测已关闭，仅响应 ping 请求")
		return nil
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.probeLoop(ctx)

	log.Info("存活探测已启动",
		"interval", l.cfg.Interval.Duration(),
		"idleTimeout", l.idleTimeout)
	return nil
}

// Close 停止探测并移除 ping 处理器
func (l *Liveness) Close() error {
	l.mu.Lock()
	cancel := l.cancel
	started := l.started
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()

	if started {
		ping.Unregister(l.host)
	}
	return nil
}

// probeLoop 按间隔执行探测
func (l *Liveness) probeLoop(ctx context.Context) {
	defer l.wg.Done()

	ticker := l.clock.Ticker(l.cfg.Interval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.ProbeAll(ctx)
		}
	}
}

// ProbeAll 对所有已连接节点执行一轮探测
//
// 探测结束后断开超过空闲超时的节点，并清理已断开节点的状态。
func (l *Liveness) ProbeAll(ctx context.Context) {
	connected := l.host.Network().Peers()
	l.track(connected)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPings)
	for _, p := range connected {
		g.Go(func() error {
			l.probe(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}
	l.closeIdle()
}

// track 为新连接的节点建立状态，删除已断开节点的状态
func (l *Liveness) track(connected []peer.ID) {
	now := l.clock.Now()
	live := make(map[peer.ID]struct{}, len(connected))

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range connected {
		live[p] = struct{}{}
		if _, ok := l.peers[p]; !ok {
			l.peers[p] = &peerState{lastSuccess: now}
		}
	}
	for p := range l.peers {
		if _, ok := live[p]; !ok {
			delete(l.peers, p)
		}
	}
}

// probe 探测单个节点并投递结果
func (l *Liveness) probe(ctx context.Context, p peer.ID) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout.Duration())
	defer cancel()

	rtt, err := l.ping(ctx, l.host, p)

	l.mu.Lock()
	if st, ok := l.peers[p]; ok {
		if err == nil {
			st.lastRTT = rtt
			st.lastSuccess = l.clock.Now()
			st.failures = 0
			st.measured = true
		} else {
			st.failures++
		}
	}
	l.mu.Unlock()

	if err != nil {
		log.Debug("ping 失败", "peer", p, "error", err)
	} else {
		log.Debug("ping 成功", "peer", p, "rtt", rtt)
	}
	l.report(p, rtt, err)
}

// closeIdle 断开空闲超时的节点
func (l *Liveness) closeIdle() {
	now := l.clock.Now()

	var idle []peer.ID
	l.mu.Lock()
	for p, st := range l.peers {
		if now.Sub(st.lastSuccess) >= l.idleTimeout {
			idle = append(idle, p)
			delete(l.peers, p)
		}
	}
	l.mu.Unlock()

	for _, p := range idle {
		log.Info("节点空闲超时，断开连接", "peer", p, "idleTimeout", l.idleTimeout)
		if err := l.host.Network().ClosePeer(p); err != nil {
			log.Debug("断开空闲节点失败", "peer", p, "error", err)
		}
		l.report(p, 0, ErrIdle)
	}
}

// LastRTT 返回节点最近一次成功探测的往返时延
func (l *Liveness) LastRTT(p peer.ID) (time.Duration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st, ok := l.peers[p]
	if !ok || !st.measured {
		return 0, false
	}
	return st.lastRTT, true
}

// Status 返回所有被跟踪节点的状态快照
func (l *Liveness) Status() map[peer.ID]PeerStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[peer.ID]PeerStatus, len(l.peers))
	for p, st := range l.peers {
		out[p] = PeerStatus{
			LastRTT:     st.lastRTT,
			LastSuccess: st.lastSuccess,
			Failures:    st.failures,
		}
	}
	return out
}

// report 投递探测结果事件
func (l *Liveness) report(p peer.ID, rtt time.Duration, err error) {
	l.mu.RLock()
	emit := l.emit
	l.mu.RUnlock()
	if emit == nil {
		return
	}
	emit(&types.LivenessEvent{
		BaseEvent: types.NewBaseEvent(types.EventTypeLiveness),
		Peer:      p,
		RTT:       rtt,
		Err:       err,
	})
}
