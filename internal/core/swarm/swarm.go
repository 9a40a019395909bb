package swarm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"

	"github.com/xchangefs/go-xchangefs/internal/core/address"
	"github.com/xchangefs/go-xchangefs/internal/core/behaviour"
	"github.com/xchangefs/go-xchangefs/internal/core/metrics"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var log = logger.Logger("swarm")

// DefaultEventBuffer 事件通道的默认容量
const DefaultEventBuffer = 64

// Option Swarm 选项
type Option func(*Swarm) error

// WithEventBuffer 设置事件通道容量
func WithEventBuffer(n int) Option {
	return func(s *Swarm) error {
		if n <= 0 {
			return fmt.Errorf("%w: event buffer must be positive", types.ErrConfiguration)
		}
		s.bufferSize = n
		return nil
	}
}

// WithMetrics 设置指标收集
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Swarm) error {
		s.metrics = m
		return nil
	}
}

// WithEventHandler 设置事件观察者
//
// 观察者在事件循环协程中、事件记录之后被调用，不应阻塞。
func WithEventHandler(fn func(types.Event)) Option {
	return func(s *Swarm) error {
		s.observers = append(s.observers, fn)
		return nil
	}
}

// Swarm 节点事件循环
type Swarm struct {
	host host.Host
	set  *behaviour.Set

	bufferSize int
	metrics    *metrics.Metrics
	observers  []func(types.Event)

	events chan types.Event
	state  atomic.Int32

	// ctx 在 Close 或 Run 退出时取消，行为和传输事件泵都挂在它下面
	ctx    context.Context
	cancel context.CancelFunc

	// pending Run 开始之前投递的事件，不受通道容量限制
	pendingMu sync.Mutex
	running   bool
	pending   []types.Event

	bindMu   sync.Mutex
	notifiee *network.NotifyBundle
	sub      event.Subscription
	wg       sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New 创建事件循环
func New(h host.Host, set *behaviour.Set, opts ...Option) (*Swarm, error) {
	if h == nil || set == nil {
		return nil, fmt.Errorf("%w: swarm requires a host and a behaviour set", types.ErrBehaviourSetup)
	}

	s := &Swarm{
		host:       h,
		set:        set,
		bufferSize: DefaultEventBuffer,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.events = make(chan types.Event, s.bufferSize)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.setState(StateUnbound)
	return s, nil
}

// Host 返回传输端点
func (s *Swarm) Host() host.Host {
	return s.host
}

// Behaviours 返回行为集合
func (s *Swarm) Behaviours() *behaviour.Set {
	return s.set
}

// State 返回当前状态
func (s *Swarm) State() State {
	return State(s.state.Load())
}

func (s *Swarm) setState(state State) {
	s.state.Store(int32(state))
	s.metrics.SetState(int(state))
}

// ListenAddrs 返回当前生效的监听地址
func (s *Swarm) ListenAddrs() []ma.Multiaddr {
	return s.host.Network().ListenAddresses()
}

// ============================================================================
//                              绑定
// ============================================================================

// Bind 解析并监听全部地址，然后启动行为
//
// 返回每个输入对应的结果。一个都没有绑定成功时返回包装 types.ErrBind 的错误；
// 行为启动失败时返回包装 types.ErrBehaviourSetup 的错误。
func (s *Swarm) Bind(listen []string) ([]ListenOutcome, error) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	if s.State() != StateUnbound || s.notifiee != nil {
		return nil, ErrAlreadyBound
	}
	if s.ctx.Err() != nil {
		return nil, fmt.Errorf("%w: swarm closed", types.ErrBind)
	}

	if err := s.watchTransport(); err != nil {
		return nil, err
	}

	outcomes := make([]ListenOutcome, 0, len(listen))
	seen := make(map[string]struct{}, len(listen))
	for _, r := range address.ParseListenAddresses(listen) {
		if r.Err == nil {
			key := string(r.Addr.Bytes())
			if _, dup := seen[key]; dup {
				outcomes = append(outcomes, s.duplicate(r))
				continue
			}
			seen[key] = struct{}{}
		}
		outcomes = append(outcomes, s.listen(r))
	}

	state, err := Summarize(outcomes)
	if err != nil {
		log.Error("所有监听地址都失败", "total", len(outcomes), "error", err)
		return outcomes, err
	}

	if err := s.set.Start(s.ctx, s.emit); err != nil {
		s.setState(StateStopped)
		return outcomes, err
	}

	s.setState(state)
	log.Info("监听完成",
		"state", state,
		"addrs", s.ListenAddrs())
	return outcomes, nil
}

// listen 监听单个已解析的地址
func (s *Swarm) listen(r address.Resolved) ListenOutcome {
	out := ListenOutcome{Input: r.Input, Addr: r.Addr}
	switch {
	case r.Err != nil:
		out.Status = types.ListenParseFailed
		out.Err = r.Err
		log.Warn("无法解析监听地址", "input", r.Input, "error", r.Err)
	default:
		if err := s.host.Network().Listen(r.Addr); err != nil {
			out.Status = types.ListenBindFailed
			out.Err = fmt.Errorf("listen on %s: %w", r.Addr, err)
			log.Warn("监听失败", "addr", r.Addr, "error", err)
		} else {
			out.Status = types.ListenBound
			log.Debug("监听成功", "addr", r.Addr)
		}
	}
	s.metrics.ObserveListen(out.Status)
	return out
}

// duplicate 记录重复的监听地址，同一地址只监听一次
func (s *Swarm) duplicate(r address.Resolved) ListenOutcome {
	out := ListenOutcome{
		Input:  r.Input,
		Addr:   r.Addr,
		Status: types.ListenBindFailed,
		Err:    fmt.Errorf("%w: %s", ErrDuplicateListenAddr, r.Addr),
	}
	log.Warn("忽略重复的监听地址", "input", r.Input, "addr", r.Addr)
	s.metrics.ObserveListen(out.Status)
	return out
}

// ============================================================================
//                              事件循环
// ============================================================================

// emit 投递事件，事件循环结束或 Close 之后直接丢弃
//
// Run 开始之前的事件进入 pending，监听通知在 Bind 中同步到达，不能阻塞。
func (s *Swarm) emit(ev types.Event) {
	if s.ctx.Err() != nil {
		return
	}

	s.pendingMu.Lock()
	if !s.running {
		s.pending = append(s.pending, ev)
		s.pendingMu.Unlock()
		return
	}
	s.pendingMu.Unlock()

	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// Run 运行事件循环，直到 ctx 取消、Close 或出现致命错误
//
// ctx 取消或 Close 时返回 nil。事件循环只运行一次，退出后行为投递的事件被丢弃。
func (s *Swarm) Run(ctx context.Context) error {
	cur := s.State()
	if !cur.Listening() || !s.state.CompareAndSwap(int32(cur), int32(StateRunning)) {
		return fmt.Errorf("%w: state %s", ErrNotBound, cur)
	}
	s.metrics.SetState(int(StateRunning))
	defer s.setState(StateStopped)
	defer s.cancel()

	s.pendingMu.Lock()
	s.running = true
	pending := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	log.Info("事件循环已启动", "peer", s.host.ID(), "pending", len(pending))
	for _, ev := range pending {
		if err := s.dispatch(ev); err != nil {
			log.Error("事件循环因致命错误退出", "error", err)
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("事件循环停止", "reason", ctx.Err())
			return nil
		case <-s.ctx.Done():
			log.Info("事件循环停止", "reason", "closed")
			return nil
		case ev := <-s.events:
			if err := s.dispatch(ev); err != nil {
				log.Error("事件循环因致命错误退出", "error", err)
				return err
			}
		}
	}
}

// dispatch 处理单个事件
func (s *Swarm) dispatch(ev types.Event) error {
	s.metrics.ObserveEvent(ev)

	var fatal error
	switch e := ev.(type) {
	case *types.NewListenAddrEvent:
		log.Info("正在监听", "addr", e.Addr)
	case *types.ExpiredListenAddrEvent:
		log.Info("监听地址失效", "addr", e.Addr)
	case *types.ConnectionEstablishedEvent:
		log.Debug("连接已建立", "peer", e.Peer)
	case *types.ConnectionClosedEvent:
		log.Debug("连接已关闭", "peer", e.Peer)
	case *types.RuntimeErrorEvent:
		if e.Fatal {
			fatal = fmt.Errorf("%w: %s: %w", types.ErrRuntimeEvent, e.Source, e.Err)
		} else {
			log.Warn("运行时错误", "source", e.Source, "error", e.Err)
		}
	case *types.LivenessEvent:
		if e.Err != nil {
			log.Debug("存活探测失败", "peer", e.Peer, "error", e.Err)
		} else {
			log.Debug("存活探测", "peer", e.Peer, "rtt", e.RTT)
		}
	case *types.DiscoveryEvent:
		log.Info("发现本地节点", "peer", e.Peer, "addrs", e.Addrs)
	case *types.LookupEvent:
		log.Debug("查找完成",
			"op", e.Op,
			"key", e.Key,
			"found", e.Found,
			"peers", len(e.Peers),
			"duration", e.Duration,
			"error", e.Err)
	case *types.IdentifyEvent:
		if e.Err != nil {
			log.Debug("能力识别失败", "peer", e.Peer, "error", e.Err)
		} else {
			log.Debug("能力识别",
				"peer", e.Peer,
				"protocolVersion", e.ProtocolVersion,
				"agent", e.AgentVersion,
				"compatible", e.Compatible)
		}
	case *types.ReachabilityEvent:
		log.Info("可达性变化", "reachability", e.Reachability)
	default:
		log.Debug("未知事件", "type", ev.Type())
	}

	for _, fn := range s.observers {
		fn(ev)
	}
	return fatal
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 停止事件循环，关闭全部行为和传输端点
//
// 重复调用返回第一次的结果。
func (s *Swarm) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		s.bindMu.Lock()
		if s.notifiee != nil {
			s.host.Network().StopNotify(s.notifiee)
		}
		sub := s.sub
		s.bindMu.Unlock()

		if sub != nil {
			s.closeErr = multierr.Append(s.closeErr, sub.Close())
		}
		s.wg.Wait()

		s.closeErr = multierr.Combine(s.closeErr, s.set.Close(), s.host.Close())
		s.setState(StateStopped)
		log.Info("事件循环已关闭")
	})
	return s.closeErr
}
