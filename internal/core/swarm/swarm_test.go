package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/core/behaviour"
	corehost "github.com/xchangefs/go-xchangefs/internal/core/host"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// recorder 线程安全地记录观察到的事件
type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) observe(ev types.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Event(nil), r.events...)
}

// testConfig 不使用组播、不做主动探测的配置
func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Node.DataDir = "unused"
	cfg.Discovery.MDNS.Enable = false
	cfg.Liveness.Enable = false
	cfg.NAT.EnableAutoNATService = false
	cfg.NAT.ForceReachability = config.ReachabilityPrivate
	return cfg
}

// newTestSwarm 在真实 QUIC 端点上创建事件循环
func newTestSwarm(t *testing.T, opts ...Option) *Swarm {
	t.Helper()
	cfg := testConfig()

	priv, _, err := crypto.GenerateEd25519Key(nil)
	require.NoError(t, err)

	h, err := corehost.New(priv, cfg, behaviour.HostOptions(cfg)...)
	require.NoError(t, err)

	set, err := behaviour.Compose(priv, h, cfg)
	require.NoError(t, err)

	s, err := New(h, set, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// runAsync 在后台运行事件循环
func runAsync(s *Swarm, ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("事件循环未退出")
		return nil
	}
}

// TestNew_NilInputs 测试缺少依赖
func TestNew_NilInputs(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, types.ErrBehaviourSetup)
}

// TestNew_InvalidBuffer 测试非法的通道容量
func TestNew_InvalidBuffer(t *testing.T) {
	s := newTestSwarm(t)
	_, err := New(s.Host(), s.Behaviours(), WithEventBuffer(0))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

// TestBind_Partial 测试部分地址失败不影响其余地址
func TestBind_Partial(t *testing.T) {
	s := newTestSwarm(t)

	outcomes, err := s.Bind([]string{
		"127.0.0.1:0",
		"not-an-address",
		"192.0.2.1:4001", // TEST-NET 地址，本机无法绑定
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, types.ListenBound, outcomes[0].Status)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, types.ListenParseFailed, outcomes[1].Status)
	assert.ErrorIs(t, outcomes[1].Err, types.ErrConfiguration)
	assert.Nil(t, outcomes[1].Addr)
	assert.Equal(t, types.ListenBindFailed, outcomes[2].Status)
	assert.NotNil(t, outcomes[2].Addr)
	assert.Error(t, outcomes[2].Err)

	assert.Equal(t, StateListeningPartial, s.State())
	assert.NotEmpty(t, s.ListenAddrs())
}

// TestBind_Full 测试全部地址成功
func TestBind_Full(t *testing.T) {
	s := newTestSwarm(t)

	_, err := s.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)
	assert.Equal(t, StateListeningFull, s.State())
}

// TestBind_AllFail 测试全部失败时返回错误且事件循环不能启动
func TestBind_AllFail(t *testing.T) {
	s := newTestSwarm(t)

	outcomes, err := s.Bind([]string{"bogus", "127.0.0.1:99999"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBind)
	assert.False(t, AnyBound(outcomes))
	assert.Equal(t, StateUnbound, s.State())

	err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNotBound)
}

// TestBind_Duplicate 测试重复的监听地址只绑定一次
func TestBind_Duplicate(t *testing.T) {
	s := newTestSwarm(t)

	outcomes, err := s.Bind([]string{"127.0.0.1:0", "127.0.0.1:0", "bogus", "bogus"})
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.Equal(t, types.ListenBound, outcomes[0].Status)
	assert.Equal(t, types.ListenBindFailed, outcomes[1].Status)
	assert.ErrorIs(t, outcomes[1].Err, ErrDuplicateListenAddr)
	assert.True(t, outcomes[0].Addr.Equal(outcomes[1].Addr))

	// 解析失败的输入不参与去重
	assert.Equal(t, types.ListenParseFailed, outcomes[2].Status)
	assert.Equal(t, types.ListenParseFailed, outcomes[3].Status)

	assert.Equal(t, StateListeningPartial, s.State())
	assert.Len(t, s.ListenAddrs(), 1)
}

// TestBind_MoreAddrsThanBuffer 测试监听地址多于事件通道容量时绑定不阻塞
func TestBind_MoreAddrsThanBuffer(t *testing.T) {
	const n = 8
	rec := &recorder{}
	s := newTestSwarm(t, WithEventBuffer(2), WithEventHandler(rec.observe))

	listen := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		listen = append(listen, fmt.Sprintf("127.0.0.%d:0", i))
	}

	type result struct {
		outcomes []ListenOutcome
		err      error
	}
	bound := make(chan result, 1)
	go func() {
		outcomes, err := s.Bind(listen)
		bound <- result{outcomes, err}
	}()

	var res result
	select {
	case res = <-bound:
	case <-time.After(10 * time.Second):
		t.Fatal("事件循环启动前绑定阻塞")
	}
	require.NoError(t, res.err)
	assert.Equal(t, StateListeningFull, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(s, ctx)

	// 绑定期间产生的监听事件在事件循环启动后全部送达
	require.Eventually(t, func() bool {
		count := 0
		for _, ev := range rec.snapshot() {
			if _, ok := ev.(*types.NewListenAddrEvent); ok {
				count++
			}
		}
		return count >= n
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, waitDone(t, done))
}

// TestBind_Twice 测试重复绑定
func TestBind_Twice(t *testing.T) {
	s := newTestSwarm(t)

	_, err := s.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)

	_, err = s.Bind([]string{"127.0.0.1:0"})
	assert.ErrorIs(t, err, ErrAlreadyBound)
}

// TestRun_ListenAddrAndCancel 测试监听事件携带实际端口，ctx 取消时正常退出
func TestRun_ListenAddrAndCancel(t *testing.T) {
	rec := &recorder{}
	s := newTestSwarm(t, WithEventHandler(rec.observe))

	_, err := s.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(s, ctx)

	require.Eventually(t, func() bool {
		for _, ev := range rec.snapshot() {
			if e, ok := ev.(*types.NewListenAddrEvent); ok {
				port, err := e.Addr.ValueForProtocol(ma.P_UDP)
				return err == nil && port != "0"
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, StateRunning, s.State())

	cancel()
	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, StateStopped, s.State())
}

// TestRun_FatalRuntimeError 测试致命运行时错误结束事件循环
func TestRun_FatalRuntimeError(t *testing.T) {
	s := newTestSwarm(t)
	_, err := s.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)

	done := runAsync(s, context.Background())

	cause := errors.New("endpoint failed")
	s.emit(&types.RuntimeErrorEvent{
		BaseEvent: types.NewBaseEvent(types.EventTypeRuntimeError),
		Source:    "test",
		Err:       errors.New("transient"),
	})
	s.emit(&types.RuntimeErrorEvent{
		BaseEvent: types.NewBaseEvent(types.EventTypeRuntimeError),
		Source:    "test",
		Err:       cause,
		Fatal:     true,
	})

	err = waitDone(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRuntimeEvent)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateStopped, s.State())

	// 事件循环退出后行为的投递立即返回，不会卡在已满的通道上
	emitted := make(chan struct{})
	go func() {
		defer close(emitted)
		for i := 0; i < 4*DefaultEventBuffer; i++ {
			s.emit(&types.LivenessEvent{BaseEvent: types.NewBaseEvent(types.EventTypeLiveness)})
		}
	}()
	select {
	case <-emitted:
	case <-time.After(5 * time.Second):
		t.Fatal("事件循环退出后投递阻塞")
	}
}

// TestRun_ListenersGone 测试所有监听关闭后事件循环退出
func TestRun_ListenersGone(t *testing.T) {
	s := newTestSwarm(t)
	_, err := s.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)

	closer, ok := s.Host().Network().(interface{ ListenClose(...ma.Multiaddr) })
	if !ok {
		t.Skip("network does not support closing listeners")
	}

	done := runAsync(s, context.Background())
	closer.ListenClose(s.ListenAddrs()...)

	err = waitDone(t, done)
	assert.ErrorIs(t, err, types.ErrRuntimeEvent)
	assert.ErrorIs(t, err, ErrListenersGone)
}

// TestRun_PreservesOrder 测试同一生产者的事件按顺序分发
func TestRun_PreservesOrder(t *testing.T) {
	rec := &recorder{}
	s := newTestSwarm(t, WithEventHandler(rec.observe))
	_, err := s.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(s, ctx)

	const n = 200
	for i := 1; i <= n; i++ {
		s.emit(&types.LivenessEvent{
			BaseEvent: types.NewBaseEvent(types.EventTypeLiveness),
			RTT:       time.Duration(i),
		})
	}

	var seq []time.Duration
	require.Eventually(t, func() bool {
		seq = seq[:0]
		for _, ev := range rec.snapshot() {
			if e, ok := ev.(*types.LivenessEvent); ok {
				seq = append(seq, e.RTT)
			}
		}
		return len(seq) == n
	}, 5*time.Second, 20*time.Millisecond)

	for i, rtt := range seq {
		assert.Equal(t, time.Duration(i+1), rtt)
	}

	cancel()
	assert.NoError(t, waitDone(t, done))
}

// TestRun_ConnectionEvents 测试连接建立与关闭事件
func TestRun_ConnectionEvents(t *testing.T) {
	rec := &recorder{}
	a := newTestSwarm(t, WithEventHandler(rec.observe))
	b := newTestSwarm(t)

	_, err := a.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)
	_, err = b.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runAsync(a, ctx)
	runAsync(b, ctx)

	info := peer.AddrInfo{ID: b.Host().ID(), Addrs: b.ListenAddrs()}
	require.NoError(t, a.Host().Connect(ctx, info))

	seen := func(match func(types.Event) bool) func() bool {
		return func() bool {
			for _, ev := range rec.snapshot() {
				if match(ev) {
					return true
				}
			}
			return false
		}
	}

	require.Eventually(t, seen(func(ev types.Event) bool {
		e, ok := ev.(*types.ConnectionEstablishedEvent)
		return ok && e.Peer == info.ID
	}), 5*time.Second, 20*time.Millisecond)

	require.NoError(t, a.Host().Network().ClosePeer(info.ID))

	require.Eventually(t, seen(func(ev types.Event) bool {
		e, ok := ev.(*types.ConnectionClosedEvent)
		return ok && e.Peer == info.ID
	}), 5*time.Second, 20*time.Millisecond)
}

// TestClose_StopsRun 测试关闭时事件循环正常退出
func TestClose_StopsRun(t *testing.T) {
	s := newTestSwarm(t)
	_, err := s.Bind([]string{"127.0.0.1:0"})
	require.NoError(t, err)

	done := runAsync(s, context.Background())
	require.Eventually(t, func() bool { return s.State() == StateRunning }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Close())
	assert.NoError(t, waitDone(t, done))
	assert.NoError(t, s.Close())
	assert.Equal(t, StateStopped, s.State())
}
