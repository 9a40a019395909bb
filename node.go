package xchangefs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/core/behaviour"
	"github.com/xchangefs/go-xchangefs/internal/core/identity"
	"github.com/xchangefs/go-xchangefs/internal/core/swarm"
	"github.com/xchangefs/go-xchangefs/internal/discovery/dht"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
)

var log = logger.Logger("xchangefs")

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期常量
// ════════════════════════════════════════════════════════════════════════════

const (
	// startTimeout Fx App 启动超时
	startTimeout = 30 * time.Second

	// stopTimeout Fx App 停止超时
	stopTimeout = 15 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node XchangeFS 节点
//
// 通过 New 创建，Start 绑定监听地址并在后台运行事件循环，Stop 关闭全部组件。
// 一个节点只能启动一次。
type Node struct {
	cfg *config.Config
	app *fx.App

	// 由 fx 注入
	swarm    *swarm.Swarm
	identity *identity.Manager
	registry *prometheus.Registry

	mu        sync.Mutex
	started   bool
	closed    bool
	outcomes  []swarm.ListenOutcome
	cancelRun context.CancelFunc
	done      chan struct{}
	runErr    error
}

// New 创建节点
//
// 加载或生成身份、创建传输端点并组合行为，但还不监听任何地址。
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("%w: apply option: %w", ErrConfiguration, err)
		}
	}

	cfg := o.toConfig()
	node := &Node{
		cfg:  cfg,
		done: make(chan struct{}),
	}

	app, err := buildFxApp(cfg, o, node)
	if err != nil {
		return nil, err
	}
	node.app = app
	return node, nil
}

// Start 启动节点
//
// 逐个绑定配置的监听地址，至少一个成功后启动行为并在后台运行事件循环。
// 全部失败时返回包装 ErrBind 的错误，节点随之关闭。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := n.app.Start(startCtx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	outcomes, err := n.swarm.Bind(n.cfg.Node.ListenAddrs)
	n.outcomes = outcomes
	if err != nil {
		n.stopAppLocked()
		return err
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	n.cancelRun = cancelRun
	n.started = true

	go func() {
		err := n.swarm.Run(runCtx)
		n.mu.Lock()
		n.runErr = err
		n.mu.Unlock()
		close(n.done)
	}()

	log.Info("节点已启动",
		"peer", n.ID(),
		"addrs", n.swarm.ListenAddrs())
	return nil
}

// Stop 停止事件循环并关闭全部组件
//
// 重复调用安全。
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	cancelRun := n.cancelRun
	started := n.started
	n.mu.Unlock()

	if cancelRun != nil {
		cancelRun()
	}
	if started {
		select {
		case <-n.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// 未启动的 App 不会执行 OnStop，直接关闭事件循环
	if !started {
		return n.swarm.Close()
	}

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := n.app.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop node: %w", err)
	}
	log.Info("节点已停止")
	return nil
}

// stopAppLocked 启动失败时关闭已启动的组件
func (n *Node) stopAppLocked() {
	n.closed = true
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := n.app.Stop(stopCtx); err != nil {
		log.Warn("关闭节点失败", "error", err)
	}
}

// Done 在事件循环退出后关闭
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Err 返回事件循环退出的原因
//
// 事件循环仍在运行、被 Stop 停止时返回 nil；
// 因致命运行时错误退出时返回包装 ErrRuntimeEvent 的错误。
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.runErr
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询
// ════════════════════════════════════════════════════════════════════════════

// ID 返回节点 ID
func (n *Node) ID() peer.ID {
	return n.swarm.Host().ID()
}

// Config 返回节点使用的配置
func (n *Node) Config() *config.Config {
	return n.cfg
}

// KeyPath 返回身份密钥文件路径
func (n *Node) KeyPath() string {
	return n.identity.Path()
}

// ListenAddrs 返回当前生效的监听地址
func (n *Node) ListenAddrs() []ma.Multiaddr {
	return n.swarm.ListenAddrs()
}

// AddrInfo 返回可供其他节点连接的地址信息
func (n *Node) AddrInfo() peer.AddrInfo {
	return peer.AddrInfo{ID: n.ID(), Addrs: n.swarm.Host().Addrs()}
}

// ListenOutcomes 返回启动时每个监听地址的处理结果
func (n *Node) ListenOutcomes() []swarm.ListenOutcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]swarm.ListenOutcome(nil), n.outcomes...)
}

// State 返回事件循环状态
func (n *Node) State() swarm.State {
	return n.swarm.State()
}

// Behaviours 返回组合的行为
func (n *Node) Behaviours() *behaviour.Set {
	return n.swarm.Behaviours()
}

// Lookup 返回分布式查找行为
func (n *Node) Lookup() *dht.Lookup {
	return n.swarm.Behaviours().Lookup
}

// Connect 连接到指定节点
func (n *Node) Connect(ctx context.Context, info peer.AddrInfo) error {
	n.mu.Lock()
	started, closed := n.started, n.closed
	n.mu.Unlock()
	if closed {
		return ErrNodeClosed
	}
	if !started {
		return ErrNotStarted
	}
	return n.swarm.Host().Connect(ctx, info)
}

// MetricsRegistry 返回指标注册表，未启用指标时为 nil
func (n *Node) MetricsRegistry() *prometheus.Registry {
	return n.registry
}
