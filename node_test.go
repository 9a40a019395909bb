package xchangefs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/core/swarm"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// testConfig 关闭组播和主动探测，避免测试依赖外部网络
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Node.DataDir = t.TempDir()
	cfg.Node.ListenAddrs = []string{"127.0.0.1:0"}
	cfg.Discovery.MDNS.Enable = false
	cfg.Liveness.Enable = false
	cfg.NAT.EnableAutoNATService = false
	cfg.NAT.ForceReachability = config.ReachabilityPrivate
	return cfg
}

func stopNode(t *testing.T, n *Node) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.NoError(t, n.Stop(ctx))
}

func TestNode_StartStop(t *testing.T) {
	n, err := New(WithConfig(testConfig(t)))
	require.NoError(t, err)

	require.NoError(t, n.Start(context.Background()))
	assert.NotEmpty(t, n.ID())
	assert.Equal(t, swarm.StateRunning, waitState(t, n, swarm.StateRunning))
	require.Len(t, n.ListenOutcomes(), 1)
	assert.Equal(t, types.ListenBound, n.ListenOutcomes()[0].Status)
	assert.NotEmpty(t, n.ListenAddrs())

	stopNode(t, n)

	select {
	case <-n.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("事件循环未退出")
	}
	assert.NoError(t, n.Err())
	assert.Equal(t, swarm.StateStopped, n.State())

	// 重复停止
	assert.NoError(t, n.Stop(context.Background()))
}

func TestNode_StartTwice(t *testing.T) {
	n, err := New(WithConfig(testConfig(t)))
	require.NoError(t, err)
	defer stopNode(t, n)

	require.NoError(t, n.Start(context.Background()))
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)
}

func TestNode_StartAfterStop(t *testing.T) {
	n, err := New(WithConfig(testConfig(t)))
	require.NoError(t, err)

	stopNode(t, n)
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)
}

func TestNode_BindFailure(t *testing.T) {
	// 192.0.2.0/24 为文档保留地址，本机不可能持有
	n, err := New(
		WithConfig(testConfig(t)),
		WithListenAddrs("192.0.2.1:4001", "not-an-endpoint"),
	)
	require.NoError(t, err)

	err = n.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBind)

	outcomes := n.ListenOutcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, types.ListenBindFailed, outcomes[0].Status)
	assert.Equal(t, types.ListenParseFailed, outcomes[1].Status)

	// 失败后节点已关闭
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)
	assert.NoError(t, n.Stop(context.Background()))
}

func TestNode_PartialBind(t *testing.T) {
	n, err := New(
		WithConfig(testConfig(t)),
		WithListenAddrs("bogus", "127.0.0.1:0"),
	)
	require.NoError(t, err)
	defer stopNode(t, n)

	require.NoError(t, n.Start(context.Background()))
	outcomes := n.ListenOutcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, types.ListenParseFailed, outcomes[0].Status)
	assert.Equal(t, types.ListenBound, outcomes[1].Status)
}

func TestNode_EventHandler(t *testing.T) {
	var (
		mu     sync.Mutex
		events []types.Event
	)
	got := make(chan *types.NewListenAddrEvent, 1)

	n, err := New(
		WithConfig(testConfig(t)),
		WithEventHandler(func(e types.Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
			if ev, ok := e.(*types.NewListenAddrEvent); ok {
				select {
				case got <- ev:
				default:
				}
			}
		}),
	)
	require.NoError(t, err)
	defer stopNode(t, n)

	require.NoError(t, n.Start(context.Background()))

	select {
	case ev := <-got:
		port, err := ev.Addr.ValueForProtocol(ma.P_UDP)
		require.NoError(t, err)
		assert.NotEqual(t, "0", port, "应报告系统分配的实际端口")
	case <-time.After(5 * time.Second):
		t.Fatal("未收到 NewListenAddrEvent")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, events)
}

func TestNode_PersistentIdentity(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(WithConfig(cfg))
	require.NoError(t, err)
	id := first.ID()
	keyPath := first.KeyPath()
	stopNode(t, first)

	assert.Equal(t, filepath.Join(cfg.Node.DataDir, config.IdentityFileName), keyPath)
	_, err = os.Stat(keyPath)
	require.NoError(t, err)

	second, err := New(WithConfig(cfg))
	require.NoError(t, err)
	defer stopNode(t, second)
	assert.Equal(t, id, second.ID(), "同一数据目录应得到同一身份")
}

func TestNode_CorruptIdentity(t *testing.T) {
	cfg := testConfig(t)
	keyPath := filepath.Join(cfg.Node.DataDir, config.IdentityFileName)
	require.NoError(t, os.WriteFile(keyPath, []byte("garbage"), 0o600))

	_, err := New(WithConfig(cfg))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentity)

	// 损坏的密钥文件不会被覆盖
	data, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(data))
}

func TestNode_InjectedKey(t *testing.T) {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	require.NoError(t, err)
	want, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)

	cfg := testConfig(t)
	n, err := New(WithConfig(cfg), WithPrivateKey(priv))
	require.NoError(t, err)
	defer stopNode(t, n)

	assert.Equal(t, want, n.ID())
	_, err = os.Stat(filepath.Join(cfg.Node.DataDir, config.IdentityFileName))
	assert.True(t, os.IsNotExist(err), "注入私钥时不写密钥文件")
}

func TestNode_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Node.IdleTimeout = 0

	_, err := New(WithConfig(cfg))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(WithDataDir(""))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNode_Connect(t *testing.T) {
	a, err := New(WithConfig(testConfig(t)))
	require.NoError(t, err)
	defer stopNode(t, a)
	b, err := New(WithConfig(testConfig(t)))
	require.NoError(t, err)
	defer stopNode(t, b)

	assert.ErrorIs(t, a.Connect(context.Background(), b.AddrInfo()), ErrNotStarted)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Connect(ctx, b.AddrInfo()))
}

func TestNode_Metrics(t *testing.T) {
	n, err := New(WithConfig(testConfig(t)), WithMetrics(true))
	require.NoError(t, err)
	defer stopNode(t, n)
	require.NotNil(t, n.MetricsRegistry())

	require.NoError(t, n.Start(context.Background()))
	families, err := n.MetricsRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["xchangefs_swarm_listen_outcomes_total"])
	assert.True(t, names["xchangefs_record_store_records"])
}

func TestNode_MetricsDisabled(t *testing.T) {
	n, err := New(WithConfig(testConfig(t)), WithMetrics(false))
	require.NoError(t, err)
	defer stopNode(t, n)
	assert.Nil(t, n.MetricsRegistry())
}

// waitState 等待事件循环进入指定状态
func waitState(t *testing.T, n *Node, want swarm.State) swarm.State {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := n.State(); s == want {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	return n.State()
}
