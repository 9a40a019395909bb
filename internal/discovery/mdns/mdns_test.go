package mdns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// fakeService 记录启动与关闭的 mDNS 服务
type fakeService struct {
	mu       sync.Mutex
	startErr error
	started  bool
	closed   bool
}

func (f *fakeService) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeService) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// withFakeMDNS 替换 mDNS 构造函数
func withFakeMDNS(t *testing.T, svc *fakeService) {
	t.Helper()
	orig := newMDNS
	newMDNS = func(host.Host, string, mdns.Notifee) mdns.Service { return svc }
	t.Cleanup(func() { newMDNS = orig })
}

// newLinkedPair 创建两个已链接但未连接的内存 host
func newLinkedPair(t *testing.T) (host.Host, host.Host) {
	t.Helper()
	mn, err := mocknet.FullMeshLinked(2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mn.Close() })
	hosts := mn.Hosts()
	return hosts[0], hosts[1]
}

func enabledConfig() config.MDNSConfig {
	return config.DefaultDiscoveryConfig().MDNS
}

// TestNew_Disabled 测试关闭时行为不收发组播
func TestNew_Disabled(t *testing.T) {
	a, _ := newLinkedPair(t)
	cfg := enabledConfig()
	cfg.Enable = false

	d, err := New(a, cfg)
	require.NoError(t, err)
	assert.False(t, d.Enabled())
	assert.Equal(t, types.BehaviourDiscovery, d.Name())

	require.NoError(t, d.Start(context.Background(), func(types.Event) {}))
	assert.NoError(t, d.Close())
}

// TestNew_EmptyServiceName 测试空服务名
func TestNew_EmptyServiceName(t *testing.T) {
	a, _ := newLinkedPair(t)
	cfg := enabledConfig()
	cfg.ServiceName = ""

	_, err := New(a, cfg)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

// TestStart_StartsService 测试启动与关闭底层服务
func TestStart_StartsService(t *testing.T) {
	svc := &fakeService{}
	withFakeMDNS(t, svc)
	a, _ := newLinkedPair(t)

	d, err := New(a, enabledConfig())
	require.NoError(t, err)
	require.True(t, d.Enabled())

	require.NoError(t, d.Start(context.Background(), func(types.Event) {}))
	require.NoError(t, d.Close())

	assert.True(t, svc.started)
	assert.True(t, svc.closed)
}

// TestStart_Failure 测试底层服务启动失败
func TestStart_Failure(t *testing.T) {
	svc := &fakeService{startErr: errors.New("no multicast interface")}
	withFakeMDNS(t, svc)
	a, _ := newLinkedPair(t)

	d, err := New(a, enabledConfig())
	require.NoError(t, err)

	err = d.Start(context.Background(), func(types.Event) {})
	assert.ErrorIs(t, err, ErrStartFailed)
	assert.NoError(t, d.Close())
	assert.False(t, svc.closed)
}

// TestHandlePeerFound 测试发现节点后投递事件并建立连接
func TestHandlePeerFound(t *testing.T) {
	withFakeMDNS(t, &fakeService{})
	a, b := newLinkedPair(t)

	d, err := New(a, enabledConfig())
	require.NoError(t, err)

	events := make(chan types.Event, 4)
	require.NoError(t, d.Start(context.Background(), func(ev types.Event) { events <- ev }))
	defer d.Close()

	d.HandlePeerFound(peer.AddrInfo{ID: b.ID(), Addrs: b.Addrs()})

	select {
	case ev := <-events:
		de, ok := ev.(*types.DiscoveryEvent)
		require.True(t, ok)
		assert.Equal(t, b.ID(), de.Peer)
		assert.NotEmpty(t, de.Addrs)
	case <-time.After(5 * time.Second):
		t.Fatal("未收到发现事件")
	}

	require.Eventually(t, func() bool {
		return a.Network().Connectedness(b.ID()) == network.Connected
	}, 5*time.Second, 20*time.Millisecond)
	assert.Len(t, d.Discovered(), 1)
}

// TestHandlePeerFound_IgnoresSelf 测试忽略自身
func TestHandlePeerFound_IgnoresSelf(t *testing.T) {
	withFakeMDNS(t, &fakeService{})
	a, _ := newLinkedPair(t)

	d, err := New(a, enabledConfig())
	require.NoError(t, err)

	var count int
	require.NoError(t, d.Start(context.Background(), func(types.Event) { count++ }))
	defer d.Close()

	d.HandlePeerFound(peer.AddrInfo{ID: a.ID(), Addrs: a.Addrs()})
	assert.Zero(t, count)
	assert.Empty(t, d.Discovered())
}

// TestHandlePeerFound_AfterClose 测试关闭后不再处理
func TestHandlePeerFound_AfterClose(t *testing.T) {
	withFakeMDNS(t, &fakeService{})
	a, b := newLinkedPair(t)

	d, err := New(a, enabledConfig())
	require.NoError(t, err)

	var count int
	require.NoError(t, d.Start(context.Background(), func(types.Event) { count++ }))
	require.NoError(t, d.Close())

	d.HandlePeerFound(peer.AddrInfo{ID: b.ID(), Addrs: b.Addrs()})
	assert.Zero(t, count)
}
