package ping

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPair 创建两个已连接的内存 host
func newPair(t *testing.T) (host.Host, host.Host) {
	t.Helper()
	mn, err := mocknet.FullMeshConnected(2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mn.Close() })

	hosts := mn.Hosts()
	return hosts[0], hosts[1]
}

// TestPing_Success 测试探测成功
func TestPing_Success(t *testing.T) {
	a, b := newPair(t)
	Register(b)

	rtt, err := Ping(context.Background(), a, b.ID())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rtt, time.Duration(0))
}

// TestPing_Repeated 测试同一对节点连续探测
func TestPing_Repeated(t *testing.T) {
	a, b := newPair(t)
	Register(b)

	for i := 0; i < 5; i++ {
		_, err := Ping(context.Background(), a, b.ID())
		require.NoError(t, err, "第 %d 次探测", i)
	}
}

// TestPing_NoHandler 测试对端未注册协议
func TestPing_NoHandler(t *testing.T) {
	a, b := newPair(t)

	_, err := Ping(context.Background(), a, b.ID())
	require.Error(t, err)
}

// TestPing_Unregister 测试移除处理器后探测失败
func TestPing_Unregister(t *testing.T) {
	a, b := newPair(t)
	Register(b)
	Unregister(b)

	_, err := Ping(context.Background(), a, b.ID())
	require.Error(t, err)
}

// TestPing_ContextCanceled 测试 ctx 已取消
func TestPing_ContextCanceled(t *testing.T) {
	a, b := newPair(t)
	Register(b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Ping(ctx, a, b.ID())
	require.Error(t, err)
}

// echoRW 回显读写器，可选篡改回显内容
type echoRW struct {
	buf     bytes.Buffer
	corrupt bool
}

func (e *echoRW) Write(p []byte) (int, error) {
	data := append([]byte(nil), p...)
	if e.corrupt {
		data[0] ^= 0xff
	}
	return e.buf.Write(data)
}

func (e *echoRW) Read(p []byte) (int, error) {
	return e.buf.Read(p)
}

// TestRoundTrip 测试回显校验
func TestRoundTrip(t *testing.T) {
	t.Run("一致", func(t *testing.T) {
		_, err := roundTrip(&echoRW{})
		require.NoError(t, err)
	})

	t.Run("不一致", func(t *testing.T) {
		_, err := roundTrip(&echoRW{corrupt: true})
		assert.ErrorIs(t, err, ErrDataMismatch)
	})

	t.Run("对端关闭", func(t *testing.T) {
		_, err := roundTrip(struct {
			io.Reader
			io.Writer
		}{bytes.NewReader(nil), io.Discard})
		assert.True(t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF))
	})
}
