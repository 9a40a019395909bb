package ping

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/xchangefs/go-xchangefs/internal/util/logger"
)

var log = logger.Logger("protocol.ping")

// ProtocolID ping 协议 ID
const ProtocolID protocol.ID = "/ipfs/ping/1.0.0"

const (
	// PingSize 每次探测的载荷大小
	PingSize = 32

	// PingTimeout 单次探测的默认超时
	PingTimeout = 10 * time.Second

	// HandlerIdleTimeout 响应方等待下一次探测的最长时间
	HandlerIdleTimeout = 60 * time.Second
)

var (
	// ErrDataMismatch 回显数据与发送数据不一致
	ErrDataMismatch = errors.New("ping: echo data mismatch")
)

// Register 在 host 上注册 ping 响应处理器
func Register(h host.Host) {
	h.SetStreamHandler(ProtocolID, Handler)
}

// Unregister 移除 ping 响应处理器
func Unregister(h host.Host) {
	h.RemoveStreamHandler(ProtocolID)
}

// Handler 处理 ping 请求（响应方）
//
// 循环读取 PingSize 字节并回写，直到对端关闭流或空闲超时。
func Handler(s network.Stream) {
	defer s.Close()

	buf := make([]byte, PingSize)
	for {
		_ = s.SetReadDeadline(time.Now().Add(HandlerIdleTimeout))

		if _, err := io.ReadFull(s, buf); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("读取 ping 请求结束", "peer", s.Conn().RemotePeer(), "error", err)
			}
			return
		}

		_ = s.SetWriteDeadline(time.Now().Add(PingTimeout))
		if _, err := s.Write(buf); err != nil {
			_ = s.Reset()
			return
		}
	}
}

// Ping 向节点发送一次探测并返回往返时延
//
// ctx 没有截止时间时使用 PingTimeout。
func Ping(ctx context.Context, h host.Host, p peer.ID) (time.Duration, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, PingTimeout)
		defer cancel()
	}

	s, err := h.NewStream(network.WithAllowLimitedConn(ctx, "ping"), p, ProtocolID)
	if err != nil {
		return 0, fmt.Errorf("open ping stream: %w", err)
	}
	defer s.Close()

	deadline, _ := ctx.Deadline()
	_ = s.SetDeadline(deadline)

	// ctx 取消时中断阻塞的读写
	stop := context.AfterFunc(ctx, func() { _ = s.Reset() })
	defer stop()

	rtt, err := roundTrip(s)
	if err != nil {
		_ = s.Reset()
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, err
	}
	return rtt, nil
}

// roundTrip 在流上完成一次写入和回显校验
func roundTrip(rw io.ReadWriter) (time.Duration, error) {
	buf := make([]byte, PingSize)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := rw.Write(buf); err != nil {
		return 0, err
	}

	echo := make([]byte, PingSize)
	if _, err := io.ReadFull(rw, echo); err != nil {
		return 0, err
	}
	rtt := time.Since(start)

	if !bytes.Equal(buf, echo) {
		return 0, ErrDataMismatch
	}
	return rtt, nil
}
