package address

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
)

// ParseListenAddress 把 "host:port" 解析为 QUIC-v1 传输地址
//
// 在最后一个冒号处拆分，因此不带方括号的 IPv6 地址也能解析；
// 带方括号的 IPv6 主机（"[::1]:4001"）会先去掉方括号。
//
// 示例：
//   - "127.0.0.1:8082" → /ip4/127.0.0.1/udp/8082/quic-v1
//   - "[::1]:8082"     → /ip6/::1/udp/8082/quic-v1
//   - "0.0.0.0:0"      → /ip4/0.0.0.0/udp/0/quic-v1（端口由系统分配）
func ParseListenAddress(s string) (ma.Multiaddr, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedEndpoint)
	}

	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q has no port separator", ErrMalformedEndpoint, s)
	}
	host, portStr := s[:idx], s[idx+1:]
	if host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrMalformedEndpoint, s)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPort, portStr)
	}

	// 方括号只用于 IPv6
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		inner := host[1 : len(host)-1]
		if !strings.Contains(inner, ":") {
			return nil, fmt.Errorf("%w: %q is not an IPv6 literal", ErrInvalidIP, host)
		}
		host = inner
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, host)
	}

	// "::ffff:1.2.3.4" 这类写法按 IPv6 处理
	family := "ip6"
	if ip4 := ip.To4(); ip4 != nil && !strings.Contains(host, ":") {
		family, ip = "ip4", ip4
	}

	addr, err := ma.NewMultiaddr(fmt.Sprintf("/%s/%s/udp/%d/quic-v1", family, ip, port))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEndpoint, err)
	}
	return addr, nil
}

// Resolved 批量解析中单个输入的结果
type Resolved struct {
	Input string
	Addr  ma.Multiaddr
	Err   error
}

// ParseListenAddresses 逐个解析监听字符串
//
// 单个输入失败不会中断其余输入，调用方按 Resolved.Err 区分。
func ParseListenAddresses(inputs []string) []Resolved {
	out := make([]Resolved, 0, len(inputs))
	for _, in := range inputs {
		addr, err := ParseListenAddress(in)
		out = append(out, Resolved{Input: in, Addr: addr, Err: err})
	}
	return out
}

// FormatHostPort 把传输地址还原为 "host:port"，用于日志输出
//
// 不含 IP 和 UDP 组件的地址原样返回 multiaddr 字符串。
func FormatHostPort(addr ma.Multiaddr) string {
	if addr == nil {
		return ""
	}
	host, err := addr.ValueForProtocol(ma.P_IP4)
	if err != nil {
		if host, err = addr.ValueForProtocol(ma.P_IP6); err != nil {
			return addr.String()
		}
	}
	port, err := addr.ValueForProtocol(ma.P_UDP)
	if err != nil {
		return addr.String()
	}
	return net.JoinHostPort(host, port)
}
