package address

import (
	"fmt"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// 解析错误，均归类为配置错误
var (
	// ErrMalformedEndpoint 输入为空、缺少冒号或主机部分为空
	ErrMalformedEndpoint = fmt.Errorf("%w: malformed endpoint", types.ErrConfiguration)

	// ErrInvalidPort 端口不是 0-65535 的十进制整数
	ErrInvalidPort = fmt.Errorf("%w: invalid port", types.ErrConfiguration)

	// ErrInvalidIP 主机部分不是 IPv4/IPv6 字面量
	ErrInvalidIP = fmt.Errorf("%w: invalid ip address", types.ErrConfiguration)
)
