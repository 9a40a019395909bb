package mdns

import "errors"

var (
	// ErrStartFailed mDNS 服务启动失败
	ErrStartFailed = errors.New("mdns: start failed")
)
