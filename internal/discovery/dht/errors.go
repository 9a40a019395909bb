package dht

import (
	"errors"
	"fmt"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// 预定义错误
var (
	// ErrStoreClosed 记录存储已关闭
	ErrStoreClosed = errors.New("dht: record store closed")

	// ErrValueTooLarge 值超过单条记录上限
	ErrValueTooLarge = errors.New("dht: value too large")

	// ErrInvalidRecordKey 记录键不属于 xfs 命名空间或名称为空
	ErrInvalidRecordKey = errors.New("dht: invalid record key")

	// ErrInvalidBootstrapPeer 引导节点地址无法解析
	ErrInvalidBootstrapPeer = fmt.Errorf("%w: invalid bootstrap peer", types.ErrConfiguration)
)
