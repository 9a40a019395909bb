package behaviour

import (
	"fmt"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

var (
	// ErrNilKey 私钥为空
	ErrNilKey = fmt.Errorf("%w: nil private key", types.ErrBehaviourSetup)

	// ErrNilHost host 为空
	ErrNilHost = fmt.Errorf("%w: nil host", types.ErrBehaviourSetup)

	// ErrPeerIDMismatch host 身份与私钥不一致
	ErrPeerIDMismatch = fmt.Errorf("%w: host peer ID does not match private key", types.ErrBehaviourSetup)
)
