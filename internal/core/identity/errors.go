package identity

import (
	"fmt"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// 错误定义，均归类为身份错误
var (
	// ErrKeyNotFound 密钥文件不存在
	ErrKeyNotFound = fmt.Errorf("%w: key file not found", types.ErrIdentity)

	// ErrCorruptKey 密钥文件存在但无法解码
	ErrCorruptKey = fmt.Errorf("%w: corrupt key file", types.ErrIdentity)

	// ErrStorage 密钥目录或文件读写失败
	ErrStorage = fmt.Errorf("%w: key storage", types.ErrIdentity)

	// ErrNilKey 私钥为 nil
	ErrNilKey = fmt.Errorf("%w: private key is nil", types.ErrIdentity)
)
