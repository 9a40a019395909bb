package dht

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	record "github.com/libp2p/go-libp2p-record"
	mh "github.com/multiformats/go-multihash"

	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// RecordKey 返回名称在 xfs 命名空间下的记录键
func RecordKey(name string) string {
	return "/" + types.RecordNamespace + "/" + name
}

// ContentKey 返回名称对应的内容标识，用于 Provide/FindProviders
func ContentKey(name string) (cid.Cid, error) {
	sum, err := mh.Sum([]byte(name), mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Validator xfs 命名空间的记录验证器
//
// 只检查键格式和值大小；同一键有多个值时选字节序最大的一个，
// 保证所有节点对冲突值做出相同选择。
type Validator struct {
	MaxValueBytes int
}

var _ record.Validator = Validator{}

// Validate 实现 record.Validator
func (v Validator) Validate(key string, value []byte) error {
	ns, name, err := record.SplitKey(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecordKey, err)
	}
	if ns != types.RecordNamespace || name == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRecordKey, key)
	}
	if v.MaxValueBytes > 0 && len(value) > v.MaxValueBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrValueTooLarge, len(value), v.MaxValueBytes)
	}
	return nil
}

// Select 实现 record.Validator
func (v Validator) Select(_ string, values [][]byte) (int, error) {
	if len(values) == 0 {
		return 0, errors.New("dht: no values to select from")
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if bytes.Compare(values[i], values[best]) > 0 {
			best = i
		}
	}
	return best, nil
}
