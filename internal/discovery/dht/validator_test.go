package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidator_Validate 测试键格式与值大小检查
func TestValidator_Validate(t *testing.T) {
	v := Validator{MaxValueBytes: 4}

	assert.NoError(t, v.Validate(RecordKey("alpha"), []byte("ok")))
	assert.ErrorIs(t, v.Validate(RecordKey("alpha"), []byte("too long")), ErrValueTooLarge)
	assert.ErrorIs(t, v.Validate("/other/alpha", nil), ErrInvalidRecordKey)
	assert.ErrorIs(t, v.Validate("/xfs/", nil), ErrInvalidRecordKey)
	assert.ErrorIs(t, v.Validate("no-namespace", nil), ErrInvalidRecordKey)
}

// TestValidator_Select 测试冲突值的确定性选择
func TestValidator_Select(t *testing.T) {
	v := Validator{}

	i, err := v.Select("k", [][]byte{[]byte("b"), []byte("c"), []byte("a")})
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = v.Select("k", nil)
	assert.Error(t, err)
}

// TestContentKey 测试内容标识稳定
func TestContentKey(t *testing.T) {
	a, err := ContentKey("file.txt")
	require.NoError(t, err)
	b, err := ContentKey("file.txt")
	require.NoError(t, err)
	c, err := ContentKey("other.txt")
	require.NoError(t, err)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.Equal(t, "/xfs/file.txt", RecordKey("file.txt"))
}
