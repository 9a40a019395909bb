package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
)

var log = logger.Logger("identity")

// LoadOrGenerate 从数据目录加载节点私钥，不存在时生成并保存
//
// 数据目录不存在时以 0700 权限创建。
func LoadOrGenerate(dataDir string) (crypto.PrivKey, error) {
	return NewManager(filepath.Join(dataDir, config.IdentityFileName)).LoadOrGenerate()
}

// Manager 管理单个密钥文件
type Manager struct {
	path string
}

// NewManager 创建密钥文件管理器
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path 返回密钥文件路径
func (m *Manager) Path() string {
	return m.path
}

// Load 从文件加载私钥
//
// 文件不存在返回 ErrKeyNotFound，无法解码返回 ErrCorruptKey。
func (m *Manager) Load() (crypto.PrivKey, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, m.path)
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, m.path, err)
	}

	priv, err := crypto.UnmarshalPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptKey, m.path, err)
	}
	return priv, nil
}

// Save 以 protobuf 编码原子写入私钥
func (m *Manager) Save(priv crypto.PrivKey) error {
	if priv == nil {
		return ErrNilKey
	}
	data, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("%w: marshal key: %w", ErrStorage, err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), dirPerm); err != nil {
		return fmt.Errorf("%w: create dir: %w", ErrStorage, err)
	}
	if err := writeFile(m.path, data, filePerm); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// LoadOrGenerate 加载私钥，文件不存在时生成 Ed25519 私钥并保存
//
// 新密钥先落盘再返回，调用方拿到的身份总是已持久化的。
func (m *Manager) LoadOrGenerate() (crypto.PrivKey, error) {
	if err := os.MkdirAll(filepath.Dir(m.path), dirPerm); err != nil {
		return nil, fmt.Errorf("%w: create dir: %w", ErrStorage, err)
	}

	priv, err := m.Load()
	switch {
	case err == nil:
		log.Info("已从磁盘加载身份密钥", "path", m.path)
		return priv, nil
	case !errors.Is(err, ErrKeyNotFound):
		return nil, err
	}

	priv, _, err = crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %w", ErrStorage, err)
	}
	if err := m.Save(priv); err != nil {
		return nil, err
	}
	log.Info("已生成新的身份密钥", "path", m.path)
	return priv, nil
}

// PeerIDOf 从私钥派生 PeerID
func PeerIDOf(priv crypto.PrivKey) (peer.ID, error) {
	if priv == nil {
		return "", ErrNilKey
	}
	return peer.IDFromPrivateKey(priv)
}
