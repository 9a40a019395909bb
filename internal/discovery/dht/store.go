package dht

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/xchangefs/go-xchangefs/config"
)

// StoreConfig 记录存储配置
type StoreConfig struct {
	// MaxRecords 值记录的最大键数
	MaxRecords int

	// MaxProviders 提供者关联总数上限
	MaxProviders int

	// MaxProvidersPerKey 每个键的提供者上限
	MaxProvidersPerKey int

	// MaxValueBytes 单个值的最大字节数
	MaxValueBytes int

	// ProviderTTL 提供者关联有效期
	ProviderTTL time.Duration

	// Clock 时钟，测试中替换为 clock.NewMock()
	Clock clock.Clock

	// AddrBook 提供者地址为空时从这里补全，可为 nil
	AddrBook peerstore.AddrBook
}

// recordEnvelopeBytes kad-dht 保存的是序列化后的记录（含键和接收时间），
// 存储上限在值上限之外预留这部分空间
const recordEnvelopeBytes = 1024

// StoreConfigFromUnified 从统一配置创建记录存储配置
func StoreConfigFromUnified(cfg config.DHTConfig) StoreConfig {
	return StoreConfig{
		MaxRecords:         cfg.MaxRecords,
		MaxProviders:       cfg.MaxProviders,
		MaxProvidersPerKey: cfg.MaxProvidersPerKey,
		MaxValueBytes:      cfg.MaxValueBytes + recordEnvelopeBytes,
		ProviderTTL:        cfg.ProviderTTL.Duration(),
	}
}

// providerKey 提供者关联的唯一标识
type providerKey struct {
	key  string
	peer peer.ID
}

// providerEntry 提供者关联
type providerEntry struct {
	addrs   []ma.Multiaddr
	expires time.Time
}

// StoreStats 记录存储的当前规模
type StoreStats struct {
	Records   int
	Providers int
	Evictions uint64
}

// RecordStore 有界的本地记录存储
//
// 值和提供者关联各自维护一个 LRU，超过上限时淘汰最久未使用的条目。
// 所有方法并发安全。
type RecordStore struct {
	cfg   StoreConfig
	clock clock.Clock

	mu        sync.Mutex
	values    *simplelru.LRU[string, []byte]
	providers *simplelru.LRU[providerKey, providerEntry]
	// byKey 键 → 提供者集合，随 providers 的增删同步维护
	byKey     map[string]map[peer.ID]struct{}
	evictions uint64
	closed    bool
}

// NewRecordStore 创建记录存储
func NewRecordStore(cfg StoreConfig) (*RecordStore, error) {
	defaults := StoreConfigFromUnified(config.DefaultDiscoveryConfig().DHT)
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaults.MaxRecords
	}
	if cfg.MaxProviders <= 0 {
		cfg.MaxProviders = defaults.MaxProviders
	}
	if cfg.MaxProvidersPerKey <= 0 {
		cfg.MaxProvidersPerKey = defaults.MaxProvidersPerKey
	}
	if cfg.MaxValueBytes <= 0 {
		cfg.MaxValueBytes = defaults.MaxValueBytes
	}
	if cfg.ProviderTTL <= 0 {
		cfg.ProviderTTL = defaults.ProviderTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	s := &RecordStore{
		cfg:   cfg,
		clock: cfg.Clock,
		byKey: make(map[string]map[peer.ID]struct{}),
	}

	values, err := simplelru.NewLRU[string, []byte](cfg.MaxRecords, nil)
	if err != nil {
		return nil, err
	}
	providers, err := simplelru.NewLRU[providerKey, providerEntry](cfg.MaxProviders, s.onProviderEvicted)
	if err != nil {
		return nil, err
	}
	s.values = values
	s.providers = providers
	return s, nil
}

// onProviderEvicted 在 providers LRU 移除条目时同步 byKey
//
// 调用时已持有 s.mu。
func (s *RecordStore) onProviderEvicted(k providerKey, _ providerEntry) {
	set := s.byKey[k.key]
	delete(set, k.peer)
	if len(set) == 0 {
		delete(s.byKey, k.key)
	}
}

// Stats 返回当前规模
func (s *RecordStore) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreStats{
		Records:   s.values.Len(),
		Providers: s.providers.Len(),
		Evictions: s.evictions,
	}
}

// ============================================================================
//                              值记录
// ============================================================================

// PutValue 保存值，键已存在时覆盖
func (s *RecordStore) PutValue(key string, value []byte) error {
	if len(value) > s.cfg.MaxValueBytes {
		return ErrValueTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if evicted := s.values.Add(key, append([]byte(nil), value...)); evicted {
		s.evictions++
		log.Debug("记录存储已满，淘汰最久未使用的键", "max", s.cfg.MaxRecords)
	}
	return nil
}

// GetValue 读取值
func (s *RecordStore) GetValue(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrStoreClosed
	}
	v, ok := s.values.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// RemoveValue 删除值，键不存在时不报错
func (s *RecordStore) RemoveValue(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.values.Remove(key)
	return nil
}

// ============================================================================
//                              提供者
// ============================================================================

// addProvider 记录提供者关联，已存在时刷新过期时间
func (s *RecordStore) addProvider(key string, info peer.AddrInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	pk := providerKey{key: key, peer: info.ID}
	set := s.byKey[key]
	if _, exists := set[info.ID]; !exists && len(set) >= s.cfg.MaxProvidersPerKey {
		s.dropOldestProviderLocked(key)
	}

	entry := providerEntry{
		addrs:   append([]ma.Multiaddr(nil), info.Addrs...),
		expires: s.clock.Now().Add(s.cfg.ProviderTTL),
	}
	if evicted := s.providers.Add(pk, entry); evicted {
		s.evictions++
	}

	// Add 可能淘汰同一个键下的条目，重新取集合
	set = s.byKey[key]
	if set == nil {
		set = make(map[peer.ID]struct{})
		s.byKey[key] = set
	}
	set[info.ID] = struct{}{}
	return nil
}

// dropOldestProviderLocked 删除键下最早过期的提供者
func (s *RecordStore) dropOldestProviderLocked(key string) {
	var (
		oldest  peer.ID
		expires time.Time
	)
	for id := range s.byKey[key] {
		entry, ok := s.providers.Peek(providerKey{key: key, peer: id})
		if !ok {
			continue
		}
		if oldest == "" || entry.expires.Before(expires) {
			oldest, expires = id, entry.expires
		}
	}
	if oldest != "" && s.providers.Remove(providerKey{key: key, peer: oldest}) {
		s.evictions++
	}
}

// providersFor 返回键下未过期的提供者，并清理已过期的关联
func (s *RecordStore) providersFor(key string) ([]peer.AddrInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	now := s.clock.Now()
	var (
		out     []peer.AddrInfo
		expired []providerKey
	)
	for id := range s.byKey[key] {
		pk := providerKey{key: key, peer: id}
		entry, ok := s.providers.Get(pk)
		if !ok {
			continue
		}
		if !now.Before(entry.expires) {
			expired = append(expired, pk)
			continue
		}
		addrs := entry.addrs
		if len(addrs) == 0 && s.cfg.AddrBook != nil {
			addrs = s.cfg.AddrBook.Addrs(id)
		}
		out = append(out, peer.AddrInfo{ID: id, Addrs: append([]ma.Multiaddr(nil), addrs...)})
	}
	for _, pk := range expired {
		s.providers.Remove(pk)
	}
	return out, nil
}

// CollectExpired 清理所有已过期的提供者关联，返回清理数量
func (s *RecordStore) CollectExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var expired []providerKey
	for _, pk := range s.providers.Keys() {
		if entry, ok := s.providers.Peek(pk); ok && !now.Before(entry.expires) {
			expired = append(expired, pk)
		}
	}
	for _, pk := range expired {
		s.providers.Remove(pk)
	}
	return len(expired)
}

// Close 关闭存储，之后的读写返回 ErrStoreClosed
//
// 存储同时交给 kad-dht 作为 datastore 和 provider store，
// 会被关闭两次，因此是幂等的。
func (s *RecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.values.Purge()
	s.providers.Purge()
	return nil
}

// truncateKey 截断键用于日志
func truncateKey(key string) string {
	const n = 16
	if len(key) <= n {
		return key
	}
	return key[:n] + "..."
}
