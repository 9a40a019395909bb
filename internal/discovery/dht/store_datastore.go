package dht

import (
	"context"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	"github.com/libp2p/go-libp2p-kad-dht/providers"
	"github.com/libp2p/go-libp2p/core/peer"
)

var (
	_ ds.Batching             = (*RecordStore)(nil)
	_ providers.ProviderStore = (*RecordStore)(nil)
)

// ============================================================================
//                              ds.Batching 实现
// ============================================================================

// Get 实现 ds.Read
func (s *RecordStore) Get(_ context.Context, key ds.Key) ([]byte, error) {
	v, ok, err := s.GetValue(key.String())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ds.ErrNotFound
	}
	return v, nil
}

// Has 实现 ds.Read
func (s *RecordStore) Has(_ context.Context, key ds.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	return s.values.Contains(key.String()), nil
}

// GetSize 实现 ds.Read
func (s *RecordStore) GetSize(_ context.Context, key ds.Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, ErrStoreClosed
	}
	v, ok := s.values.Peek(key.String())
	if !ok {
		return -1, ds.ErrNotFound
	}
	return len(v), nil
}

// Query 实现 ds.Read
//
// 在快照上执行查询，结果不反映查询开始后的写入。
func (s *RecordStore) Query(_ context.Context, q dsq.Query) (dsq.Results, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	keys := s.values.Keys()
	entries := make([]dsq.Entry, 0, len(keys))
	for _, k := range keys {
		v, ok := s.values.Peek(k)
		if !ok {
			continue
		}
		e := dsq.Entry{Key: k, Size: len(v)}
		if !q.KeysOnly {
			e.Value = append([]byte(nil), v...)
		}
		entries = append(entries, e)
	}
	s.mu.Unlock()

	return dsq.NaiveQueryApply(q, dsq.ResultsWithEntries(q, entries)), nil
}

// Put 实现 ds.Write
func (s *RecordStore) Put(_ context.Context, key ds.Key, value []byte) error {
	return s.PutValue(key.String(), value)
}

// Delete 实现 ds.Write
func (s *RecordStore) Delete(_ context.Context, key ds.Key) error {
	return s.RemoveValue(key.String())
}

// Sync 实现 ds.Datastore，内存存储无需刷盘
func (s *RecordStore) Sync(context.Context, ds.Key) error {
	return nil
}

// Batch 实现 ds.Batching
func (s *RecordStore) Batch(context.Context) (ds.Batch, error) {
	return ds.NewBasicBatch(s), nil
}

// ============================================================================
//                              providers.ProviderStore 实现
// ============================================================================

// AddProvider 实现 providers.ProviderStore
func (s *RecordStore) AddProvider(_ context.Context, key []byte, prov peer.AddrInfo) error {
	return s.addProvider(string(key), prov)
}

// GetProviders 实现 providers.ProviderStore
func (s *RecordStore) GetProviders(_ context.Context, key []byte) ([]peer.AddrInfo, error) {
	return s.providersFor(string(key))
}
