// Package dht 提供分布式查找行为及其本地记录存储
//
// 查找行为基于 go-libp2p-kad-dht，协议前缀为 /xchangefs，
// 与公共 IPFS DHT 隔离。本地记录和提供者关联保存在 RecordStore 中：
//
//   - 值记录：键 → 值，键数量不超过 MaxRecords
//   - 提供者：键 → 提供者集合，关联总数不超过 MaxProviders
//
// 两个上限都按最近最少使用淘汰，提供者关联另有 ProviderTTL 过期。
// RecordStore 同时实现 go-datastore 的 Batching 接口和 kad-dht 的
// providers.ProviderStore 接口，直接交给 kad-dht 使用。
//
// 每个查找操作（Bootstrap、PutRecord、GetRecord、Provide、
// FindProviders、FindPeer）完成后都会向事件循环投递一个 LookupEvent。
package dht
