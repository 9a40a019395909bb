// Package mdns 实现本地网络发现行为
//
// 基于 go-libp2p 的 mDNS 服务在本地网络上广播本节点并监听其他节点，
// 发现的节点以 DiscoveryEvent 投递到事件循环，随后在后台建立连接。
//
// 配置 Enable 为 false 时行为仍然存在但不收发任何组播报文，
// 适用于测试和不允许组播的环境。
package mdns
