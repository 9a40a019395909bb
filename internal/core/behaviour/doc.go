// Package behaviour 把节点的五种网络行为组合为一个整体
//
// 组合的行为：
//   - Liveness: 存活探测（ping）
//   - Discovery: 本地网络发现（mDNS）
//   - Lookup: 分布式查找（Kademlia DHT + 本地记录存储）
//   - Identify: 能力识别
//   - Reachability: 可达性探测（AutoNAT）
//
// Compose 要么返回完整的行为集合，要么关闭已创建的行为并返回错误。
// 所有行为共享同一个节点身份；host 的身份与私钥不一致时拒绝组合。
//
// 行为需要的 host 选项（identify 版本字符串、AutoNAT 服务等）
// 由 HostOptions 提供，必须在创建 host 时传入。
package behaviour
