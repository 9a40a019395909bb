// Package reachability 实现可达性探测行为
//
// 可达性由 libp2p 的 AutoNAT 客户端判断：对端回拨本节点的监听地址，
// 根据成功与否得出 public 或 private。本包订阅判断结果的变化，
// 保存当前状态并以 ReachabilityEvent 投递到事件循环。
//
// 配置可以强制声明可达性，此时不进行探测。
package reachability
