// Package liveness 实现存活探测行为
//
// 对每个已连接节点周期性发送 ping，记录最近一次往返时延，
// 每次探测结果以 LivenessEvent 投递到事件循环。
// 超过空闲超时仍没有成功探测的节点会被断开。
//
// 关闭周期探测后仍然响应对端的 ping 请求。
package liveness
