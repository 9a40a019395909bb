// Package identify 实现能力识别行为
//
// 节点间的 identify 交换由 libp2p host 完成，本包订阅识别结果事件，
// 判断对端协议版本是否与本节点兼容，并以 IdentifyEvent 投递到事件循环。
//
// # 兼容性
//
// 协议版本形如 "xchangefs/<major>.<minor>.<patch>"。
// 协议族相同且主版本相同视为兼容；主版本为 0 时次版本也必须相同。
package identify
