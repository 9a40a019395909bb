// Package system 实现 xchangefs 的系统协议
//
// 系统协议在节点启动时注册在 host 上，为行为层提供基础能力。
//
// # 系统协议
//
//   - ping: 存活探测的回显协议（/ipfs/ping/1.0.0）
//   - identify: 能力识别结果的收集与兼容性判断
package system
