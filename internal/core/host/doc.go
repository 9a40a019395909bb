// Package host 构建节点的传输端点
//
// 端点是一个只使用 QUIC-v1 传输的 libp2p host，创建时不监听任何地址；
// 监听地址由 swarm 在绑定阶段逐个添加，以便报告每个地址的结果。
//
// 各行为需要端点具备的能力（identify 版本串、AutoNAT 服务、
// 关闭内置 ping 等）通过 fx 组 "libp2p_options" 注入。
package host
