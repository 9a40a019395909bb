// Package metrics 提供 xchangefs 节点的 Prometheus 指标
//
// 指标分为三类：
//   - 事件循环：按类型统计分发的事件、运行时错误、当前状态
//   - 监听：按结果统计监听地址的处理
//   - 记录存储：键数、提供者关联数、淘汰次数
//
// 所有方法在 *Metrics 为 nil 时都是空操作，未启用指标时调用方无需判断。
package metrics
