// Package types 定义 xchangefs 节点核心的公共数据结构
//
// 这是节点核心最底层的包，不依赖任何 internal 包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - errors.go   - 错误分类（配置、身份、绑定、行为装配、运行时事件）
//   - events.go   - 事件循环分发的封闭事件联合类型
//   - enums.go    - 行为名称、监听结果状态
//   - protocol.go - 协议版本常量
package types
