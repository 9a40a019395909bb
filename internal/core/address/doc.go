// Package address 将 "host:port" 形式的监听字符串解析为传输地址
//
// 节点只使用 UDP 上的 QUIC-v1 传输，解析结果的协议栈固定为：
//
//	/ip4/<ip>/udp/<port>/quic-v1
//	/ip6/<ip>/udp/<port>/quic-v1
//
// 解析是纯函数，不做 DNS 查询，也不检查地址是否属于本机接口；
// 绑定失败由 swarm 在监听时报告。
package address
