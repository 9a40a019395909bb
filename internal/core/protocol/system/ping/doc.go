// Package ping 实现存活探测使用的回显协议
//
// 协议与 libp2p ping 线格式兼容：发起方写入 32 字节随机数据，
// 响应方原样回写，发起方比对内容并计算往返时延。
// 一个流上可以连续探测多次，响应方在空闲超时后关闭流。
package ping
