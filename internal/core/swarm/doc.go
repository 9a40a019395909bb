// Package swarm 实现节点的事件循环
//
// Swarm 把传输端点与组合行为绑在一起：
//
//   - Bind 逐个解析并监听配置的地址，单个地址失败不会中断其余地址；
//     一个都没有成功时返回包装 types.ErrBind 的错误，事件循环不会启动
//   - 绑定成功后启动全部行为，行为与传输层的事件进入同一个通道
//   - Run 按到达顺序逐个分发事件，ctx 取消时正常返回；
//     出现致命的运行时错误（不再有任何监听地址）时返回包装 types.ErrRuntimeEvent 的错误
//
// # 状态
//
//	Unbound → ListeningPartial | ListeningFull → Running → Stopped
package swarm
