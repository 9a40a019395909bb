// Package xchangefs 是 XchangeFS 节点的入口
//
// 一个节点由以下部分组成：
//   - 身份：数据目录下持久化的 Ed25519 密钥，首次启动时生成
//   - 传输端点：只使用 UDP 上的 QUIC-v1
//   - 五种组合行为：存活探测、本地发现、分布式查找、能力识别、可达性探测
//   - 事件循环：分发行为与传输层的全部事件
//
// # 快速开始
//
//	cfg, err := config.Load(os.LookupEnv)
//	if err != nil {
//	    return err
//	}
//
//	node, err := xchangefs.New(xchangefs.WithConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	if err := node.Start(ctx); err != nil {
//	    return err
//	}
//	defer node.Stop(context.Background())
//
//	<-node.Done()
//
// Start 在至少一个监听地址绑定成功后返回，事件循环在后台运行；
// 事件循环因致命错误退出时 Done 关闭，Err 返回原因。
//
// # 错误
//
// 返回的错误包装 pkg/types 中的类别错误，使用 errors.Is 判断：
//
//	if errors.Is(err, xchangefs.ErrBind) {
//	    // 没有任何监听地址可用
//	}
package xchangefs
