// Package identity 管理节点的持久化身份
//
// 节点身份是一把 Ed25519 私钥，以 libp2p protobuf 编码保存在
// <data_dir>/identity_keypair。首次启动时生成并原子写入，
// 之后每次启动从同一文件加载，因此 PeerID 在重启之间保持不变。
//
// 文件存在但无法解码时返回错误，不会重新生成，
// 避免静默替换节点身份。
//
// 同一数据目录只应由一个进程使用；两个进程同时首次启动
// 会各自生成密钥，最后一次 rename 生效。
package identity
