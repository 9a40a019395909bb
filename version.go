package xchangefs

import "github.com/xchangefs/go-xchangefs/pkg/types"

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.0.1"

// ProtocolVersion 节点间协议版本
const ProtocolVersion = types.ProtocolVersion

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "XchangeFS " + Version + " (" + ProtocolVersion + ")"
	if GitCommit != "" {
		info += " " + GitCommit[:min(8, len(GitCommit))]
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}
