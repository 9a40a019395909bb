// Package main 提供 xchangefs 命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	xchangefs "github.com/xchangefs/go-xchangefs"
	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/core/metrics"
	"github.com/xchangefs/go-xchangefs/internal/util/logger"
)

var log = logger.Logger("cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：本次运行的覆盖项
//   JSON 配置文件 + XCHANGEFS__* 环境变量：节点的持久配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径（覆盖 XCHANGEFS__CONFIG）")
	dataDir    = flag.String("data-dir", "", "数据目录")
	listen     = flag.String("listen", "", "监听地址，逗号分隔，如 0.0.0.0:4001,[::]:4001")
	noMDNS     = flag.Bool("no-mdns", false, "关闭本地网络发现")
	metricsOn  = flag.Bool("metrics", false, "启用 Prometheus 指标服务")

	logFile = flag.String("log", "", "日志文件路径（默认输出到标准错误）")

	printConfig = flag.Bool("print-config", false, "输出合并后的配置并退出")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

// shutdownTimeout 收到退出信号后等待节点关闭的时间
const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(xchangefs.VersionInfo())
		return nil
	}

	if *logFile != "" {
		f, err := openLogFile(*logFile)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		logger.SetOutput(f)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	if *printConfig {
		data, err := cfg.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("启动 xchangefs 节点",
		"version", xchangefs.Version,
		"commit", xchangefs.GitCommit,
		"buildDate", xchangefs.BuildDate)

	node, err := xchangefs.New(xchangefs.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("创建节点失败: %w", err)
	}
	if err := node.Start(ctx); err != nil {
		_ = node.Stop(context.Background())
		return fmt.Errorf("启动失败: %w", err)
	}
	printNodeInfo(node)

	g, gctx := errgroup.WithContext(ctx)

	// 事件循环退出即结束进程
	g.Go(func() error {
		select {
		case <-node.Done():
			if err := node.Err(); err != nil {
				return err
			}
			return errors.New("event loop stopped")
		case <-gctx.Done():
			return nil
		}
	})

	if reg := node.MetricsRegistry(); reg != nil {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Diagnostics.MetricsAddr, reg)
		})
	}

	runErr := g.Wait()

	fmt.Println("\n正在关闭节点...")
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := node.Stop(stopCtx); err != nil {
		log.Warn("关闭节点失败", "error", err)
	}
	return runErr
}

// loadConfig 构建配置
//
// 优先级（从高到低）：
//  1. 命令行参数
//  2. XCHANGEFS__* 环境变量
//  3. 配置文件
//  4. 默认值
func loadConfig() (*config.Config, error) {
	lookup := os.LookupEnv
	if *configFile != "" {
		path := *configFile
		lookup = func(key string) (string, bool) {
			if key == config.EnvConfigFile {
				return path, true
			}
			return os.LookupEnv(key)
		}
	}

	cfg, err := config.Load(lookup)
	if err != nil {
		return nil, err
	}

	if *dataDir != "" {
		cfg.Node.DataDir = *dataDir
	}
	if *listen != "" {
		cfg.Node.ListenAddrs = config.SplitList(*listen)
	}
	if isFlagSet("no-mdns") {
		cfg.Discovery.MDNS.Enable = !*noMDNS
	}
	if isFlagSet("metrics") {
		cfg.Diagnostics.EnableMetrics = *metricsOn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// openLogFile 打开日志文件，必要时创建目录
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return f, nil
}

// printNodeInfo 打印节点信息
//
// 输出包含可复制的完整地址，便于其他设备连接。
func printNodeInfo(node *xchangefs.Node) {
	id := node.ID()

	fmt.Println()
	fmt.Println("════════════════════════════════════════════════════════════════════════")
	fmt.Printf("  XchangeFS Node Started (%s)\n", xchangefs.Version)
	fmt.Println("════════════════════════════════════════════════════════════════════════")
	fmt.Printf("  节点 ID:   %s\n", id)
	fmt.Printf("  数据目录:  %s\n", node.Config().Node.DataDir)
	fmt.Printf("  密钥文件:  %s\n", node.KeyPath())
	fmt.Println("  监听地址:")
	for _, out := range node.ListenOutcomes() {
		if out.Err != nil {
			fmt.Printf("    ✗ %s (%s): %v\n", out.Input, out.Status, out.Err)
		}
	}
	for _, addr := range node.ListenAddrs() {
		fmt.Printf("    ✓ %s/p2p/%s\n", addr, id)
	}
	fmt.Println("════════════════════════════════════════════════════════════════════════")
	fmt.Println("节点已启动，按 Ctrl+C 退出")
}
