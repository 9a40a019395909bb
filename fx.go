package xchangefs

import (
	"fmt"
	"os"

	"github.com/libp2p/go-libp2p/core/crypto"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/xchangefs/go-xchangefs/config"
	"github.com/xchangefs/go-xchangefs/internal/core/behaviour"
	"github.com/xchangefs/go-xchangefs/internal/core/host"
	"github.com/xchangefs/go-xchangefs/internal/core/identity"
	"github.com/xchangefs/go-xchangefs/internal/core/metrics"
	"github.com/xchangefs/go-xchangefs/internal/core/swarm"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

// EnvFxDebug 设置后输出 fx 依赖注入日志
const EnvFxDebug = "XCHANGEFS_FX_DEBUG"

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Identity: 加载或生成密钥
//  2. Metrics / Behaviour: 贡献 host 选项
//  3. Host: 创建 QUIC 传输端点
//  4. Behaviour: 在 host 上组合行为
//  5. Swarm: 事件循环
func buildFxApp(cfg *config.Config, o *options, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),

		identity.Module,
		metrics.Module,
		behaviour.Module,
		host.Module,
		swarm.Module,
	}

	// 直接注入的私钥
	if o.privateKey != nil {
		key := o.privateKey
		modules = append(modules, fx.Provide(fx.Annotate(
			func() crypto.PrivKey { return key },
			fx.ResultTags(`name:"injected_key"`),
		)))
	}

	// 事件观察者
	for _, fn := range o.observers {
		modules = append(modules, fx.Provide(fx.Annotate(
			func() func(types.Event) { return fn },
			fx.ResultTags(`group:"event_observers"`),
		)))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Populate(&node.swarm, &node.identity, &node.registry),
		fx.Invoke(registerStoreMetrics),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.WithLogger(fxLogger))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		// 应用未启动，OnStop 不会执行，已创建的事件循环在这里关闭
		if node.swarm != nil {
			_ = node.swarm.Close()
		}
		return nil, fmt.Errorf("build node: %w", err)
	}
	return app, nil
}

// fxLogger 默认丢弃 fx 日志，设置 XCHANGEFS_FX_DEBUG 时输出到标准错误
func fxLogger() fxevent.Logger {
	if os.Getenv(EnvFxDebug) == "" {
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}
	return &fxevent.ZapLogger{Logger: l.Named("fx")}
}

// registerStoreMetrics 把记录存储规模接入指标
func registerStoreMetrics(m *metrics.Metrics, set *behaviour.Set) error {
	return m.RegisterRecordStore(set.Lookup.Store())
}
