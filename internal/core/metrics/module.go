package metrics

import (
	"github.com/libp2p/go-libp2p"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/xchangefs/go-xchangefs/config"
)

// Module 指标模块
//
// 未启用指标时提供 nil 的 *Metrics 和 *prometheus.Registry，
// 并关闭 libp2p 自带的指标采集。
var Module = fx.Module("metrics",
	fx.Provide(ProvideMetrics),
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Metrics  *Metrics
	Registry *prometheus.Registry

	// HostOptions 传给 host 的指标选项
	HostOptions []libp2p.Option `group:"libp2p_options,flatten"`
}

// ProvideMetrics 按配置创建指标
func ProvideMetrics(input ModuleInput) (ModuleOutput, error) {
	if !input.Config.Diagnostics.EnableMetrics {
		return ModuleOutput{
			HostOptions: []libp2p.Option{libp2p.DisableMetrics()},
		}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := New(reg)
	if err != nil {
		return ModuleOutput{}, err
	}

	return ModuleOutput{
		Metrics:     m,
		Registry:    reg,
		HostOptions: []libp2p.Option{libp2p.PrometheusRegisterer(reg)},
	}, nil
}
