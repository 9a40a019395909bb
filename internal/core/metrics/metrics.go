package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xchangefs/go-xchangefs/internal/discovery/dht"
	"github.com/xchangefs/go-xchangefs/pkg/types"
)

const namespace = "xchangefs"

// Metrics 节点指标集合
type Metrics struct {
	events         *prometheus.CounterVec
	listenOutcomes *prometheus.CounterVec
	runtimeErrors  *prometheus.CounterVec
	state          prometheus.Gauge
	livenessRTT    prometheus.Histogram
	lookupDuration *prometheus.HistogramVec

	reg prometheus.Registerer
}

// New 创建指标并注册到 reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reg: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swarm",
			Name:      "events_total",
			Help:      "Events dispatched by the event loop, by type.",
		}, []string{"type"}),
		listenOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swarm",
			Name:      "listen_outcomes_total",
			Help:      "Listen address outcomes, by status.",
		}, []string{"status"}),
		runtimeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swarm",
			Name:      "runtime_errors_total",
			Help:      "Runtime errors reported to the event loop.",
		}, []string{"source", "fatal"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "swarm",
			Name:      "state",
			Help:      "Current swarm state (0 unbound, 1 partial, 2 full, 3 running, 4 stopped).",
		}),
		livenessRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "rtt_seconds",
			Help:      "Round trip time of successful liveness probes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "duration_seconds",
			Help:      "Duration of distributed lookup operations, by operation and result.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"op", "found"}),
	}

	collectors := []prometheus.Collector{
		m.events,
		m.listenOutcomes,
		m.runtimeErrors,
		m.state,
		m.livenessRTT,
		m.lookupDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveEvent 记录一次事件分发
func (m *Metrics) ObserveEvent(ev types.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ev.Type()).Inc()

	switch e := ev.(type) {
	case *types.LivenessEvent:
		if e.Err == nil {
			m.livenessRTT.Observe(e.RTT.Seconds())
		}
	case *types.LookupEvent:
		m.lookupDuration.WithLabelValues(e.Op.String(), strconv.FormatBool(e.Found)).Observe(e.Duration.Seconds())
	case *types.RuntimeErrorEvent:
		m.runtimeErrors.WithLabelValues(e.Source, strconv.FormatBool(e.Fatal)).Inc()
	}
}

// ObserveListen 记录一个监听地址的处理结果
func (m *Metrics) ObserveListen(status types.ListenStatus) {
	if m == nil {
		return
	}
	m.listenOutcomes.WithLabelValues(status.String()).Inc()
}

// SetState 记录事件循环状态
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}

// RegisterRecordStore 注册记录存储规模指标
//
// 采集时读取 store.Stats()，不缓存。
func (m *Metrics) RegisterRecordStore(store *dht.RecordStore) error {
	if m == nil {
		return nil
	}
	return m.reg.Register(&storeCollector{store: store})
}

// ============================================================================
//                              记录存储采集器
// ============================================================================

var (
	storeRecordsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "record_store", "records"),
		"Distinct keys held by the local record store.", nil, nil)
	storeProvidersDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "record_store", "providers"),
		"Provider associations held by the local record store.", nil, nil)
	storeEvictionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "record_store", "evictions_total"),
		"Entries evicted from the local record store to stay within bounds.", nil, nil)
)

// storeCollector 按需读取记录存储规模
type storeCollector struct {
	store *dht.RecordStore
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storeRecordsDesc
	ch <- storeProvidersDesc
	ch <- storeEvictionsDesc
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(storeRecordsDesc, prometheus.GaugeValue, float64(stats.Records))
	ch <- prometheus.MustNewConstMetric(storeProvidersDesc, prometheus.GaugeValue, float64(stats.Providers))
	ch <- prometheus.MustNewConstMetric(storeEvictionsDesc, prometheus.CounterValue, float64(stats.Evictions))
}
