// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(kind, outcome string)
	RecordTaskMutation(op string, err error)
	RecordTaskQueryLatency(duration time.Duration)
	RecordSnapshot(taskCount int)
	RecordHTTPStatus(statusCode int)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reg            prometheus.Registerer
	authAttempts   *prometheus.CounterVec
	taskMutations  *prometheus.CounterVec
	queryLatency   prometheus.Histogram
	snapshots      prometheus.Counter
	snapshotSize   prometheus.Histogram
	httpStatus     *prometheus.CounterVec
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablero_auth_attempts_total",
			Help: "認証試行の合計数（種別・結果別）",
		}, []string{"kind", "outcome"}),
		taskMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablero_task_mutations_total",
			Help: "タスク変更操作の合計数（操作・結果別）",
		}, []string{"op", "result"}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tablero_task_query_latency_seconds",
			Help:    "タスク一覧取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tablero_live_snapshots_total",
			Help: "ライブ購読者へ配信したタスクスナップショットの合計数",
		}),
		snapshotSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tablero_live_snapshot_tasks",
			Help:    "配信したスナップショットに含まれるタスク数",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablero_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tablero_sessions_purged_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.taskMutations,
		c.queryLatency,
		c.snapshots,
		c.snapshotSize,
		c.httpStatus,
		c.sessionsPurged,
	)

	return c
}

// TrackSubscriptions は現在のライブ購読数を返す関数をゲージとして登録する。
func (c *Collector) TrackSubscriptions(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tablero_live_subscriptions",
		Help: "現在開いているライブ購読の数",
	}, func() float64 {
		return float64(count())
	}))
}

// RecordAuthAttempt は認証試行を記録する。outcomeは"success"またはエラーコード。
func (c *Collector) RecordAuthAttempt(kind, outcome string) {
	c.authAttempts.WithLabelValues(kind, outcome).Inc()
}

// RecordTaskMutation はタスク変更操作の結果を記録する。
func (c *Collector) RecordTaskMutation(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.taskMutations.WithLabelValues(op, result).Inc()
}

// RecordTaskQueryLatency はタスク一覧取得のレイテンシを記録する。
func (c *Collector) RecordTaskQueryLatency(duration time.Duration) {
	c.queryLatency.Observe(duration.Seconds())
}

// RecordSnapshot はライブ購読者へのスナップショット配信を記録する。
func (c *Collector) RecordSnapshot(taskCount int) {
	c.snapshots.Inc()
	c.snapshotSize.Observe(float64(taskCount))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsPurged は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordAuthAttempt(string, string)     {}
func (NopCollector) RecordTaskMutation(string, error)     {}
func (NopCollector) RecordTaskQueryLatency(time.Duration) {}
func (NopCollector) RecordSnapshot(int)                   {}
func (NopCollector) RecordHTTPStatus(int)                 {}
func (NopCollector) RecordSessionsPurged(int64)           {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
