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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordSyncSuccess(accountID string)
	RecordSyncFailure(accountID string, reason string)
	RecordParseFailure(accountID string)
	RecordHTTPStatus(statusCode int)
	RecordSyncLatency(duration time.Duration)
	RecordEventsUpserted(count int)
	RecordResolveHit(kind string)
	RecordResolveMiss()
	RecordIdentityCreated(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess       prometheus.Counter
	syncFail          prometheus.Counter
	parseFail         prometheus.Counter
	httpStatus        *prometheus.CounterVec
	syncLatency       prometheus.Histogram
	eventsUpserted    prometheus.Counter
	resolveTotal      *prometheus.CounterVec
	identitiesCreated *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renraku_sync_success_total",
			Help: "カレンダー同期成功の合計数",
		}),
		syncFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renraku_sync_fail_total",
			Help: "カレンダー同期失敗の合計数",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renraku_parse_fail_total",
			Help: "iCalendarパース失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renraku_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "renraku_sync_latency_seconds",
			Help:    "カレンダー同期のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		eventsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renraku_events_upserted_total",
			Help: "アップサートされた予定の合計数",
		}),
		resolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renraku_resolve_total",
			Help: "識別子解決の結果別合計数",
		}, []string{"result", "kind"}),
		identitiesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renraku_identities_created_total",
			Help: "登録された識別子の種別別合計数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.parseFail,
		c.httpStatus,
		c.syncLatency,
		c.eventsUpserted,
		c.resolveTotal,
		c.identitiesCreated,
	)

	return c
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess(accountID string) {
	c.syncSuccess.Inc()
}

// RecordSyncFailure は同期失敗を記録する。
func (c *Collector) RecordSyncFailure(accountID string, reason string) {
	c.syncFail.Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure(accountID string) {
	c.parseFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSyncLatency は同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// RecordEventsUpserted はアップサートされた予定数を記録する。
func (c *Collector) RecordEventsUpserted(count int) {
	c.eventsUpserted.Add(float64(count))
}

// RecordResolveHit は識別子解決の一致を種別付きで記録する。
func (c *Collector) RecordResolveHit(kind string) {
	c.resolveTotal.WithLabelValues("hit", kind).Inc()
}

// RecordResolveMiss は識別子解決の不一致を記録する。
func (c *Collector) RecordResolveMiss() {
	c.resolveTotal.WithLabelValues("miss", "none").Inc()
}

// RecordIdentityCreated は識別子の登録を種別付きで記録する。
func (c *Collector) RecordIdentityCreated(kind string) {
	c.identitiesCreated.WithLabelValues(kind).Inc()
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
