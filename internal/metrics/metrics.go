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
// サービス層、HTTPミドルウェア、監査ワーカーから利用する。
type MetricsCollector interface {
	RecordClaim(result string)
	RecordRelease(result string)
	ObserveSessionDuration(d time.Duration)
	AddActiveSessions(delta float64)
	SetActiveSessions(n int)
	SetStatusMismatches(n int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	claims          *prometheus.CounterVec
	releases        *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	activeSessions  prometheus.Gauge
	statusMismatch  prometheus.Gauge
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gymqr_claims_total",
			Help: "マシン利用開始の試行数（結果別）",
		}, []string{"result"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gymqr_releases_total",
			Help: "マシン利用終了の試行数（結果別）",
		}, []string{"result"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "gymqr_session_duration_seconds",
			Help: "終了した利用の継続時間（秒）",
			// 1分〜4時間
			Buckets: []float64{60, 300, 600, 900, 1800, 2700, 3600, 5400, 7200, 14400},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gymqr_active_sessions",
			Help: "現在利用中のレコード数",
		}),
		statusMismatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gymqr_status_mismatch",
			Help: "直近の監査で検出したマシン状態と利用中レコードの不整合数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gymqr_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.claims,
		c.releases,
		c.sessionDuration,
		c.activeSessions,
		c.statusMismatch,
		c.httpStatus,
	)

	return c
}

// RecordClaim は利用開始の結果を記録する。
func (c *Collector) RecordClaim(result string) {
	c.claims.WithLabelValues(result).Inc()
}

// RecordRelease は利用終了の結果を記録する。
func (c *Collector) RecordRelease(result string) {
	c.releases.WithLabelValues(result).Inc()
}

// ObserveSessionDuration は終了した利用の継続時間を記録する。
func (c *Collector) ObserveSessionDuration(d time.Duration) {
	c.sessionDuration.Observe(d.Seconds())
}

// AddActiveSessions は利用中レコード数を増減させる。
func (c *Collector) AddActiveSessions(delta float64) {
	c.activeSessions.Add(delta)
}

// SetActiveSessions は利用中レコード数を設定する。起動時と監査時に使う。
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// SetStatusMismatches は監査で検出した不整合数を設定する。
func (c *Collector) SetStatusMismatches(n int) {
	c.statusMismatch.Set(float64(n))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
