// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証結果のラベル値
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeRejected           = "rejected"
	OutcomeError              = "error"
)

// セッション解決結果のラベル値
const (
	SessionAuthenticated = "authenticated"
	SessionAnonymous     = "anonymous"
	SessionInvalid       = "invalid"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordRegistration(outcome string)
	RecordSessionResolution(state string)
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordRateLimited(limiter string)
	RecordCatalogCache(hit bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	registrations   *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	catalogCacheHit *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_login_attempts_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_registrations_total",
			Help: "ユーザー登録の結果別合計数",
		}, []string{"outcome"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_session_resolutions_total",
			Help: "リクエストごとのセッション解決結果",
		}, []string{"state"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"limiter"}),
		catalogCacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_catalog_cache_lookups_total",
			Help: "コースカタログキャッシュの参照結果",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.sessions,
		c.httpRequests,
		c.httpLatency,
		c.rateLimited,
		c.catalogCacheHit,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordRegistration はユーザー登録の結果を記録する。
func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

// RecordSessionResolution はセッション解決の結果を記録する。
func (c *Collector) RecordSessionResolution(state string) {
	c.sessions.WithLabelValues(state).Inc()
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターンを渡し、IDごとにラベルが増えないようにする。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

// RecordCatalogCache はカタログキャッシュのヒット・ミスを記録する。
func (c *Collector) RecordCatalogCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.catalogCacheHit.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordLogin(string) {}
func (Nop) RecordRegistration(string) {}
func (Nop) RecordSessionResolution(string) {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordRateLimited(string) {}
func (Nop) RecordCatalogCache(bool) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
