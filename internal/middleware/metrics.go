package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/urportal/portal/internal/metrics"
)

// unmatchedRoute はどのルートにも一致しなかったリクエストのラベル値。
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware はHTTPリクエストの件数と処理時間を記録するミドルウェアを返す。
// ラベルにはchiのルートパターンを使う。mcがnilの場合は何も記録しない。
func NewMetricsMiddleware(mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			// ルートパターンはルーティング完了後にのみ確定する
			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			mc.RecordHTTPRequest(r.Method, route, rec.statusCode, time.Since(start))
		})
	}
}
