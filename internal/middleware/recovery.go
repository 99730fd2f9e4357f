package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// commitTracker はレスポンスヘッダーが送信済みかどうかを記録する。
type commitTracker struct {
	http.ResponseWriter
	committed bool
}

func (ct *commitTracker) WriteHeader(code int) {
	ct.committed = true
	ct.ResponseWriter.WriteHeader(code)
}

func (ct *commitTracker) Write(b []byte) (int, error) {
	ct.committed = true
	return ct.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseControllerから元のResponseWriterを参照できるようにする。
func (ct *commitTracker) Unwrap() http.ResponseWriter {
	return ct.ResponseWriter
}

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 統一フォーマットの500レスポンスを返すミドルウェアを生成する。
// レスポンスが送信済みの場合はログのみ出力し、本文には何も追記しない。
// http.ErrAbortHandlerによる意図的な中断は再送出する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker := &commitTracker{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.Bool("response_committed", tracker.committed),
					slog.String("stack", string(debug.Stack())),
				)
				if !tracker.committed {
					WriteInternalServerError(w)
				}
			}()
			next.ServeHTTP(tracker, r)
		})
	}
}
