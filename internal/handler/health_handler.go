package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// healthPingTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthPingTimeout = 2 * time.Second

var errNoDatabase = errors.New("database is not configured")

// Pinger はDBの疎通確認を行う。*sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db  Pinger
	now func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。dbがnilの場合はDB状態を "down" とする。
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{
		db:  db,
		now: time.Now,
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

// Health はプロセスの生存とDBの疎通状態を返す。
// DBに接続できない場合もプロセス自体は応答しているため200を返す。
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
		Database:  "up",
	}

	if err := h.ping(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "database ping failed", slog.String("error", err.Error()))
		resp.Database = "down"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) ping(ctx context.Context) error {
	if h.db == nil {
		return errNoDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return h.db.PingContext(ctx)
}
