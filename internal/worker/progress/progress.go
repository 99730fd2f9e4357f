// Package progress は履修登録の進捗（現在の週と進捗率）を定期的に更新するジョブを提供する。
// 進捗は登録日からの経過週数とコースの総週数から算出する。
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// updateQuery は有効な履修登録の current_week と progress を再計算する。
// current_week は 1 から総週数まで、progress は 0 から 100 の範囲に収める。
// 値が変わらない行は更新しないため、何度実行しても結果は同じになる。
const updateQuery = `
WITH computed AS (
    SELECT e.id,
           LEAST(c.total_weeks, w.elapsed + 1)          AS current_week,
           LEAST(100, w.elapsed * 100 / c.total_weeks) AS progress
    FROM enrollments e
    JOIN courses c ON c.id = e.course_id
    CROSS JOIN LATERAL (
        SELECT GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($1::timestamptz - e.enrollment_date)) / 604800))::int AS elapsed
    ) w
    WHERE e.status = 'active'
      AND c.total_weeks > 0
)
UPDATE enrollments AS e
SET current_week = computed.current_week,
    progress     = computed.progress
FROM computed
WHERE e.id = computed.id
  AND (e.current_week <> computed.current_week OR e.progress <> computed.progress)`

// Job は履修登録の進捗更新ジョブ。
type Job struct {
	db     Executor
	logger *slog.Logger
	now    func() time.Time
}

// NewJob は新しいJobを生成する。
func NewJob(db Executor, logger *slog.Logger) *Job {
	return &Job{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Run は有効な履修登録の進捗を1回再計算する。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, updateQuery, j.now().UTC())
	if err != nil {
		j.logger.Error("履修進捗の更新に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("履修進捗の更新に失敗: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}

	j.logger.Info("履修進捗の更新が完了しました",
		slog.Int64("updated_count", updated),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以後intervalごとにRunを繰り返す。
// コンテキストがキャンセルされるまでブロックする。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("履修進捗ジョブを開始しました", slog.Duration("interval", interval))

	// エラーはRun内でログ出力済み
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("履修進捗ジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
