package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urportal/portal/internal/model"
)

// PostgresFinanceRepo はPostgreSQLを使用した会計記録リポジトリ。
type PostgresFinanceRepo struct {
	db *sql.DB
}

// NewPostgresFinanceRepo はPostgresFinanceRepoを生成する。
func NewPostgresFinanceRepo(db *sql.DB) *PostgresFinanceRepo {
	return &PostgresFinanceRepo{db: db}
}

// ListByUserID はユーザーの会計記録を取引日の新しい順に返す。
func (r *PostgresFinanceRepo) ListByUserID(ctx context.Context, userID string) ([]model.Finance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, type, description, transaction_date, status
		 FROM finances WHERE user_id = $1
		 ORDER BY transaction_date DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list finances: %w", err)
	}
	defer rows.Close()

	result := []model.Finance{}
	for rows.Next() {
		var f model.Finance
		if err := rows.Scan(&f.ID, &f.UserID, &f.Amount, &f.Type, &f.Description, &f.TransactionDate, &f.Status); err != nil {
			return nil, fmt.Errorf("failed to scan finance: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate finances: %w", err)
	}
	return result, nil
}

// Create は会計記録を作成する。
func (r *PostgresFinanceRepo) Create(ctx context.Context, f *model.Finance) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO finances (id, user_id, amount, type, description, transaction_date, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.UserID, f.Amount, f.Type, f.Description, f.TransactionDate, f.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert finance: %w", err)
	}
	return nil
}

var _ FinanceRepository = (*PostgresFinanceRepo)(nil)
