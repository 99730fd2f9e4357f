package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// DBTX は*sql.DBと*sql.Txの両方が満たすクエリ実行インターフェース。
// リポジトリはこのインターフェース越しにSQLを発行する。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx はトランザクションを開始してfnを実行する。
// fnがエラーを返した場合やpanicした場合はロールバックし、成功時はコミットする。
// panicはロールバック後に再送出する。
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// uniqueViolationCode はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolationCode = "23505"

// UniqueViolation はerrが一意制約違反の場合に違反した制約名とtrueを返す。
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
		return pqErr.Constraint, true
	}
	return "", false
}
