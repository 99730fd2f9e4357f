package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urportal/portal/internal/model"
)

const userColumns = `id, username, password, first_name, last_name, email, student_id, role, profile_image, language, created_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Email, &user.StudentID, &user.Role, &user.ProfileImage, &user.Language, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, column, value string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`,
		value,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by %s: %w", column, err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByUsername はユーザー名でユーザーを取得する。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "username", username)
}

// FindByEmail はメールアドレスでユーザーを取得する。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByStudentID は学籍番号でユーザーを取得する。
func (r *PostgresUserRepo) FindByStudentID(ctx context.Context, studentID string) (*model.User, error) {
	return r.findOne(ctx, "student_id", studentID)
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		user.Email, user.StudentID, user.Role, user.ProfileImage, user.Language, user.CreatedAt,
	)
	if err != nil {
		return wrapWriteError("failed to insert user", err)
	}
	return nil
}

// UpdateLanguage はユーザーの表示言語を更新する。
func (r *PostgresUserRepo) UpdateLanguage(ctx context.Context, id string, language model.Language) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET language = $2 WHERE id = $1 RETURNING `+userColumns,
		id, language,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user language: %w", err)
	}
	return user, nil
}

// UpdateProfileImage はプロフィール画像URLを更新する。nilを渡すと画像を解除する。
func (r *PostgresUserRepo) UpdateProfileImage(ctx context.Context, id string, imageURL *string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET profile_image = $2 WHERE id = $1 RETURNING `+userColumns,
		id, imageURL,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile image: %w", err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
