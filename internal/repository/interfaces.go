// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/urportal/portal/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// Find系メソッドは見つからない場合にnilを返す。
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByStudentID(ctx context.Context, studentID string) (*model.User, error)

	// Create はユーザーを作成する。
	// username・email・student_idの一意制約に違反した場合はErrDuplicateをラップしたエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateLanguage はユーザーの表示言語を更新し、更新後のユーザーを返す。
	// ユーザーが存在しない場合はnilを返す。
	UpdateLanguage(ctx context.Context, id string, language model.Language) (*model.User, error)

	// UpdateProfileImage はプロフィール画像URLを更新し、更新後のユーザーを返す。
	UpdateProfileImage(ctx context.Context, id string, imageURL *string) (*model.User, error)
}

// CourseRepository はコースデータの永続化インターフェース。
type CourseRepository interface {
	// List は全コースをコード順に返す。
	List(ctx context.Context) ([]model.Course, error)
	FindByID(ctx context.Context, id string) (*model.Course, error)
	FindByCode(ctx context.Context, code string) (*model.Course, error)
	Create(ctx context.Context, course *model.Course) error
}

// EnrollmentRepository は履修登録の永続化インターフェース。
type EnrollmentRepository interface {
	// ListByUserID はユーザーの履修登録をコース情報付きで返す。
	ListByUserID(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error)

	// FindByUserAndCourse はユーザーとコースの組で履修登録を検索する。
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error)

	// CreateWithAcademic は履修登録と成績記録を同一トランザクションで作成する。
	CreateWithAcademic(ctx context.Context, enrollment *model.Enrollment, academic *model.Academic) error
}

// AnnouncementRepository はお知らせの永続化インターフェース。
type AnnouncementRepository interface {
	// List は新しい順にお知らせを返す。limitが0以下の場合は全件を返す。
	List(ctx context.Context, limit int) ([]model.Announcement, error)
	Create(ctx context.Context, announcement *model.Announcement) error
}

// FinanceRepository は会計記録の永続化インターフェース。
type FinanceRepository interface {
	// ListByUserID はユーザーの会計記録を取引日の新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Finance, error)
	Create(ctx context.Context, finance *model.Finance) error
}

// TaskRepository はタスクの永続化インターフェース。
type TaskRepository interface {
	// ListByUserID はユーザーが履修しているコースのタスクを期限の近い順に返す。
	// 期限のないタスクは末尾に並ぶ。
	ListByUserID(ctx context.Context, userID string) ([]model.TaskWithCourse, error)
	Create(ctx context.Context, task *model.Task) error
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	// ListByUserID はユーザーの通知を新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Notification, error)
	Create(ctx context.Context, notification *model.Notification) error

	// MarkAsRead は通知を既読にする。指定ユーザーの通知でない場合はnilを返す。
	MarkAsRead(ctx context.Context, id, userID string) (*model.Notification, error)

	// MarkAllAsRead はユーザーの未読通知をすべて既読にし、更新件数を返す。
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
}

// AcademicRepository は成績記録の永続化インターフェース。
// 単一レコードの操作はすべてuserIDでスコープされる。
type AcademicRepository interface {
	ListByUserID(ctx context.Context, userID string) ([]model.AcademicWithCourse, error)
	FindByID(ctx context.Context, id, userID string) (*model.AcademicWithCourse, error)
	Create(ctx context.Context, academic *model.Academic) error

	// Update はnilでないフィールドのみを更新する。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, id, userID string, update model.AcademicUpdate) (*model.Academic, error)

	// Delete は成績記録を削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)
}
