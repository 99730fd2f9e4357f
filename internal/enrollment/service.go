// Package enrollment は履修登録のドメインロジックを提供する。
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
)

// 学期・年度が指定されなかった場合の既定値
const (
	DefaultSemester     = "Fall 2023"
	DefaultAcademicYear = "2023-2024"
)

// EnrollInput は履修登録の入力値。
type EnrollInput struct {
	CourseID     string `json:"courseId"`
	Semester     string `json:"semester"`
	AcademicYear string `json:"academicYear"`
}

// Service は履修登録のサービス層。
type Service struct {
	enrollmentRepo repository.EnrollmentRepository
	courseRepo     repository.CourseRepository
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(enrollmentRepo repository.EnrollmentRepository, courseRepo repository.CourseRepository) *Service {
	return &Service{
		enrollmentRepo: enrollmentRepo,
		courseRepo:     courseRepo,
		now:            time.Now,
	}
}

// List はユーザーの履修登録をコース情報付きで返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error) {
	enrollments, err := s.enrollmentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("履修登録一覧の取得に失敗しました: %w", err)
	}
	return enrollments, nil
}

// Enroll はユーザーをコースに登録する。
// 履修登録と進行中の成績記録を同一トランザクションで作成する。
func (s *Service) Enroll(ctx context.Context, userID string, in EnrollInput) (*model.Enrollment, error) {
	courseID := strings.TrimSpace(in.CourseID)
	if courseID == "" {
		return nil, model.NewValidationError("courseId is required")
	}

	// 1. コースの存在確認
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	// 2. 重複登録チェック
	existing, err := s.enrollmentRepo.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("履修登録の確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyEnrolledError()
	}

	// 3. 登録と成績記録の作成
	enrollment := &model.Enrollment{
		ID:             uuid.New().String(),
		UserID:         userID,
		CourseID:       courseID,
		EnrollmentDate: s.now().UTC(),
		Status:         model.EnrollmentStatusActive,
		CurrentWeek:    1,
		Progress:       0,
	}
	academic := &model.Academic{
		ID:           uuid.New().String(),
		UserID:       userID,
		CourseID:     courseID,
		Semester:     orDefault(in.Semester, DefaultSemester),
		AcademicYear: orDefault(in.AcademicYear, DefaultAcademicYear),
		Status:       model.AcademicStatusInProgress,
	}

	if err := s.enrollmentRepo.CreateWithAcademic(ctx, enrollment, academic); err != nil {
		// 同時リクエストで一意制約に違反した場合
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyEnrolledError()
		}
		return nil, fmt.Errorf("履修登録の作成に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "course enrolled",
		slog.String("user_id", userID),
		slog.String("course_id", courseID),
		slog.String("course_code", course.Code),
	)
	return enrollment, nil
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
