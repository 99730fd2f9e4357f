// Package academic は成績記録の管理を提供する。
// すべての操作は実行ユーザー自身の記録にスコープされる。
package academic

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
)

// 成績スコアの範囲
const (
	minScore = 0
	maxScore = 100
)

var validStatuses = map[string]bool{
	model.AcademicStatusInProgress: true,
	"completed":                    true,
	"failed":                       true,
	"withdrawn":                    true,
}

// CreateInput は成績記録作成の入力値。
type CreateInput struct {
	CourseID     string  `json:"courseId"`
	Semester     string  `json:"semester"`
	AcademicYear string  `json:"academicYear"`
	Grade        *string `json:"grade"`
	Score        *int    `json:"score"`
	Status       string  `json:"status"`
}

// UpdateInput は成績記録の部分更新の入力値。省略したフィールドは変更しない。
type UpdateInput struct {
	Semester     *string `json:"semester"`
	AcademicYear *string `json:"academicYear"`
	Grade        *string `json:"grade"`
	Score        *int    `json:"score"`
	Status       *string `json:"status"`
}

// Service は成績記録のサービス層。
type Service struct {
	academicRepo repository.AcademicRepository
	courseRepo   repository.CourseRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(academicRepo repository.AcademicRepository, courseRepo repository.CourseRepository) *Service {
	return &Service{
		academicRepo: academicRepo,
		courseRepo:   courseRepo,
	}
}

// List はユーザーの成績記録をコース情報付きで返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.AcademicWithCourse, error) {
	records, err := s.academicRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("成績記録一覧の取得に失敗しました: %w", err)
	}
	return records, nil
}

// Get は成績記録を取得する。他ユーザーの記録は存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.AcademicWithCourse, error) {
	record, err := s.academicRepo.FindByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("成績記録の取得に失敗しました: %w", err)
	}
	if record == nil {
		return nil, model.NewAcademicNotFoundError(id)
	}
	return record, nil
}

// Create は成績記録を作成する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Academic, error) {
	courseID := strings.TrimSpace(in.CourseID)
	semester := strings.TrimSpace(in.Semester)
	year := strings.TrimSpace(in.AcademicYear)
	if courseID == "" || semester == "" || year == "" {
		return nil, model.NewValidationError("courseId, semester and academicYear are required")
	}

	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = model.AcademicStatusInProgress
	}
	if err := validate(in.Score, &status); err != nil {
		return nil, err
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	record := &model.Academic{
		ID:           uuid.New().String(),
		UserID:       userID,
		CourseID:     courseID,
		Semester:     semester,
		AcademicYear: year,
		Grade:        in.Grade,
		Score:        in.Score,
		Status:       status,
	}
	if err := s.academicRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("成績記録の作成に失敗しました: %w", err)
	}
	return record, nil
}

// Update は成績記録を部分更新する。
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.Academic, error) {
	for _, field := range []*string{in.Semester, in.AcademicYear} {
		if field != nil && strings.TrimSpace(*field) == "" {
			return nil, model.NewValidationError("semester and academicYear must not be empty")
		}
	}
	if err := validate(in.Score, in.Status); err != nil {
		return nil, err
	}

	record, err := s.academicRepo.Update(ctx, id, userID, model.AcademicUpdate{
		Semester:     in.Semester,
		AcademicYear: in.AcademicYear,
		Grade:        in.Grade,
		Score:        in.Score,
		Status:       in.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("成績記録の更新に失敗しました: %w", err)
	}
	if record == nil {
		return nil, model.NewAcademicNotFoundError(id)
	}
	return record, nil
}

// Delete は成績記録を削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	deleted, err := s.academicRepo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("成績記録の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewAcademicNotFoundError(id)
	}
	return nil
}

func validate(score *int, status *string) error {
	if score != nil && (*score < minScore || *score > maxScore) {
		return model.NewValidationError(fmt.Sprintf("score must be between %d and %d", minScore, maxScore))
	}
	if status != nil && !validStatuses[*status] {
		return model.NewValidationError("status must be one of in-progress, completed, failed, withdrawn")
	}
	return nil
}
