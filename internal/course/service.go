// Package course はコースカタログのドメインロジックを提供する。
package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/urportal/portal/internal/metrics"
	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
)

// defaultTotalWeeks は週数が指定されなかった場合の学期の長さ。
const defaultTotalWeeks = 15

// CreateInput はコース作成の入力値。
type CreateInput struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	Credits        int     `json:"credits"`
	InstructorName *string `json:"instructorName"`
	Schedule       *string `json:"schedule"`
	Duration       *int    `json:"duration"`
	TotalWeeks     *int    `json:"totalWeeks"`
}

// Service はコースカタログのサービス層。
// 読み取りはCatalogCacheを経由し、作成時にキャッシュを破棄する。
type Service struct {
	repo    repository.CourseRepository
	cache   *CatalogCache
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。cacheがnilの場合は常にリポジトリから読み込む。
func NewService(repo repository.CourseRepository, cache *CatalogCache, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		metrics: mc,
	}
}

// List は全コースを返す。
func (s *Service) List(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	if s.lookup(catalogListKey, &courses) {
		return courses, nil
	}

	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}
	s.store(catalogListKey, courses)
	return courses, nil
}

// Get はIDでコースを取得する。存在しない場合はNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Course, error) {
	key := catalogCourseKey + id

	var cached model.Course
	if s.lookup(key, &cached) {
		return &cached, nil
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(id)
	}
	s.store(key, course)
	return course, nil
}

// Create はコースを作成する。管理者のみ実行できる。
func (s *Service) Create(ctx context.Context, actor *model.User, in CreateInput) (*model.Course, error) {
	if !actor.IsAdmin() {
		return nil, model.NewForbiddenError()
	}

	course, err := buildCourse(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByCode(ctx, course.Code)
	if err != nil {
		return nil, fmt.Errorf("コースコードの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateCourseError(course.Code)
	}

	if err := s.repo.Create(ctx, course); err != nil {
		// 同時作成で一意制約に違反した場合
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateCourseError(course.Code)
		}
		return nil, fmt.Errorf("コースの作成に失敗しました: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate()
	}

	slog.InfoContext(ctx, "course created",
		slog.String("course_id", course.ID),
		slog.String("code", course.Code),
		slog.String("created_by", actor.ID),
	)
	return course, nil
}

func buildCourse(in CreateInput) (*model.Course, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, model.NewValidationError("code and name are required")
	}
	if in.Credits <= 0 {
		return nil, model.NewValidationError("credits must be a positive number")
	}
	if in.Duration != nil && *in.Duration <= 0 {
		return nil, model.NewValidationError("duration must be a positive number")
	}

	totalWeeks := defaultTotalWeeks
	if in.TotalWeeks != nil {
		if *in.TotalWeeks <= 0 {
			return nil, model.NewValidationError("totalWeeks must be a positive number")
		}
		totalWeeks = *in.TotalWeeks
	}

	return &model.Course{
		ID:             uuid.New().String(),
		Code:           code,
		Name:           name,
		Description:    in.Description,
		Credits:        in.Credits,
		InstructorName: in.InstructorName,
		Schedule:       in.Schedule,
		Duration:       in.Duration,
		TotalWeeks:     totalWeeks,
	}, nil
}

func (s *Service) lookup(key string, v any) bool {
	if s.cache == nil {
		return false
	}
	hit := s.cache.get(key, v)
	s.metrics.RecordCatalogCache(hit)
	return hit
}

func (s *Service) store(key string, v any) {
	if s.cache != nil {
		s.cache.set(key, v)
	}
}
