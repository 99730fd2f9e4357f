package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urportal/portal/internal/course"
	"github.com/urportal/portal/internal/model"
)

// CourseServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	List(ctx context.Context) ([]model.Course, error)
	Get(ctx context.Context, id string) (*model.Course, error)
	Create(ctx context.Context, actor *model.User, in course.CreateInput) (*model.Course, error)
}

// CourseHandler はコースカタログのHTTPハンドラー。
type CourseHandler struct {
	service CourseServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

// ListCourses はコース一覧を返す。
// GET /api/courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(courses))
}

// GetCourse はコース詳細を返す。
// GET /api/courses/{id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCourse はコースを追加する。管理者のみ。
// POST /api/courses
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req course.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.Create(r.Context(), user, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// nonNil は空の一覧をnullではなく[]としてエンコードさせる。
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
