package handler

import (
	"context"
	"net/http"

	"github.com/urportal/portal/internal/enrollment"
	"github.com/urportal/portal/internal/model"
)

// EnrollmentServiceInterface は履修登録ハンドラーが必要とするサービスインターフェース。
type EnrollmentServiceInterface interface {
	List(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error)
	Enroll(ctx context.Context, userID string, in enrollment.EnrollInput) (*model.Enrollment, error)
}

// EnrollmentHandler は履修登録のHTTPハンドラー。
type EnrollmentHandler struct {
	service EnrollmentServiceInterface
}

// NewEnrollmentHandler はEnrollmentHandlerを生成する。
func NewEnrollmentHandler(service EnrollmentServiceInterface) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// ListEnrollments はユーザーの履修登録をコース情報付きで返す。
// GET /api/enrollments
func (h *EnrollmentHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	enrollments, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(enrollments))
}

// Enroll はコースに履修登録する。
// POST /api/enrollments
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req enrollment.EnrollInput
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.service.Enroll(r.Context(), user.ID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}
