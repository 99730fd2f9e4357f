package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urportal/portal/internal/academic"
	"github.com/urportal/portal/internal/model"
)

// AcademicServiceInterface は成績記録ハンドラーが必要とするサービスインターフェース。
type AcademicServiceInterface interface {
	List(ctx context.Context, userID string) ([]model.AcademicWithCourse, error)
	Get(ctx context.Context, userID, id string) (*model.AcademicWithCourse, error)
	Create(ctx context.Context, userID string, in academic.CreateInput) (*model.Academic, error)
	Update(ctx context.Context, userID, id string, in academic.UpdateInput) (*model.Academic, error)
	Delete(ctx context.Context, userID, id string) error
}

// AcademicHandler は成績記録のHTTPハンドラー。
// すべての操作はログイン中ユーザー自身の記録に限られる。
type AcademicHandler struct {
	service AcademicServiceInterface
}

// NewAcademicHandler はAcademicHandlerを生成する。
func NewAcademicHandler(service AcademicServiceInterface) *AcademicHandler {
	return &AcademicHandler{service: service}
}

// ListAcademics は成績記録一覧を返す。
// GET /api/academics
func (h *AcademicHandler) ListAcademics(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	records, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

// GetAcademic は成績記録を1件返す。
// GET /api/academics/{id}
func (h *AcademicHandler) GetAcademic(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	rec, err := h.service.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateAcademic は成績記録を作成する。
// POST /api/academics
func (h *AcademicHandler) CreateAcademic(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req academic.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.service.Create(r.Context(), user.ID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateAcademic は成績記録を部分更新する。
// PATCH /api/academics/{id}
func (h *AcademicHandler) UpdateAcademic(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req academic.UpdateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.service.Update(r.Context(), user.ID, chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteAcademic は成績記録を削除する。
// DELETE /api/academics/{id}
func (h *AcademicHandler) DeleteAcademic(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
