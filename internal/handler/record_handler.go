package handler

import (
	"context"
	"net/http"

	"github.com/urportal/portal/internal/model"
)

// RecordServiceInterface は会計記録・タスクの参照に必要なサービスインターフェース。
type RecordServiceInterface interface {
	ListFinances(ctx context.Context, userID string) ([]model.Finance, error)
	ListTasks(ctx context.Context, userID string) ([]model.TaskWithCourse, error)
}

// RecordHandler は会計記録とタスクのHTTPハンドラー。
type RecordHandler struct {
	service RecordServiceInterface
}

// NewRecordHandler はRecordHandlerを生成する。
func NewRecordHandler(service RecordServiceInterface) *RecordHandler {
	return &RecordHandler{service: service}
}

// ListFinances はユーザーの会計記録を返す。
// GET /api/finances
func (h *RecordHandler) ListFinances(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	finances, err := h.service.ListFinances(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(finances))
}

// ListTasks はユーザーのタスクをコース情報付きで返す。
// GET /api/tasks
func (h *RecordHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}
