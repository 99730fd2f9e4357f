package handler

import (
	"context"
	"net/http"

	"github.com/urportal/portal/internal/dashboard"
	"github.com/urportal/portal/internal/model"
)

// DashboardServiceInterface は集約ページのハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	Dashboard(ctx context.Context, user *model.User) (*dashboard.Dashboard, error)
	AcademicsPage(ctx context.Context, user *model.User) (*dashboard.AcademicsPage, error)
}

// DashboardHandler はダッシュボードと成績ページのHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// GetDashboard はダッシュボードの集約データを返す。
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	d, err := h.service.Dashboard(r.Context(), user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetAcademicsPage は成績ページの集約データを返す。
// GET /api/academics-page
func (h *DashboardHandler) GetAcademicsPage(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	p, err := h.service.AcademicsPage(r.Context(), user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
