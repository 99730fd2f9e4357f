package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/urportal/portal/internal/announcement"
	"github.com/urportal/portal/internal/model"
)

// maxAnnouncementLimit はlimitクエリで指定できる件数の上限。
const maxAnnouncementLimit = 100

// AnnouncementServiceInterface はお知らせハンドラーが必要とするサービスインターフェース。
type AnnouncementServiceInterface interface {
	List(ctx context.Context, limit int) ([]model.Announcement, error)
	Create(ctx context.Context, actor *model.User, in announcement.CreateInput) (*model.Announcement, error)
}

// AnnouncementHandler はお知らせのHTTPハンドラー。
type AnnouncementHandler struct {
	service AnnouncementServiceInterface
}

// NewAnnouncementHandler はAnnouncementHandlerを生成する。
func NewAnnouncementHandler(service AnnouncementServiceInterface) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

// ListAnnouncements はお知らせを新しい順に返す。
// limitクエリが省略された場合は全件を返す。
// GET /api/announcements
func (h *AnnouncementHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAnnouncementLimit {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("limit must be between 1 and "+strconv.Itoa(maxAnnouncementLimit)))
			return
		}
		limit = n
	}

	announcements, err := h.service.List(r.Context(), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(announcements))
}

// CreateAnnouncement はお知らせを投稿する。管理者のみ。
// POST /api/announcements
func (h *AnnouncementHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req announcement.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.service.Create(r.Context(), user, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
