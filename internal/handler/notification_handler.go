package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urportal/portal/internal/model"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	List(ctx context.Context, userID string) ([]model.Notification, error)
	MarkAsRead(ctx context.Context, userID, id string) (*model.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
}

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type markAllAsReadResponse struct {
	Updated int64 `json:"updated"`
}

// ListNotifications はユーザー宛ての通知を新しい順に返す。
// GET /api/notifications
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	notifications, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(notifications))
}

// MarkAsRead は通知を既読にする。他人の通知は404として扱う。
// PATCH /api/notifications/{id}/read
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	n, err := h.service.MarkAsRead(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkAllAsRead はユーザーの未読通知をすべて既読にする。
// PATCH /api/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	updated, err := h.service.MarkAllAsRead(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markAllAsReadResponse{Updated: updated})
}
