package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/urportal/portal/internal/model"
)

// bearerChallenge は401応答に付与するチャレンジ。
// セッションはCookieのほかAuthorization: Bearerでも受け付ける。
const bearerChallenge = `Bearer realm="portal"`

// ErrorResponseBody はAPIエラーレスポンスのJSON表現。
// messageはそのまま画面に表示できる文言、codeはクライアントの分岐用。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func newErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	return ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse はAPIErrorをJSONで書き込む。
// 401の場合はWWW-Authenticateヘッダーも付与する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	if statusCode == http.StatusUnauthorized {
		h.Set("WWW-Authenticate", bearerChallenge)
	}
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(newErrorResponseBody(apiErr)); err != nil {
		slog.Warn("failed to write error response",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は500を汎用メッセージで書き込む。原因はログにのみ残すこと。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
