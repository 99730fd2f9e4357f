// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, portal, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeDuplicateUser        = "DUPLICATE_USER"
	ErrCodeInvalidLanguage      = "INVALID_LANGUAGE"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeCourseNotFound       = "COURSE_NOT_FOUND"
	ErrCodeAcademicNotFound     = "ACADEMIC_RECORD_NOT_FOUND"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeAlreadyEnrolled      = "ALREADY_ENROLLED"
	ErrCodeDuplicateCourse      = "DUPLICATE_COURSE"
	ErrCodeInvalidProfileImage  = "INVALID_PROFILE_IMAGE"
	ErrCodeProfileImageBlocked  = "PROFILE_IMAGE_BLOCKED"
	ErrCodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー名とパスワードのどちらが誤っていたかは明かさない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid username or password",
		Category: "auth",
		Action:   "Check your credentials and try again.",
	}
}

// NewValidationError は入力値エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
	}
}

// NewDuplicateUserError は登録済みのユーザー名・メールアドレス・学籍番号による登録エラーを生成する。
// fieldには "username", "email", "studentId" のいずれかを渡す。
func NewDuplicateUserError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  fmt.Sprintf("%s already exists", duplicateFieldLabel(field)),
		Category: "validation",
		Action:   "Use a different value or sign in with the existing account.",
	}
}

func duplicateFieldLabel(field string) string {
	switch field {
	case "username":
		return "Username"
	case "email":
		return "Email"
	case "studentId":
		return "Student ID"
	default:
		return "Account"
	}
}

// NewInvalidLanguageError はサポート外の言語コードのエラーを生成する。
func NewInvalidLanguageError(language string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLanguage,
		Message:  fmt.Sprintf("Unsupported language: %q", language),
		Category: "validation",
		Action:   "Choose one of en, fr or rw.",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Not authenticated",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have permission to perform this action",
		Category: "auth",
		Action:   "Ask an administrator for access.",
	}
}

// NewNotFoundError は未定義ルートのエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Resource not found",
		Category: "portal",
		Action:   "Check the URL.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewCourseNotFoundError はコースが見つからない場合のエラーを生成する。
func NewCourseNotFoundError(courseID string) *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  fmt.Sprintf("Course not found: %s", courseID),
		Category: "portal",
		Action:   "Pick a course from the catalog.",
	}
}

// NewAcademicNotFoundError は成績記録が見つからない場合のエラーを生成する。
func NewAcademicNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeAcademicNotFound,
		Message:  fmt.Sprintf("Academic record not found: %s", id),
		Category: "portal",
		Action:   "Check the record ID.",
	}
}

// NewNotificationNotFoundError は通知が見つからない場合のエラーを生成する。
func NewNotificationNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("Notification not found: %s", id),
		Category: "portal",
		Action:   "Reload your notifications.",
	}
}

// NewAlreadyEnrolledError は登録済みコースへの重複登録エラーを生成する。
func NewAlreadyEnrolledError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyEnrolled,
		Message:  "You are already enrolled in this course",
		Category: "validation",
		Action:   "Check your enrollments.",
	}
}

// NewDuplicateCourseError は登録済みのコースコードによるエラーを生成する。
func NewDuplicateCourseError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateCourse,
		Message:  fmt.Sprintf("Course code already exists: %s", code),
		Category: "validation",
		Action:   "Use a different course code.",
	}
}

// NewInvalidProfileImageError はプロフィール画像URLが画像を指していない場合のエラーを生成する。
func NewInvalidProfileImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfileImage,
		Message:  fmt.Sprintf("Invalid profile image: %s", reason),
		Category: "validation",
		Action:   "Use a public https URL that points to an image.",
	}
}

// NewProfileImageBlockedError はSSRF対策によりブロックされたURLのエラーを生成する。
func NewProfileImageBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileImageBlocked,
		Message:  "The profile image URL is not allowed",
		Category: "validation",
		Action:   "Use a public website URL. Private and local addresses are not allowed.",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、レスポンスには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Please try again later.",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed",
		Category: "system",
		Action:   "Check the API documentation for the supported methods.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Wait for the time given in Retry-After and try again.",
	}
}
