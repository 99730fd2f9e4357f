package repository

import (
	"errors"
	"fmt"

	"github.com/urportal/portal/internal/database"
)

// ErrDuplicate は一意制約違反を表す。
var ErrDuplicate = errors.New("duplicate record")

// 一意制約名（マイグレーションで定義）
const (
	ConstraintUsername       = "users_username_key"
	ConstraintEmail          = "users_email_key"
	ConstraintStudentID      = "users_student_id_key"
	ConstraintCourseCode     = "courses_code_key"
	ConstraintEnrollmentPair = "enrollments_user_course_key"
)

// DuplicateError は違反した制約名を保持する一意制約違反エラー。
// errors.Is(err, ErrDuplicate) で判定できる。
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	return "duplicate record: " + e.Constraint
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateConstraint はerrが一意制約違反の場合に制約名を返す。
func DuplicateConstraint(err error) (string, bool) {
	var dupErr *DuplicateError
	if errors.As(err, &dupErr) {
		return dupErr.Constraint, true
	}
	return "", false
}

// wrapWriteError は書き込み系エラーをラップする。一意制約違反はDuplicateErrorに変換する。
func wrapWriteError(msg string, err error) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		return fmt.Errorf("%s: %w", msg, &DuplicateError{Constraint: constraint})
	}
	return fmt.Errorf("%s: %w", msg, err)
}
