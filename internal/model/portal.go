package model

import "time"

// Course は開講科目を表す。
type Course struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	Credits        int     `json:"credits"`
	InstructorName *string `json:"instructorName"`
	Schedule       *string `json:"schedule"`
	Duration       *int    `json:"duration"`
	TotalWeeks     int     `json:"totalWeeks"`
}

// Enrollment は学生の履修登録を表す。
type Enrollment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CourseID       string    `json:"courseId"`
	EnrollmentDate time.Time `json:"enrollmentDate"`
	Status         string    `json:"status"`
	CurrentWeek    int       `json:"currentWeek"`
	Progress       int       `json:"progress"`
}

// EnrollmentWithCourse は履修登録とコース情報を結合した構造体。
type EnrollmentWithCourse struct {
	Enrollment
	Course *Course `json:"course"`
}

// Announcement はお知らせを表す。
// ContentはMarkdown原文、ContentHTMLはサニタイズ済みのHTML。
type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"contentHtml"`
	Department  *string   `json:"department"`
	PostedBy    *string   `json:"postedBy"`
	PostedAt    time.Time `json:"postedAt"`
	IsImportant bool      `json:"isImportant"`
}

// FinanceType は会計記録の種別を表す。
type FinanceType string

const (
	FinanceTypePayment     FinanceType = "payment"
	FinanceTypeFee         FinanceType = "fee"
	FinanceTypeScholarship FinanceType = "scholarship"
)

// Finance は学費・支払いの記録を表す。
type Finance struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	Amount          int         `json:"amount"`
	Type            FinanceType `json:"type"`
	Description     *string     `json:"description"`
	TransactionDate time.Time   `json:"transactionDate"`
	Status          string      `json:"status"`
}

// Task は課題・試験などのタスクを表す。
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	CourseID    *string    `json:"courseId"`
	DueDate     *time.Time `json:"dueDate"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
}

// TaskWithCourse はタスクとコース情報を結合した構造体。
type TaskWithCourse struct {
	Task
	Course *Course `json:"course"`
}

// Notification はユーザー宛ての通知を表す。
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Academic は学期ごとの成績記録を表す。
type Academic struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	CourseID     string  `json:"courseId"`
	Semester     string  `json:"semester"`
	AcademicYear string  `json:"academicYear"`
	Grade        *string `json:"grade"`
	Score        *int    `json:"score"`
	Status       string  `json:"status"`
}

// AcademicWithCourse は成績記録とコース情報を結合した構造体。
type AcademicWithCourse struct {
	Academic
	Course *Course `json:"course"`
}

// AcademicUpdate は成績記録の部分更新を表す。nilのフィールドは変更しない。
type AcademicUpdate struct {
	Semester     *string
	AcademicYear *string
	Grade        *string
	Score        *int
	Status       *string
}

// 成績記録・履修登録のステータス
const (
	AcademicStatusInProgress = "in-progress"
	EnrollmentStatusActive   = "active"
)
