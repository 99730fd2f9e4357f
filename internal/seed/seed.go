// Package seed は開発環境向けの初期データを投入する。
//
// データは埋め込みのseed.yamlから読み込む。adminユーザーが既に存在する場合は
// 何もせずに終了するため、繰り返し実行しても重複データは作られない。
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/urportal/portal/internal/auth"
	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
	"github.com/urportal/portal/internal/security"
)

//go:embed seed.yaml
var defaultFixture []byte

// sentinelUsername はこのユーザーが存在すれば投入済みとみなすユーザー名。
const sentinelUsername = "admin"

// Fixture はseed.yamlの内容。
type Fixture struct {
	Users         []UserFixture         `yaml:"users"`
	Courses       []CourseFixture       `yaml:"courses"`
	Enrollments   []EnrollmentFixture   `yaml:"enrollments"`
	Announcements []AnnouncementFixture `yaml:"announcements"`
	Finances      []FinanceFixture      `yaml:"finances"`
	Tasks         []TaskFixture         `yaml:"tasks"`
	Notifications []NotificationFixture `yaml:"notifications"`
}

type UserFixture struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Email     string `yaml:"email"`
	StudentID string `yaml:"studentId"`
	Role      string `yaml:"role"`
	Language  string `yaml:"language"`
}

type CourseFixture struct {
	Code           string `yaml:"code"`
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	Credits        int    `yaml:"credits"`
	InstructorName string `yaml:"instructorName"`
	Schedule       string `yaml:"schedule"`
	Duration       int    `yaml:"duration"`
	TotalWeeks     int    `yaml:"totalWeeks"`
}

// EnrollmentFixture は履修登録と対応する成績記録を表す。
type EnrollmentFixture struct {
	Username     string `yaml:"username"`
	Course       string `yaml:"course"`
	Semester     string `yaml:"semester"`
	AcademicYear string `yaml:"academicYear"`
}

type AnnouncementFixture struct {
	Title      string `yaml:"title"`
	Content    string `yaml:"content"`
	Department string `yaml:"department"`
	PostedBy   string `yaml:"postedBy"`
	Important  bool   `yaml:"important"`
}

type FinanceFixture struct {
	Username    string `yaml:"username"`
	Amount      int    `yaml:"amount"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
}

// TaskFixture の期限は投入時刻からの日数で指定する。
type TaskFixture struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Course      string `yaml:"course"`
	DueInDays   int    `yaml:"dueInDays"`
	Type        string `yaml:"type"`
	Status      string `yaml:"status"`
}

type NotificationFixture struct {
	Username string `yaml:"username"`
	Title    string `yaml:"title"`
	Content  string `yaml:"content"`
	Type     string `yaml:"type"`
}

// ParseFixture はYAMLからFixtureを読み込む。
// 参照先のユーザー名・コースコードが定義されていない場合はエラーを返す。
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// DefaultFixture は埋め込みのseed.yamlを読み込む。
func DefaultFixture() (*Fixture, error) {
	return ParseFixture(defaultFixture)
}

func (f *Fixture) validate() error {
	users := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		if !model.Role(u.Role).IsValid() {
			return fmt.Errorf("seed user %q: invalid role %q", u.Username, u.Role)
		}
		if !model.Language(u.Language).IsValid() {
			return fmt.Errorf("seed user %q: invalid language %q", u.Username, u.Language)
		}
		users[u.Username] = true
	}
	courses := make(map[string]bool, len(f.Courses))
	for _, c := range f.Courses {
		courses[c.Code] = true
	}

	for _, e := range f.Enrollments {
		if !users[e.Username] || !courses[e.Course] {
			return fmt.Errorf("seed enrollment %s/%s: unknown user or course", e.Username, e.Course)
		}
	}
	for _, fin := range f.Finances {
		if !users[fin.Username] {
			return fmt.Errorf("seed finance %q: unknown user %q", fin.Description, fin.Username)
		}
	}
	for _, t := range f.Tasks {
		if t.Course != "" && !courses[t.Course] {
			return fmt.Errorf("seed task %q: unknown course %q", t.Title, t.Course)
		}
	}
	for _, n := range f.Notifications {
		if !users[n.Username] {
			return fmt.Errorf("seed notification %q: unknown user %q", n.Title, n.Username)
		}
	}
	return nil
}

// Repositories はSeederが書き込むリポジトリの集合。
type Repositories struct {
	Users         repository.UserRepository
	Courses       repository.CourseRepository
	Enrollments   repository.EnrollmentRepository
	Announcements repository.AnnouncementRepository
	Finances      repository.FinanceRepository
	Tasks         repository.TaskRepository
	Notifications repository.NotificationRepository
}

// Seeder はFixtureをリポジトリへ投入する。
type Seeder struct {
	repos    Repositories
	renderer security.ContentRenderer
	logger   *slog.Logger
	hash     func(string) (string, error)
	now      func() time.Time
}

// NewSeeder は新しいSeederを生成する。
func NewSeeder(repos Repositories, renderer security.ContentRenderer, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		repos:    repos,
		renderer: renderer,
		logger:   logger,
		hash:     auth.HashPassword,
		now:      time.Now,
	}
}

// Run はFixtureを投入する。投入済みでスキップした場合はfalseを返す。
func (s *Seeder) Run(ctx context.Context, f *Fixture) (bool, error) {
	existing, err := s.repos.Users.FindByUsername(ctx, sentinelUsername)
	if err != nil {
		return false, fmt.Errorf("failed to check seed state: %w", err)
	}
	if existing != nil {
		s.logger.Info("seed data already present, skipping")
		return false, nil
	}

	now := s.now().UTC()

	userIDs, err := s.seedUsers(ctx, f.Users, now)
	if err != nil {
		return false, err
	}
	courseIDs, err := s.seedCourses(ctx, f.Courses)
	if err != nil {
		return false, err
	}

	for _, e := range f.Enrollments {
		enrollment := &model.Enrollment{
			ID:             uuid.New().String(),
			UserID:         userIDs[e.Username],
			CourseID:       courseIDs[e.Course],
			EnrollmentDate: now,
			Status:         model.EnrollmentStatusActive,
			CurrentWeek:    1,
		}
		academic := &model.Academic{
			ID:           uuid.New().String(),
			UserID:       enrollment.UserID,
			CourseID:     enrollment.CourseID,
			Semester:     e.Semester,
			AcademicYear: e.AcademicYear,
			Status:       model.AcademicStatusInProgress,
		}
		if err := s.repos.Enrollments.CreateWithAcademic(ctx, enrollment, academic); err != nil {
			return false, fmt.Errorf("failed to seed enrollment %s/%s: %w", e.Username, e.Course, err)
		}
	}

	for _, a := range f.Announcements {
		html, err := s.renderer.Render(a.Content)
		if err != nil {
			return false, fmt.Errorf("failed to render announcement %q: %w", a.Title, err)
		}
		if err := s.repos.Announcements.Create(ctx, &model.Announcement{
			ID:          uuid.New().String(),
			Title:       a.Title,
			Content:     a.Content,
			ContentHTML: html,
			Department:  optional(a.Department),
			PostedBy:    optional(a.PostedBy),
			PostedAt:    now,
			IsImportant: a.Important,
		}); err != nil {
			return false, fmt.Errorf("failed to seed announcement %q: %w", a.Title, err)
		}
	}

	for _, fin := range f.Finances {
		if err := s.repos.Finances.Create(ctx, &model.Finance{
			ID:              uuid.New().String(),
			UserID:          userIDs[fin.Username],
			Amount:          fin.Amount,
			Type:            model.FinanceType(fin.Type),
			Description:     optional(fin.Description),
			TransactionDate: now,
			Status:          fin.Status,
		}); err != nil {
			return false, fmt.Errorf("failed to seed finance %q: %w", fin.Description, err)
		}
	}

	for _, t := range f.Tasks {
		task := &model.Task{
			ID:          uuid.New().String(),
			Title:       t.Title,
			Description: optional(t.Description),
			Type:        t.Type,
			Status:      t.Status,
		}
		if t.Course != "" {
			id := courseIDs[t.Course]
			task.CourseID = &id
		}
		if t.DueInDays > 0 {
			due := now.AddDate(0, 0, t.DueInDays)
			task.DueDate = &due
		}
		if err := s.repos.Tasks.Create(ctx, task); err != nil {
			return false, fmt.Errorf("failed to seed task %q: %w", t.Title, err)
		}
	}

	for _, n := range f.Notifications {
		if err := s.repos.Notifications.Create(ctx, &model.Notification{
			ID:        uuid.New().String(),
			UserID:    userIDs[n.Username],
			Title:     n.Title,
			Content:   n.Content,
			Type:      n.Type,
			CreatedAt: now,
		}); err != nil {
			return false, fmt.Errorf("failed to seed notification %q: %w", n.Title, err)
		}
	}

	s.logger.Info("seed data inserted",
		slog.Int("users", len(f.Users)),
		slog.Int("courses", len(f.Courses)),
		slog.Int("enrollments", len(f.Enrollments)),
	)
	return true, nil
}

func (s *Seeder) seedUsers(ctx context.Context, users []UserFixture, now time.Time) (map[string]string, error) {
	ids := make(map[string]string, len(users))
	for _, u := range users {
		hash, err := s.hash(u.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %q: %w", u.Username, err)
		}
		user := &model.User{
			ID:           uuid.New().String(),
			Username:     u.Username,
			PasswordHash: hash,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        u.Email,
			StudentID:    optional(u.StudentID),
			Role:         model.Role(u.Role),
			Language:     model.Language(u.Language),
			CreatedAt:    now,
		}
		if err := s.repos.Users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to seed user %q: %w", u.Username, err)
		}
		ids[u.Username] = user.ID
	}
	return ids, nil
}

func (s *Seeder) seedCourses(ctx context.Context, courses []CourseFixture) (map[string]string, error) {
	ids := make(map[string]string, len(courses))
	for _, c := range courses {
		course := &model.Course{
			ID:             uuid.New().String(),
			Code:           c.Code,
			Name:           c.Name,
			Description:    optional(c.Description),
			Credits:        c.Credits,
			InstructorName: optional(c.InstructorName),
			Schedule:       optional(c.Schedule),
			TotalWeeks:     c.TotalWeeks,
		}
		if c.Duration > 0 {
			d := c.Duration
			course.Duration = &d
		}
		if err := s.repos.Courses.Create(ctx, course); err != nil {
			return nil, fmt.Errorf("failed to seed course %s: %w", c.Code, err)
		}
		ids[c.Code] = course.ID
	}
	return ids, nil
}

// optional は空文字列をnilに変換する。
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
