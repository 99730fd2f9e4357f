// Package auth はパスワード照合、セッショントークンの発行・解決、ログイン・登録処理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urportal/portal/internal/metrics"
	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
)

// IssuedSession はログイン・登録で発行されたセッション。
type IssuedSession struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	StudentID *string `json:"studentId"`
	Role      string  `json:"role"`
	Language  string  `json:"language"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenManager
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(userRepo repository.UserRepository, tokens *TokenManager, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		metrics:  mc,
	}
}

// Login はユーザー名とパスワードを照合し、セッションを発行する。
// ユーザーが存在しない場合もパスワード不一致の場合も同じエラーを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*IssuedSession, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		s.metrics.RecordLogin(metrics.OutcomeRejected)
		return nil, model.NewValidationError("username and password are required")
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		VerifyPassword(password, dummyPasswordRecord())
		s.metrics.RecordLogin(metrics.OutcomeInvalidCredentials)
		slog.InfoContext(ctx, "login failed", slog.String("reason", "unknown_user"))
		return nil, model.NewInvalidCredentialsError()
	}

	if !VerifyPassword(password, user.PasswordHash) {
		s.metrics.RecordLogin(metrics.OutcomeInvalidCredentials)
		slog.InfoContext(ctx, "login failed",
			slog.String("reason", "password_mismatch"),
			slog.String("user_id", user.ID),
		)
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.issue(user)
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.RecordLogin(metrics.OutcomeSuccess)
	slog.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Register は新規ユーザーを作成し、そのままログイン状態のセッションを発行する。
// 必須項目の欠落、ユーザー名・メールアドレス・学籍番号の重複はバリデーションエラーになる。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*IssuedSession, error) {
	user, apiErr := buildUser(in)
	if apiErr != nil {
		s.metrics.RecordRegistration(metrics.OutcomeRejected)
		return nil, apiErr
	}

	dupErr, err := s.checkDuplicates(ctx, user)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, err
	}
	if dupErr != nil {
		s.metrics.RecordRegistration(metrics.OutcomeRejected)
		return nil, dupErr
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェック後に並行登録された場合は一意制約で検出する
		if constraint, ok := repository.DuplicateConstraint(err); ok {
			s.metrics.RecordRegistration(metrics.OutcomeRejected)
			return nil, model.NewDuplicateUserError(duplicateField(constraint))
		}
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.issue(user)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.RecordRegistration(metrics.OutcomeSuccess)
	slog.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return session, nil
}

func (s *Service) issue(user *model.User) (*IssuedSession, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	return &IssuedSession{User: user.Public(), Token: token, ExpiresAt: expiresAt}, nil
}

// checkDuplicates は既存ユーザーとの重複を確認する。
// 重複があればAPIErrorを、検索自体に失敗した場合はerrを返す。
func (s *Service) checkDuplicates(ctx context.Context, user *model.User) (*model.APIError, error) {
	existing, err := s.userRepo.FindByUsername(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return model.NewDuplicateUserError("username"), nil
	}

	existing, err = s.userRepo.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return model.NewDuplicateUserError("email"), nil
	}

	if user.StudentID != nil {
		existing, err = s.userRepo.FindByStudentID(ctx, *user.StudentID)
		if err != nil {
			return nil, fmt.Errorf("failed to check student ID: %w", err)
		}
		if existing != nil {
			return model.NewDuplicateUserError("studentId"), nil
		}
	}

	return nil, nil
}

// buildUser は登録入力を検証し、デフォルト値を補ったユーザーを組み立てる。
func buildUser(in RegisterInput) (*model.User, *model.APIError) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"username", username},
		{"password", in.Password},
		{"email", email},
		{"firstName", firstName},
		{"lastName", lastName},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, model.NewValidationError("Missing required fields: " + strings.Join(missing, ", "))
	}

	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, model.NewValidationError("Invalid email address")
	}

	role := model.RoleStudent
	if in.Role != "" {
		role = model.Role(in.Role)
		if !role.IsValid() {
			return nil, model.NewValidationError("Invalid role")
		}
		if role == model.RoleAdmin {
			return nil, model.NewValidationError("Admin accounts cannot be self-registered")
		}
	}

	language := model.LanguageEnglish
	if in.Language != "" {
		language = model.Language(in.Language)
		if !language.IsValid() {
			return nil, model.NewInvalidLanguageError(in.Language)
		}
	}

	var studentID *string
	if in.StudentID != nil {
		if sid := strings.TrimSpace(*in.StudentID); sid != "" {
			studentID = &sid
		}
	}

	return &model.User{
		ID:        uuid.New().String(),
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		StudentID: studentID,
		Role:      role,
		Language:  language,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func duplicateField(constraint string) string {
	switch constraint {
	case repository.ConstraintEmail:
		return "email"
	case repository.ConstraintStudentID:
		return "studentId"
	default:
		return "username"
	}
}

// IsInvalidToken はerrがトークン検証エラーかどうかを返す。
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}
