// Package record は学生本人の会計記録とタスクの閲覧を提供する。
package record

import (
	"context"
	"fmt"

	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/repository"
)

// Service は会計記録・タスクの読み取り専用サービス。
type Service struct {
	financeRepo repository.FinanceRepository
	taskRepo    repository.TaskRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(financeRepo repository.FinanceRepository, taskRepo repository.TaskRepository) *Service {
	return &Service{
		financeRepo: financeRepo,
		taskRepo:    taskRepo,
	}
}

// ListFinances はユーザーの会計記録を新しい順に返す。
func (s *Service) ListFinances(ctx context.Context, userID string) ([]model.Finance, error) {
	finances, err := s.financeRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("会計記録の取得に失敗しました: %w", err)
	}
	return finances, nil
}

// ListTasks はユーザーが履修しているコースのタスクを期限順に返す。
func (s *Service) ListTasks(ctx context.Context, userID string) ([]model.TaskWithCourse, error) {
	tasks, err := s.taskRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// Balance は会計記録から未払い残高を計算する。
// 学費は加算し、支払いと奨学金は減算する。
func Balance(finances []model.Finance) int {
	balance := 0
	for _, f := range finances {
		switch f.Type {
		case model.FinanceTypeFee:
			balance += f.Amount
		case model.FinanceTypePayment, model.FinanceTypeScholarship:
			balance -= f.Amount
		}
	}
	return balance
}
