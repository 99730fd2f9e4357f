// Package dashboard はダッシュボード・成績ページ向けの集約データを提供する。
// 各データソースはerrgroupで並行に取得し、いずれかが失敗した時点で残りをキャンセルする。
package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/urportal/portal/internal/model"
	"github.com/urportal/portal/internal/record"
	"github.com/urportal/portal/internal/repository"
)

// announcementLimit はダッシュボードに表示するお知らせの件数。
const announcementLimit = 10

// CourseCatalog はコース一覧の取得元。キャッシュ付きのcourse.Serviceを想定する。
type CourseCatalog interface {
	List(ctx context.Context) ([]model.Course, error)
}

// Dashboard はダッシュボード画面の集約データ。
type Dashboard struct {
	User          *model.User                  `json:"user"`
	Enrollments   []model.EnrollmentWithCourse `json:"enrollments"`
	Announcements []model.Announcement         `json:"announcements"`
	Tasks         []model.TaskWithCourse       `json:"tasks"`
	Academics     []model.AcademicWithCourse   `json:"academics"`
	Finances      []model.Finance              `json:"finances"`
	Balance       int                          `json:"balance"`
}

// AcademicsPage は成績ページの集約データ。
type AcademicsPage struct {
	User        *model.User                  `json:"user"`
	Enrollments []model.EnrollmentWithCourse `json:"enrollments"`
	Academics   []model.AcademicWithCourse   `json:"academics"`
	Courses     []model.Course               `json:"courses"`
}

// Service は集約データのサービス層。
type Service struct {
	enrollmentRepo   repository.EnrollmentRepository
	announcementRepo repository.AnnouncementRepository
	taskRepo         repository.TaskRepository
	academicRepo     repository.AcademicRepository
	financeRepo      repository.FinanceRepository
	catalog          CourseCatalog
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	enrollmentRepo repository.EnrollmentRepository,
	announcementRepo repository.AnnouncementRepository,
	taskRepo repository.TaskRepository,
	academicRepo repository.AcademicRepository,
	financeRepo repository.FinanceRepository,
	catalog CourseCatalog,
) *Service {
	return &Service{
		enrollmentRepo:   enrollmentRepo,
		announcementRepo: announcementRepo,
		taskRepo:         taskRepo,
		academicRepo:     academicRepo,
		financeRepo:      financeRepo,
		catalog:          catalog,
	}
}

// Dashboard はユーザーのダッシュボードデータを並行に取得する。
func (s *Service) Dashboard(ctx context.Context, user *model.User) (*Dashboard, error) {
	d := &Dashboard{User: user.Public()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Enrollments, err = s.enrollmentRepo.ListByUserID(ctx, user.ID)
		return wrap("履修登録", err)
	})
	g.Go(func() (err error) {
		d.Announcements, err = s.announcementRepo.List(ctx, announcementLimit)
		return wrap("お知らせ", err)
	})
	g.Go(func() (err error) {
		d.Tasks, err = s.taskRepo.ListByUserID(ctx, user.ID)
		return wrap("タスク", err)
	})
	g.Go(func() (err error) {
		d.Academics, err = s.academicRepo.ListByUserID(ctx, user.ID)
		return wrap("成績記録", err)
	})
	g.Go(func() (err error) {
		d.Finances, err = s.financeRepo.ListByUserID(ctx, user.ID)
		return wrap("会計記録", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.Balance = record.Balance(d.Finances)
	return d, nil
}

// AcademicsPage はユーザーの成績ページデータを並行に取得する。
func (s *Service) AcademicsPage(ctx context.Context, user *model.User) (*AcademicsPage, error) {
	p := &AcademicsPage{User: user.Public()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p.Enrollments, err = s.enrollmentRepo.ListByUserID(ctx, user.ID)
		return wrap("履修登録", err)
	})
	g.Go(func() (err error) {
		p.Academics, err = s.academicRepo.ListByUserID(ctx, user.ID)
		return wrap("成績記録", err)
	})
	g.Go(func() (err error) {
		p.Courses, err = s.catalog.List(ctx)
		return wrap("コース一覧", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%sの取得に失敗しました: %w", what, err)
}
