package service

import (
	"context"
	"fmt"
	"time"

	"cantogame/internal/models"
	"cantogame/internal/report"
	"cantogame/internal/validation"
)

// ReportSender delivers class reports
type ReportSender interface {
	IsEnabled() bool
	SendClassReport(ctx context.Context, toEmail string, class *report.Class) error
}

// ReportService builds teacher class reports
type ReportService struct {
	stats  *StatisticsService
	users  AssociationStore
	sender ReportSender
	now    func() time.Time
}

// NewReportService creates a new report service. sender may be nil when
// reports are only rendered locally.
func NewReportService(stats *StatisticsService, users AssociationStore, sender ReportSender) *ReportService {
	return &ReportService{stats: stats, users: users, sender: sender, now: time.Now}
}

// ClassReport collects the student summaries and class-wide top wrong words
// for a teacher
func (s *ReportService) ClassReport(ctx context.Context, teacherID string) (*report.Class, error) {
	if err := validation.RequireID("teacherId", teacherID); err != nil {
		return nil, err
	}

	teacher, err := s.users.GetUser(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}
	if teacher == nil {
		return nil, ErrUserNotFound
	}
	if teacher.Role != models.RoleTeacher {
		return nil, ErrForbidden
	}

	viewer := models.Viewer{UserID: teacher.ID, Role: teacher.Role}
	students, err := s.stats.Students(ctx, viewer)
	if err != nil {
		return nil, err
	}
	words, err := s.stats.TopWrongWords(ctx, viewer, "", 0)
	if err != nil {
		return nil, err
	}

	return &report.Class{
		Teacher:     *teacher,
		GeneratedAt: s.now().In(s.stats.loc),
		Students:    students,
		TopWords:    words,
	}, nil
}

// EmailClassReport builds a teacher's class report and emails it to them
func (s *ReportService) EmailClassReport(ctx context.Context, teacherID string) (*report.Class, error) {
	class, err := s.ClassReport(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if s.sender == nil || !s.sender.IsEnabled() {
		return nil, ErrEmailDisabled
	}
	if err := validation.ValidateEmail(class.Teacher.Email); err != nil {
		return nil, err
	}
	if err := s.sender.SendClassReport(ctx, class.Teacher.Email, class); err != nil {
		return nil, err
	}
	return class, nil
}
