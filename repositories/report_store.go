package repositories

import (
	"errors"
	"time"

	"github.com/ktr1133/MyTeacherApp-sub003/models"
	"github.com/ktr1133/MyTeacherApp-sub003/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reportStore 月度报告持久化的gorm实现
// monthly_reports表在 (group_id, report_month) 上有唯一索引，
// 配合事务内的行锁保证同键并发生成不会产生两条记录。
type reportStore struct {
	db *gorm.DB
}

func NewReportStore(db *gorm.DB) services.ReportStore {
	return &reportStore{db: db}
}

func (s *reportStore) FindByGroupAndMonth(groupID, yearMonth string) (*models.MonthlyReport, error) {
	var report models.MonthlyReport
	err := s.db.Where("group_id = ? AND report_month = ?", groupID, yearMonth).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *reportStore) FindByGroupAndMonthForUpdate(groupID, yearMonth string) (*models.MonthlyReport, error) {
	var report models.MonthlyReport
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("group_id = ? AND report_month = ?", groupID, yearMonth).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *reportStore) Create(report *models.MonthlyReport) error {
	return s.db.Create(report).Error
}

func (s *reportStore) Update(report *models.MonthlyReport) error {
	// 整体覆盖所有字段，不做部分合并
	return s.db.Save(report).Error
}

func (s *reportStore) GetByGroup(groupID string, limit int) ([]models.MonthlyReport, error) {
	var reports []models.MonthlyReport
	q := s.db.Where("group_id = ?", groupID).Order("report_month DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *reportStore) GetAllGroups() ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.Order("created_at").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *reportStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	// report_month为YYYY-MM字符串，字典序与时间序一致
	result := s.db.Where("report_month < ?", cutoff.Format("2006-01")).Delete(&models.MonthlyReport{})
	return result.RowsAffected, result.Error
}

func (s *reportStore) GetGroupMembers(groupID string) ([]models.User, error) {
	var users []models.User
	err := s.db.
		Joins("JOIN group_members ON group_members.user_id = users.id").
		Where("group_members.group_id = ?", groupID).
		Order("users.created_at, users.id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *reportStore) GetCompletedNormalTasks(userID string, start, end time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.
		Where("user_id = ? AND group_task_id IS NULL AND is_completed = ?", userID, true).
		Where("completed_at >= ? AND completed_at < ?", start, end).
		Order("completed_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *reportStore) GetCompletedGroupTasks(userIDs []string, start, end time.Time) ([]models.Task, error) {
	if len(userIDs) == 0 {
		return []models.Task{}, nil
	}

	var tasks []models.Task
	err := s.db.
		Preload("Tags").
		Where("user_id IN ? AND group_task_id IS NOT NULL AND is_completed = ?", userIDs, true).
		Where("completed_at >= ? AND completed_at < ?", start, end).
		Order("completed_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *reportStore) Transaction(fn func(tx services.ReportStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&reportStore{db: tx})
	})
}
