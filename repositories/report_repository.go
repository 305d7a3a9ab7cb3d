package repositories

import (
	"time"

	"github.com/ktr1133/MyTeacherApp-sub003/models"
	"github.com/ktr1133/MyTeacherApp-sub003/services"
	"gorm.io/gorm"
)

// reportRepository 实绩查询的gorm实现
type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) services.ReportRepository {
	return &reportRepository{db: db}
}

type dateCount struct {
	Date  string
	Value int
}

// GetNormalCompletedCountsByDate 普通任务按完成日计数
func (r *reportRepository) GetNormalCompletedCountsByDate(userID string, start, end time.Time) (map[string]int, error) {
	return r.countByDate("DATE_FORMAT(completed_at, '%Y-%m-%d')", "COUNT(*)", start, end, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND group_task_id IS NULL AND is_completed = ?", userID, true).
			Where("completed_at >= ? AND completed_at < ?", start, nextDay(end))
	})
}

// GetNormalIncompleteCountsByDueDate 普通任务按截止日统计未完成数
func (r *reportRepository) GetNormalIncompleteCountsByDueDate(userID string, start, end time.Time) (map[string]int, error) {
	return r.countByDate("DATE_FORMAT(due_date, '%Y-%m-%d')", "COUNT(*)", start, end, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND group_task_id IS NULL AND is_completed = ?", userID, false).
			Where("due_date >= ? AND due_date < ?", start, nextDay(end))
	})
}

// GetGroupCompletedCountsByDate 群组任务按完成日计数
func (r *reportRepository) GetGroupCompletedCountsByDate(userID string, start, end time.Time) (map[string]int, error) {
	return r.countByDate("DATE_FORMAT(completed_at, '%Y-%m-%d')", "COUNT(*)", start, end, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND group_task_id IS NOT NULL AND is_completed = ?", userID, true).
			Where("completed_at >= ? AND completed_at < ?", start, nextDay(end))
	})
}

// GetGroupIncompleteCountsByDueDate 群组任务按截止日统计未完成数
func (r *reportRepository) GetGroupIncompleteCountsByDueDate(userID string, start, end time.Time) (map[string]int, error) {
	return r.countByDate("DATE_FORMAT(due_date, '%Y-%m-%d')", "COUNT(*)", start, end, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND group_task_id IS NOT NULL AND is_completed = ?", userID, false).
			Where("due_date >= ? AND due_date < ?", start, nextDay(end))
	})
}

// GetGroupRewardByDate 群组任务报酬按完成日求和
func (r *reportRepository) GetGroupRewardByDate(userID string, start, end time.Time) (map[string]int, error) {
	return r.countByDate("DATE_FORMAT(completed_at, '%Y-%m-%d')", "COALESCE(SUM(reward), 0)", start, end, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND group_task_id IS NOT NULL AND is_completed = ?", userID, true).
			Where("completed_at >= ? AND completed_at < ?", start, nextDay(end))
	})
}

func (r *reportRepository) countByDate(dateExpr, valueExpr string, start, end time.Time, scope func(*gorm.DB) *gorm.DB) (map[string]int, error) {
	var rows []dateCount

	q := r.db.Model(&models.Task{}).
		Select(dateExpr + " AS date, " + valueExpr + " AS value").
		Group("date")

	if err := scope(q).Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[string]int, len(rows))
	for _, row := range rows {
		result[row.Date] = row.Value
	}
	return result, nil
}

// nextDay 把含两端的日期区间转成右开边界
func nextDay(end time.Time) time.Time {
	return time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location()).AddDate(0, 0, 1)
}
