package services

import (
	"fmt"
	"time"

	"github.com/ktr1133/MyTeacherApp-sub003/models"
)

// SubscriptionService 订阅权限判定服务
// 只控制历史报告的读取，不影响报告的生成（定时任务不受此限制）。
type SubscriptionService struct{}

func NewSubscriptionService() *SubscriptionService {
	return &SubscriptionService{}
}

// IsGroupSubscribed 群组是否持有有效订阅
func (s *SubscriptionService) IsGroupSubscribed(group *models.Group) bool {
	return group.SubscriptionActive
}

// CanAccessMonthlyReport 判定群组能否查看指定年月的报告
// 订阅群组不受限制；免费群组只能查看创建当月及次月的报告，
// 即目标月的月初不晚于（创建月+1个月）的月末。
func (s *SubscriptionService) CanAccessMonthlyReport(group *models.Group, yearMonth string) (bool, error) {
	targetStart, err := ParseYearMonth(yearMonth)
	if err != nil {
		return false, err
	}

	if s.IsGroupSubscribed(group) {
		return true, nil
	}

	created := group.CreatedAt
	// 创建月+2个月的月初 = 创建次月的月末边界
	freeLimit := time.Date(created.Year(), created.Month(), 1, 0, 0, 0, 0, created.Location()).AddDate(0, 2, 0)

	return targetStart.Before(freeLimit), nil
}

// ParseYearMonth 解析YYYY-MM为该月月初
func ParseYearMonth(yearMonth string) (time.Time, error) {
	t, err := time.Parse("2006-01", yearMonth)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, yearMonth)
	}
	return t, nil
}
