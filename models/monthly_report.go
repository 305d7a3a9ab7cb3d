package models

import (
	"time"
)

// MemberTaskItem 成员完成的单条普通任务
type MemberTaskItem struct {
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completed_at"`
}

// MemberTaskSummary 成员普通任务月度汇总（按成员顺序排列，0件的成员也会出现）
type MemberTaskSummary struct {
	UserID         string           `json:"user_id"`
	UserName       string           `json:"user_name"`
	CompletedCount int              `json:"completed_count"`
	Tasks          []MemberTaskItem `json:"tasks"` // 按完成时间倒序
}

// GroupTaskDetail 群组任务完成明细
type GroupTaskDetail struct {
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Reward      int       `json:"reward"`
	CompletedAt time.Time `json:"completed_at"`
	Tags        []string  `json:"tags"`
}

// GroupTaskUserItem 按成员汇总时的单条群组任务
type GroupTaskUserItem struct {
	Title       string    `json:"title"`
	Reward      int       `json:"reward"`
	CompletedAt time.Time `json:"completed_at"`
	Tags        []string  `json:"tags"`
}

// GroupTaskUserSummary 群组任务按成员汇总（当月无完成记录的成员不出现）
type GroupTaskUserSummary struct {
	UserID         string              `json:"user_id"`
	UserName       string              `json:"user_name"`
	CompletedCount int                 `json:"completed_count"`
	Reward         int                 `json:"reward"`
	Tasks          []GroupTaskUserItem `json:"tasks"`
}

// MonthlyReport 月度报告快照
// 每个 (group_id, report_month) 只存在一条记录，重新生成时整体覆盖。
type MonthlyReport struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	GroupID     string    `gorm:"type:varchar(50);uniqueIndex:idx_group_report_month" json:"groupId"`
	ReportMonth string    `gorm:"type:varchar(7);uniqueIndex:idx_group_report_month" json:"reportMonth"` // YYYY-MM
	GeneratedAt time.Time `json:"generatedAt"`

	MemberTaskSummary       []MemberTaskSummary    `gorm:"serializer:json;type:json" json:"memberTaskSummary"`
	GroupTaskCompletedCount int                    `json:"groupTaskCompletedCount"`
	GroupTaskTotalReward    int                    `json:"groupTaskTotalReward"`
	GroupTaskDetails        []GroupTaskDetail      `gorm:"serializer:json;type:json" json:"groupTaskDetails"`
	GroupTaskSummary        []GroupTaskUserSummary `gorm:"serializer:json;type:json" json:"groupTaskSummary"`

	// 前月对比基准，前月快照不存在时均为0
	NormalTaskCountPreviousMonth int `json:"normalTaskCountPreviousMonth"`
	GroupTaskCountPreviousMonth  int `json:"groupTaskCountPreviousMonth"`
	RewardPreviousMonth          int `json:"rewardPreviousMonth"`

	AIComment           *string `gorm:"type:text" json:"aiComment"`
	AICommentTokensUsed int     `gorm:"default:0" json:"aiCommentTokensUsed"`
}

// TotalNormalTaskCount 普通任务完成总数（跨成员求和）
func (r *MonthlyReport) TotalNormalTaskCount() int {
	total := 0
	for _, summary := range r.MemberTaskSummary {
		total += summary.CompletedCount
	}
	return total
}
