package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ktr1133/MyTeacherApp-sub003/config"
	"github.com/ktr1133/MyTeacherApp-sub003/models"
	"github.com/ktr1133/MyTeacherApp-sub003/utils"
)

// ReportStore 月度报告持久化接口
// Find系方法在记录不存在时返回 (nil, nil)。
type ReportStore interface {
	FindByGroupAndMonth(groupID, yearMonth string) (*models.MonthlyReport, error)
	// FindByGroupAndMonthForUpdate 带行锁查询，同一键的并发生成在此串行化
	FindByGroupAndMonthForUpdate(groupID, yearMonth string) (*models.MonthlyReport, error)
	Create(report *models.MonthlyReport) error
	Update(report *models.MonthlyReport) error
	GetByGroup(groupID string, limit int) ([]models.MonthlyReport, error)
	GetAllGroups() ([]models.Group, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)

	GetGroupMembers(groupID string) ([]models.User, error)
	// GetCompletedNormalTasks 区间为左闭右开 [start, end)，按完成时间倒序
	GetCompletedNormalTasks(userID string, start, end time.Time) ([]models.Task, error)
	// GetCompletedGroupTasks 同上，包含Tags预加载
	GetCompletedGroupTasks(userIDs []string, start, end time.Time) ([]models.Task, error)

	// Transaction 在数据库事务内执行fn，fn返回错误时整体回滚
	Transaction(fn func(tx ReportStore) error) error
}

// CommentGenerator AI评语生成接口
// 调用方将任何错误降级为"无评语"，不会让错误影响报告生成。
type CommentGenerator interface {
	GenerateMonthlyReportComment(ctx context.Context, report *models.MonthlyReport, group *models.Group, changes []MemberChange) (comment string, tokensUsed int, err error)
}

// BatchError 批量生成中单个群组的失败记录
type BatchError struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	Error     string `json:"error"`
}

// BatchResult 批量生成汇总
type BatchResult struct {
	YearMonth    string       `json:"year_month"`
	SuccessCount int          `json:"success"`
	FailedCount  int          `json:"failed"`
	Errors       []BatchError `json:"errors"`
}

// MonthlyReportService 月度报告服务
// 负责快照的生成、批量生成、清理、读取与展示整形。
type MonthlyReportService struct {
	store          ReportStore
	comments       CommentGenerator
	changes        *ChangeService
	subscriptions  *SubscriptionService
	commentTimeout time.Duration
}

func NewMonthlyReportService(store ReportStore, comments CommentGenerator, changes *ChangeService, subscriptions *SubscriptionService) *MonthlyReportService {
	return &MonthlyReportService{
		store:          store,
		comments:       comments,
		changes:        changes,
		subscriptions:  subscriptions,
		commentTimeout: 30 * time.Second,
	}
}

// GenerateMonthlyReport 生成指定群组指定年月的报告快照
// 聚合与落库在同一个事务内完成，任何硬性失败整体回滚；
// AI评语为尽力而为，失败只记录警告并以无评语继续。
// 同一 (groupID, yearMonth) 的重复生成会整体覆盖已有快照。
func (s *MonthlyReportService) GenerateMonthlyReport(ctx context.Context, group *models.Group, yearMonth string) (*models.MonthlyReport, error) {
	monthStart, err := ParseYearMonth(yearMonth)
	if err != nil {
		return nil, err
	}
	monthEnd := monthStart.AddDate(0, 1, 0) // 左闭右开

	var result *models.MonthlyReport

	txErr := s.store.Transaction(func(tx ReportStore) error {
		// 行锁确认既有快照，串行化同键并发生成
		existing, err := tx.FindByGroupAndMonthForUpdate(group.ID, yearMonth)
		if err != nil {
			return err
		}

		members, err := tx.GetGroupMembers(group.ID)
		if err != nil {
			return err
		}

		memberSummary, err := s.buildMemberTaskSummary(tx, members, monthStart, monthEnd)
		if err != nil {
			return err
		}

		details, byUser, groupCount, totalReward, err := s.buildGroupTaskSummary(tx, members, monthStart, monthEnd)
		if err != nil {
			return err
		}

		previous, err := s.getPreviousMonthData(tx, group.ID, monthStart)
		if err != nil {
			return err
		}

		report := &models.MonthlyReport{
			ID:                           utils.GenerateID(),
			GroupID:                      group.ID,
			ReportMonth:                  yearMonth,
			GeneratedAt:                  time.Now(),
			MemberTaskSummary:            memberSummary,
			GroupTaskCompletedCount:      groupCount,
			GroupTaskTotalReward:         totalReward,
			GroupTaskDetails:             details,
			GroupTaskSummary:             byUser,
			NormalTaskCountPreviousMonth: previous.normalCount,
			GroupTaskCountPreviousMonth:  previous.groupCount,
			RewardPreviousMonth:          previous.reward,
		}

		// AI评语生成（失败不影响报告落库）
		s.attachAIComment(ctx, report, group, previous.report)

		if existing != nil {
			report.ID = existing.ID
			if err := tx.Update(report); err != nil {
				return err
			}
		} else {
			if err := tx.Create(report); err != nil {
				return err
			}
		}

		result = report
		return nil
	})

	if txErr != nil {
		config.Logger.Errorw("月度报告生成失败",
			"groupID", group.ID,
			"yearMonth", yearMonth,
			"error", txErr,
		)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, txErr)
	}

	config.Logger.Infow("月度报告生成完成",
		"groupID", group.ID,
		"yearMonth", yearMonth,
		"reportID", result.ID,
	)
	return result, nil
}

// buildMemberTaskSummary 按成员汇总普通任务完成情况（0件的成员也保留）
func (s *MonthlyReportService) buildMemberTaskSummary(tx ReportStore, members []models.User, start, end time.Time) ([]models.MemberTaskSummary, error) {
	summary := make([]models.MemberTaskSummary, 0, len(members))

	for _, member := range members {
		tasks, err := tx.GetCompletedNormalTasks(member.ID, start, end)
		if err != nil {
			return nil, err
		}

		items := make([]models.MemberTaskItem, 0, len(tasks))
		for _, task := range tasks {
			items = append(items, models.MemberTaskItem{
				TaskID:      task.ID,
				Title:       task.Title,
				CompletedAt: *task.CompletedAt,
			})
		}

		summary = append(summary, models.MemberTaskSummary{
			UserID:         member.ID,
			UserName:       member.GetDisplayName(),
			CompletedCount: len(tasks),
			Tasks:          items,
		})
	}

	return summary, nil
}

// buildGroupTaskSummary 汇总群组任务：明细列表、按成员汇总、总件数、总报酬
// 按成员汇总时当月无记录的成员会被省略。
func (s *MonthlyReportService) buildGroupTaskSummary(tx ReportStore, members []models.User, start, end time.Time) ([]models.GroupTaskDetail, []models.GroupTaskUserSummary, int, int, error) {
	memberIDs := make([]string, 0, len(members))
	names := make(map[string]string, len(members))
	for _, member := range members {
		memberIDs = append(memberIDs, member.ID)
		names[member.ID] = member.GetDisplayName()
	}

	tasks, err := tx.GetCompletedGroupTasks(memberIDs, start, end)
	if err != nil {
		return nil, nil, 0, 0, err
	}

	totalReward := 0
	details := make([]models.GroupTaskDetail, 0, len(tasks))
	perUser := make(map[string][]models.Task)

	for _, task := range tasks {
		totalReward += task.Reward
		userName, ok := names[task.UserID]
		if !ok {
			userName = "Unknown"
		}
		details = append(details, models.GroupTaskDetail{
			TaskID:      task.ID,
			Title:       task.Title,
			UserID:      task.UserID,
			UserName:    userName,
			Reward:      task.Reward,
			CompletedAt: *task.CompletedAt,
			Tags:        task.TagNames(),
		})
		perUser[task.UserID] = append(perUser[task.UserID], task)
	}

	byUser := make([]models.GroupTaskUserSummary, 0, len(members))
	for _, member := range members {
		userTasks := perUser[member.ID]
		if len(userTasks) == 0 {
			continue
		}

		reward := 0
		items := make([]models.GroupTaskUserItem, 0, len(userTasks))
		for _, task := range userTasks {
			reward += task.Reward
			items = append(items, models.GroupTaskUserItem{
				Title:       task.Title,
				Reward:      task.Reward,
				CompletedAt: *task.CompletedAt,
				Tags:        task.TagNames(),
			})
		}

		byUser = append(byUser, models.GroupTaskUserSummary{
			UserID:         member.ID,
			UserName:       names[member.ID],
			CompletedCount: len(userTasks),
			Reward:         reward,
			Tasks:          items,
		})
	}

	return details, byUser, len(tasks), totalReward, nil
}

type previousMonthData struct {
	normalCount int
	groupCount  int
	reward      int
	report      *models.MonthlyReport
}

// getPreviousMonthData 读取前月快照作为对比基准，不存在时基准全0
func (s *MonthlyReportService) getPreviousMonthData(tx ReportStore, groupID string, monthStart time.Time) (*previousMonthData, error) {
	previousMonth := monthStart.AddDate(0, -1, 0).Format("2006-01")

	previous, err := tx.FindByGroupAndMonth(groupID, previousMonth)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return &previousMonthData{}, nil
	}

	return &previousMonthData{
		normalCount: previous.TotalNormalTaskCount(),
		groupCount:  previous.GroupTaskCompletedCount,
		reward:      previous.GroupTaskTotalReward,
		report:      previous,
	}, nil
}

// attachAIComment 调用AI评语生成并写入报告，失败时降级为无评语
func (s *MonthlyReportService) attachAIComment(ctx context.Context, report *models.MonthlyReport, group *models.Group, previous *models.MonthlyReport) {
	changes := s.detectMemberChanges(report, previous)

	cctx, cancel := context.WithTimeout(ctx, s.commentTimeout)
	defer cancel()

	comment, tokens, err := s.comments.GenerateMonthlyReportComment(cctx, report, group, changes)
	if err != nil {
		config.Logger.Warnw("AI评语生成失败，继续生成无评语的报告",
			"groupID", group.ID,
			"yearMonth", report.ReportMonth,
			"error", err,
		)
		report.AIComment = nil
		report.AICommentTokensUsed = 0
		return
	}

	report.AIComment = &comment
	report.AICommentTokensUsed = tokens
}

// detectMemberChanges 对比当月与前月快照中各成员的任务总量（普通+群组）
func (s *MonthlyReportService) detectMemberChanges(report *models.MonthlyReport, previous *models.MonthlyReport) []MemberChange {
	current := make(map[string]int)
	names := make(map[string]string)

	for _, summary := range report.MemberTaskSummary {
		current[summary.UserID] += summary.CompletedCount
		names[summary.UserID] = summary.UserName
	}
	for _, summary := range report.GroupTaskSummary {
		current[summary.UserID] += summary.CompletedCount
		if names[summary.UserID] == "" {
			names[summary.UserID] = summary.UserName
		}
	}

	previousTotals := make(map[string]int)
	if previous != nil {
		for _, summary := range previous.MemberTaskSummary {
			previousTotals[summary.UserID] += summary.CompletedCount
			if names[summary.UserID] == "" {
				names[summary.UserID] = summary.UserName
			}
		}
		for _, summary := range previous.GroupTaskSummary {
			previousTotals[summary.UserID] += summary.CompletedCount
			if names[summary.UserID] == "" {
				names[summary.UserID] = summary.UserName
			}
		}
	}

	return s.changes.Detect(current, previousTotals, names)
}

// GenerateReportsForAllGroups 为所有群组生成指定年月的报告
// 逐组顺序处理，单组失败不影响后续，结果以汇总形式返回，永不抛错。
// yearMonth为空时默认生成上个月。
func (s *MonthlyReportService) GenerateReportsForAllGroups(ctx context.Context, yearMonth string) *BatchResult {
	if yearMonth == "" {
		now := time.Now()
		yearMonth = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0).Format("2006-01")
	}

	result := &BatchResult{YearMonth: yearMonth, Errors: []BatchError{}}

	groups, err := s.store.GetAllGroups()
	if err != nil {
		config.Logger.Errorw("批量生成失败：无法获取群组列表", "error", err)
		result.Errors = append(result.Errors, BatchError{Error: err.Error()})
		return result
	}

	for i := range groups {
		group := &groups[i]
		if _, err := s.GenerateMonthlyReport(ctx, group, yearMonth); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, BatchError{
				GroupID:   group.ID,
				GroupName: group.Name,
				Error:     err.Error(),
			})
			continue
		}
		result.SuccessCount++
	}

	config.Logger.Infow("批量报告生成完成",
		"yearMonth", yearMonth,
		"total", len(groups),
		"success", result.SuccessCount,
		"failed", result.FailedCount,
	)
	return result
}

// CleanupOldReports 删除一年前的报告快照，返回删除条数
func (s *MonthlyReportService) CleanupOldReports() (int64, error) {
	cutoff := time.Now().AddDate(-1, 0, 0)

	deleted, err := s.store.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, err
	}

	config.Logger.Infow("过期报告清理完成",
		"deleted", deleted,
		"olderThan", cutoff.Format("2006-01-02"),
	)
	return deleted, nil
}

// GetMonthlyReport 读取指定年月的报告快照，不存在时返回ErrNotFound
func (s *MonthlyReportService) GetMonthlyReport(groupID, yearMonth string) (*models.MonthlyReport, error) {
	if _, err := ParseYearMonth(yearMonth); err != nil {
		return nil, err
	}

	report, err := s.store.FindByGroupAndMonth(groupID, yearMonth)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%w: 报告 %s/%s", ErrNotFound, groupID, yearMonth)
	}
	return report, nil
}

// GetReportsForGroup 获取群组的报告列表（按月份倒序），limit<=0表示不限制
func (s *MonthlyReportService) GetReportsForGroup(groupID string, limit int) ([]models.MonthlyReport, error) {
	return s.store.GetByGroup(groupID, limit)
}

// CanAccessReport 读取侧的访问判定，委托订阅服务
func (s *MonthlyReportService) CanAccessReport(group *models.Group, yearMonth string) (bool, error) {
	return s.subscriptions.CanAccessMonthlyReport(group, yearMonth)
}

// FormatReportForDisplay 将快照整形为展示用结构
// 前月基准为0时变化率显示为0，不报错。
func (s *MonthlyReportService) FormatReportForDisplay(report *models.MonthlyReport) *models.MonthlyReportView {
	totalNormal := report.TotalNormalTaskCount()

	comment := ""
	if report.AIComment != nil {
		comment = *report.AIComment
	}

	return &models.MonthlyReportView{
		ReportID:    report.ID,
		ReportMonth: report.ReportMonth,
		GeneratedAt: report.GeneratedAt.Format("2006-01-02 15:04"),
		AIComment:   comment,
		NormalTasks: models.MetricSummary{
			Count:            totalNormal,
			ChangePercentage: changePercentage(totalNormal, report.NormalTaskCountPreviousMonth),
		},
		GroupTasks: models.MetricSummary{
			Count:            report.GroupTaskCompletedCount,
			ChangePercentage: changePercentage(report.GroupTaskCompletedCount, report.GroupTaskCountPreviousMonth),
		},
		Rewards: models.MetricSummary{
			Count:            report.GroupTaskTotalReward,
			ChangePercentage: changePercentage(report.GroupTaskTotalReward, report.RewardPreviousMonth),
		},
		MemberDetails:    report.MemberTaskSummary,
		GroupTaskDetails: report.GroupTaskDetails,
		GroupTaskSummary: report.GroupTaskSummary,
	}
}

// GetAvailableMonths 生成可选月份列表（最近limit个月，群组创建月之前的月份跳过）
func (s *MonthlyReportService) GetAvailableMonths(group *models.Group, limit int) ([]models.MonthOption, error) {
	if limit <= 0 {
		limit = 12
	}

	reports, err := s.store.GetByGroup(group.ID, limit)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(reports))
	for _, report := range reports {
		existing[report.ReportMonth] = true
	}

	now := time.Now()
	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	createdMonth := time.Date(group.CreatedAt.Year(), group.CreatedAt.Month(), 1, 0, 0, 0, 0, group.CreatedAt.Location())

	months := []models.MonthOption{}
	for i := 0; i < limit; i++ {
		target := currentMonth.AddDate(0, -i, 0)
		if target.Before(createdMonth) {
			continue
		}

		yearMonth := target.Format("2006-01")
		accessible, err := s.subscriptions.CanAccessMonthlyReport(group, yearMonth)
		if err != nil {
			return nil, err
		}

		months = append(months, models.MonthOption{
			YearMonth:    yearMonth,
			Label:        fmt.Sprintf("%d年%d月", target.Year(), int(target.Month())),
			HasReport:    existing[yearMonth],
			IsAccessible: accessible,
		})
	}

	return months, nil
}

// changePercentage 前月比变化率（保留1位小数），基准为0时返回0
func changePercentage(current, previous int) float64 {
	if previous <= 0 {
		return 0
	}
	return math.Round(float64(current-previous)/float64(previous)*1000) / 10
}
