package services

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/ktr1133/MyTeacherApp-sub003/config"
	"github.com/ktr1133/MyTeacherApp-sub003/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	config.Logger = zap.NewNop().Sugar()
	os.Exit(m.Run())
}

// mockReportStore 内存版报告存储，事务通过快照回滚模拟
type mockReportStore struct {
	reports     map[string]*models.MonthlyReport // groupID|month -> report
	groups      []models.Group
	members     map[string][]models.User // groupID -> members
	normalTasks map[string][]models.Task // userID -> tasks
	groupTasks  map[string][]models.Task // userID -> tasks

	createErr     error
	membersErrFor string
	createCalls   int
	updateCalls   int
	deleteCutoff  time.Time
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{
		reports:     map[string]*models.MonthlyReport{},
		members:     map[string][]models.User{},
		normalTasks: map[string][]models.Task{},
		groupTasks:  map[string][]models.Task{},
	}
}

func reportKey(groupID, yearMonth string) string {
	return groupID + "|" + yearMonth
}

func (m *mockReportStore) FindByGroupAndMonth(groupID, yearMonth string) (*models.MonthlyReport, error) {
	if r, ok := m.reports[reportKey(groupID, yearMonth)]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (m *mockReportStore) FindByGroupAndMonthForUpdate(groupID, yearMonth string) (*models.MonthlyReport, error) {
	return m.FindByGroupAndMonth(groupID, yearMonth)
}

func (m *mockReportStore) Create(report *models.MonthlyReport) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.createCalls++
	copied := *report
	m.reports[reportKey(report.GroupID, report.ReportMonth)] = &copied
	return nil
}

func (m *mockReportStore) Update(report *models.MonthlyReport) error {
	m.updateCalls++
	copied := *report
	m.reports[reportKey(report.GroupID, report.ReportMonth)] = &copied
	return nil
}

func (m *mockReportStore) GetByGroup(groupID string, limit int) ([]models.MonthlyReport, error) {
	out := []models.MonthlyReport{}
	for _, r := range m.reports {
		if r.GroupID == groupID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportMonth > out[j].ReportMonth })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockReportStore) GetAllGroups() ([]models.Group, error) {
	return m.groups, nil
}

func (m *mockReportStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	m.deleteCutoff = cutoff
	limit := cutoff.Format("2006-01")
	var deleted int64
	for key, r := range m.reports {
		if r.ReportMonth < limit {
			delete(m.reports, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockReportStore) GetGroupMembers(groupID string) ([]models.User, error) {
	if m.membersErrFor == groupID {
		return nil, errors.New("成员查询失败")
	}
	return m.members[groupID], nil
}

func inWindow(t *time.Time, start, end time.Time) bool {
	return t != nil && !t.Before(start) && t.Before(end)
}

func (m *mockReportStore) GetCompletedNormalTasks(userID string, start, end time.Time) ([]models.Task, error) {
	out := []models.Task{}
	for _, task := range m.normalTasks[userID] {
		if inWindow(task.CompletedAt, start, end) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (m *mockReportStore) GetCompletedGroupTasks(userIDs []string, start, end time.Time) ([]models.Task, error) {
	out := []models.Task{}
	for _, userID := range userIDs {
		for _, task := range m.groupTasks[userID] {
			if inWindow(task.CompletedAt, start, end) {
				out = append(out, task)
			}
		}
	}
	return out, nil
}

func (m *mockReportStore) Transaction(fn func(tx ReportStore) error) error {
	// 快照回滚，模拟事务语义
	snapshot := make(map[string]*models.MonthlyReport, len(m.reports))
	for k, v := range m.reports {
		copied := *v
		snapshot[k] = &copied
	}
	if err := fn(m); err != nil {
		m.reports = snapshot
		return err
	}
	return nil
}

// mockCommentGenerator 记录调用参数的AI评语替身
type mockCommentGenerator struct {
	comment    string
	tokens     int
	err        error
	calls      int
	gotChanges []MemberChange
}

func (m *mockCommentGenerator) GenerateMonthlyReportComment(ctx context.Context, report *models.MonthlyReport, group *models.Group, changes []MemberChange) (string, int, error) {
	m.calls++
	m.gotChanges = changes
	if m.err != nil {
		return "", 0, m.err
	}
	return m.comment, m.tokens, nil
}

func newTestReportService(store ReportStore, comments CommentGenerator) *MonthlyReportService {
	return NewMonthlyReportService(store, comments, NewChangeService(DefaultChangeThreshold), NewSubscriptionService())
}

func testGroup() *models.Group {
	return &models.Group{
		ID:                 "g1",
		Name:               "一年一组",
		SubscriptionActive: true,
		CreatedAt:          time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		AudienceTheme:      "child",
	}
}

func normalTask(id, title, userID string, completedAt time.Time) models.Task {
	return models.Task{ID: id, Title: title, UserID: userID, IsCompleted: true, CompletedAt: &completedAt}
}

func groupTask(id, title, userID string, reward int, completedAt time.Time) models.Task {
	gid := "gt-" + id
	return models.Task{ID: id, Title: title, UserID: userID, Reward: reward, IsCompleted: true, CompletedAt: &completedAt, GroupTaskID: &gid}
}

// TestGenerateMonthlyReport_Basic 成员A完成5件、成员B完成0件时两人都出现在汇总中
func TestGenerateMonthlyReport_Basic(t *testing.T) {
	store := newMockReportStore()
	store.members["g1"] = []models.User{
		{ID: "uA", Username: "小明"},
		{ID: "uB", Username: "小红"},
	}
	for i := 0; i < 5; i++ {
		store.normalTasks["uA"] = append(store.normalTasks["uA"],
			normalTask(string(rune('a'+i)), "数学作业", "uA", time.Date(2025, 11, 3+i, 10, 0, 0, 0, time.UTC)))
	}
	ai := &mockCommentGenerator{comment: "大家这个月都很努力！", tokens: 42}
	service := newTestReportService(store, ai)

	report, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")

	require.NoError(t, err)
	require.Len(t, report.MemberTaskSummary, 2)
	assert.Equal(t, "uA", report.MemberTaskSummary[0].UserID)
	assert.Equal(t, "小明", report.MemberTaskSummary[0].UserName)
	assert.Equal(t, 5, report.MemberTaskSummary[0].CompletedCount)
	assert.Len(t, report.MemberTaskSummary[0].Tasks, 5)
	assert.Equal(t, "uB", report.MemberTaskSummary[1].UserID)
	assert.Equal(t, 0, report.MemberTaskSummary[1].CompletedCount)
	assert.Empty(t, report.MemberTaskSummary[1].Tasks)

	require.NotNil(t, report.AIComment)
	assert.Equal(t, "大家这个月都很努力！", *report.AIComment)
	assert.Equal(t, 42, report.AICommentTokensUsed)

	// 快照已落库
	stored, err := store.FindByGroupAndMonth("g1", "2025-11")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, report.ID, stored.ID)
}

// TestGenerateMonthlyReport_WindowBoundary 区间为左闭右开，次月1日0点的完成不计入
func TestGenerateMonthlyReport_WindowBoundary(t *testing.T) {
	store := newMockReportStore()
	store.members["g1"] = []models.User{{ID: "uA", Username: "小明"}}
	store.normalTasks["uA"] = []models.Task{
		normalTask("t1", "月初任务", "uA", time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)),
		normalTask("t2", "月末任务", "uA", time.Date(2025, 11, 30, 23, 59, 59, 0, time.UTC)),
		normalTask("t3", "次月任务", "uA", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)),
	}
	service := newTestReportService(store, &mockCommentGenerator{})

	report, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")

	require.NoError(t, err)
	assert.Equal(t, 2, report.MemberTaskSummary[0].CompletedCount)
}

// TestGenerateMonthlyReport_GroupTasks 群组任务的明细、按成员汇总与合计
func TestGenerateMonthlyReport_GroupTasks(t *testing.T) {
	store := newMockReportStore()
	store.members["g1"] = []models.User{
		{ID: "uA", Username: "小明"},
		{ID: "uB", Username: "小红"},
	}
	store.groupTasks["uA"] = []models.Task{
		groupTask("t1", "打扫教室", "uA", 100, time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)),
		groupTask("t2", "浇花", "uA", 50, time.Date(2025, 11, 8, 15, 0, 0, 0, time.UTC)),
	}
	service := newTestReportService(store, &mockCommentGenerator{})

	report, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")

	require.NoError(t, err)
	assert.Equal(t, 2, report.GroupTaskCompletedCount)
	assert.Equal(t, 150, report.GroupTaskTotalReward)
	assert.Len(t, report.GroupTaskDetails, 2)

	// 0件的成员不出现在按成员汇总中
	require.Len(t, report.GroupTaskSummary, 1)
	assert.Equal(t, "uA", report.GroupTaskSummary[0].UserID)
	assert.Equal(t, 2, report.GroupTaskSummary[0].CompletedCount)
	assert.Equal(t, 150, report.GroupTaskSummary[0].Reward)
}

// TestGenerateMonthlyReport_Idempotent 同键重复生成整体覆盖，记录数不增加且ID保持
func TestGenerateMonthlyReport_Idempotent(t *testing.T) {
	store := newMockReportStore()
	store.members["g1"] = []models.User{{ID: "uA", Username: "小明"}}
	store.normalTasks["uA"] = []models.Task{
		normalTask("t1", "作业", "uA", time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)),
	}
	service := newTestReportService(store, &mockCommentGenerator{})

	first, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")
	require.NoError(t, err)

	// 再生成前追加一件任务，确认覆盖后内容更新
	store.normalTasks["uA"] = append(store.normalTasks["uA"],
		normalTask("t2", "作业2", "uA", time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC)))

	second, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.MemberTaskSummary[0].CompletedCount)
	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, 1, store.updateCalls)

	reports, err := store.GetByGroup("g1", 0)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

// TestGenerateMonthlyReport_ZeroBaseline 前月快照不存在时对比基准全0
func TestGenerateMonthlyReport_ZeroBaseline(t *testing.T) {
	store := newMockReportStore()
	store.members["g1"] = []models.User{{ID: "uA", Username: "小明"}}
	service := newTestReportService(store, &mockCommentGenerator{})

	report, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")

	require.NoError(t, err)
	assert.Equal(t, 0, report.NormalTaskCountPreviousMonth)
	assert.Equal(t, 0, report.GroupTaskCountPreviousMonth)
	assert.Equal(t, 0, report.RewardPreviousMonth)
}

// TestGenerateMonthlyReport_PreviousBaseline 前月快照存在时基准来自快照
func TestGenerateMonthlyReport_PreviousBaseline(t *testing.T) {
	store := newMockReportStore()
	store.members["g1"] = []models.User{{ID: "uA", Username: "小明"}}
	store.reports[reportKey("g1", "2025-10")] = &models.MonthlyReport{
		ID: "prev", GroupID: "g1", ReportMonth: "2025-10",
		MemberTaskSummary: []models.MemberTaskSummary{
			{UserID: "uA", UserName: "小明", CompletedCount: 2},
		},
		GroupTaskCompletedCount: 3,
		GroupTaskTotalReward:    200,
	}
	for i := 0; i < 5; i++ {
		store.normalTasks["uA"] = append(store.normalTasks["uA"],
			normalTask(string(rune('a'+i)), "作业", "uA", time.Date(2025, 11, 3+i, 10, 0, 0, 0, time.UTC)))
	}
	ai := &mockCommentGenerator{comment: "进步很大"}
	service := newTestReportService(store, ai)

	report, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")

	require.NoError(t, err)
	assert.Equal(t, 2, report.NormalTaskCountPreviousMonth)
	assert.Equal(t, 3, report.GroupTaskCountPreviousMonth)
	assert.Equal(t, 200, report.RewardPreviousMonth)

	// 变化检出传入了AI：uA从2到5为+150%
	require.Len(t, ai.gotChanges, 1)
	assert.Equal(t, "uA", ai.gotChanges[0].UserID)
	assert.Equal(t, ChangeTypeIncrease, ai.gotChanges[0].Type)
	assert.Equal(t, 150, ai.gotChanges[0].ChangePercentage)
}

// TestGenerateMonthlyReport_AIFailure AI失败降级为无评语，报告照常落库
func TestGenerateMonthlyReport_AIFailure(t *testing.T) {
	store := newMockReportStore()
	store.members["g1"] = []models.User{{ID: "uA", Username: "小明"}}
	ai := &mockCommentGenerator{err: errors.New("接口超时")}
	service := newTestReportService(store, ai)

	report, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")

	require.NoError(t, err)
	assert.Nil(t, report.AIComment)
	assert.Equal(t, 0, report.AICommentTokensUsed)

	stored, _ := store.FindByGroupAndMonth("g1", "2025-11")
	require.NotNil(t, stored)
}

// TestGenerateMonthlyReport_StoreFailure 落库失败时返回生成错误且整体回滚
func TestGenerateMonthlyReport_StoreFailure(t *testing.T) {
	store := newMockReportStore()
	store.members["g1"] = []models.User{{ID: "uA", Username: "小明"}}
	store.createErr = errors.New("db write failed")
	service := newTestReportService(store, &mockCommentGenerator{})

	_, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-11")

	assert.ErrorIs(t, err, ErrGenerationFailed)
	reports, _ := store.GetByGroup("g1", 0)
	assert.Empty(t, reports)
}

// TestGenerateMonthlyReport_InvalidMonth 非法年月返回期间错误
func TestGenerateMonthlyReport_InvalidMonth(t *testing.T) {
	service := newTestReportService(newMockReportStore(), &mockCommentGenerator{})

	_, err := service.GenerateMonthlyReport(context.Background(), testGroup(), "2025-13")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

// TestGenerateReportsForAllGroups_IsolatesFailures 单组失败不影响其余群组
func TestGenerateReportsForAllGroups_IsolatesFailures(t *testing.T) {
	store := newMockReportStore()
	store.groups = []models.Group{
		{ID: "g1", Name: "一组"},
		{ID: "g2", Name: "二组"},
	}
	store.members["g1"] = []models.User{{ID: "uA", Username: "小明"}}
	store.membersErrFor = "g2"
	service := newTestReportService(store, &mockCommentGenerator{})

	result := service.GenerateReportsForAllGroups(context.Background(), "2025-11")

	assert.Equal(t, "2025-11", result.YearMonth)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "g2", result.Errors[0].GroupID)
	assert.Equal(t, "二组", result.Errors[0].GroupName)

	stored, _ := store.FindByGroupAndMonth("g1", "2025-11")
	assert.NotNil(t, stored)
}

// TestCleanupOldReports 删除一年前的快照
func TestCleanupOldReports(t *testing.T) {
	store := newMockReportStore()
	store.reports[reportKey("g1", "2020-01")] = &models.MonthlyReport{ID: "old", GroupID: "g1", ReportMonth: "2020-01"}
	store.reports[reportKey("g1", "2099-01")] = &models.MonthlyReport{ID: "new", GroupID: "g1", ReportMonth: "2099-01"}
	service := newTestReportService(store, &mockCommentGenerator{})

	deleted, err := service.CleanupOldReports()

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, store.reports, 1)
	// 截止线为当前时刻减1年
	assert.WithinDuration(t, time.Now().AddDate(-1, 0, 0), store.deleteCutoff, time.Minute)
}

// TestGetMonthlyReport_NotFound 不存在的快照返回ErrNotFound
func TestGetMonthlyReport_NotFound(t *testing.T) {
	service := newTestReportService(newMockReportStore(), &mockCommentGenerator{})

	_, err := service.GetMonthlyReport("g1", "2025-11")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = service.GetMonthlyReport("g1", "not-a-month")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

// TestFormatReportForDisplay 变化率保留1位小数，基准为0时显示0
func TestFormatReportForDisplay(t *testing.T) {
	service := newTestReportService(newMockReportStore(), &mockCommentGenerator{})
	comment := "表现不错"
	report := &models.MonthlyReport{
		ID:          "r1",
		ReportMonth: "2025-11",
		GeneratedAt: time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC),
		MemberTaskSummary: []models.MemberTaskSummary{
			{UserID: "uA", CompletedCount: 5},
		},
		GroupTaskCompletedCount:      13,
		GroupTaskTotalReward:         100,
		NormalTaskCountPreviousMonth: 3,
		GroupTaskCountPreviousMonth:  10,
		RewardPreviousMonth:          0,
		AIComment:                    &comment,
	}

	view := service.FormatReportForDisplay(report)

	assert.Equal(t, "2025-12-01 09:30", view.GeneratedAt)
	assert.Equal(t, "表现不错", view.AIComment)
	assert.Equal(t, 5, view.NormalTasks.Count)
	assert.InDelta(t, 66.7, view.NormalTasks.ChangePercentage, 0.001)
	assert.InDelta(t, 30.0, view.GroupTasks.ChangePercentage, 0.001)
	// 基准为0时变化率为0
	assert.Equal(t, float64(0), view.Rewards.ChangePercentage)
}

// TestGetAvailableMonths 创建月之前的月份被跳过，已有快照的月份带标记
func TestGetAvailableMonths(t *testing.T) {
	store := newMockReportStore()
	service := newTestReportService(store, &mockCommentGenerator{})

	now := time.Now()
	group := testGroup()
	group.CreatedAt = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -2, 0)

	currentYM := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
	store.reports[reportKey("g1", currentYM)] = &models.MonthlyReport{ID: "r1", GroupID: "g1", ReportMonth: currentYM}

	months, err := service.GetAvailableMonths(group, 12)

	require.NoError(t, err)
	// 创建月(-2)到当月，共3个
	require.Len(t, months, 3)
	assert.Equal(t, currentYM, months[0].YearMonth)
	assert.True(t, months[0].HasReport)
	assert.True(t, months[0].IsAccessible)
	assert.False(t, months[1].HasReport)
}
