package services

import (
	"fmt"
	"time"
)

// ReportRepository 实绩数据查询接口
// 五个查询均返回 ISO日期(YYYY-MM-DD) -> 数值 的映射，缺失日期视为0。
type ReportRepository interface {
	GetNormalCompletedCountsByDate(userID string, start, end time.Time) (map[string]int, error)
	GetNormalIncompleteCountsByDueDate(userID string, start, end time.Time) (map[string]int, error)
	GetGroupCompletedCountsByDate(userID string, start, end time.Time) (map[string]int, error)
	GetGroupIncompleteCountsByDueDate(userID string, start, end time.Time) (map[string]int, error)
	GetGroupRewardByDate(userID string, start, end time.Time) (map[string]int, error)
}

// PeriodInfo 期间信息（前端翻页用）
type PeriodInfo struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	DisplayText string `json:"displayText"`
	CanPrevious bool   `json:"canGoPrevious"`
	CanNext     bool   `json:"canGoNext"`
}

// PerformanceData 图表用实绩数据
// 8组平行序列：普通任务完成/未完成/累计，群组任务完成/未完成/累计，群组报酬/报酬累计。
type PerformanceData struct {
	Labels     []string    `json:"labels"`
	NDone      []int       `json:"nDone"`
	NTodo      []int       `json:"nTodo"`
	NCum       []int       `json:"nCum"`
	GDone      []int       `json:"gDone"`
	GTodo      []int       `json:"gTodo"`
	GCum       []int       `json:"gCum"`
	GReward    []int       `json:"gReward"`
	GRewardCum []int       `json:"gRewardCum"`
	PeriodInfo *PeriodInfo `json:"periodInfo,omitempty"`
}

// PerformanceService 实绩聚合服务
// 将按日查询到的原始计数整形为日粒度或周粒度（ISO周，周一起始）的序列。
type PerformanceService struct {
	repo ReportRepository
}

func NewPerformanceService(repo ReportRepository) *PerformanceService {
	return &PerformanceService{repo: repo}
}

// periodMaps 五个查询结果的合并容器
type periodMaps struct {
	nCompleted  map[string]int
	nIncomplete map[string]int
	gCompleted  map[string]int
	gIncomplete map[string]int
	gReward     map[string]int
}

// AggregateByDays 日粒度聚合，区间为[start, end]（含两端）
// 多个用户时逐日按键合并求和。累计序列在整个区间内不重置。
func (s *PerformanceService) AggregateByDays(userIDs []string, start, end time.Time) (*PerformanceData, error) {
	if err := validateRange(userIDs, start, end); err != nil {
		return nil, err
	}

	maps, err := s.fetchMergedMaps(userIDs, start, end)
	if err != nil {
		return nil, err
	}

	data := newPerformanceData()
	nAcc, gAcc, rAcc := 0, 0, 0

	for d := dateOnly(start); !d.After(dateOnly(end)); d = d.AddDate(0, 0, 1) {
		dateKey := d.Format("2006-01-02")
		data.Labels = append(data.Labels, fmt.Sprintf("%d/%d", int(d.Month()), d.Day()))

		nDone := maps.nCompleted[dateKey]
		nTodo := maps.nIncomplete[dateKey]
		gDone := maps.gCompleted[dateKey]
		gTodo := maps.gIncomplete[dateKey]
		gReward := maps.gReward[dateKey]

		nAcc += nDone
		gAcc += gDone
		rAcc += gReward

		data.appendBucket(nDone, nTodo, nAcc, gDone, gTodo, gAcc, gReward, rAcc)
	}

	return data, nil
}

// AggregateByWeeks 周粒度聚合（ISO周，周一起始）
// 首周起点向前对齐到周一，末周终点若越过end则截断到end。
func (s *PerformanceService) AggregateByWeeks(userIDs []string, start, end time.Time) (*PerformanceData, error) {
	if err := validateRange(userIDs, start, end); err != nil {
		return nil, err
	}

	data := newPerformanceData()
	nAcc, gAcc, rAcc := 0, 0, 0

	endDay := dateOnly(end)
	for wStart := startOfWeek(start); !wStart.After(endDay); wStart = wStart.AddDate(0, 0, 7) {
		wEnd := wStart.AddDate(0, 0, 6)
		if wEnd.After(endDay) {
			wEnd = endDay
		}
		data.Labels = append(data.Labels, fmt.Sprintf("%d/%d–%d/%d",
			int(wStart.Month()), wStart.Day(), int(wEnd.Month()), wEnd.Day()))

		maps, err := s.fetchMergedMaps(userIDs, wStart, wEnd)
		if err != nil {
			return nil, err
		}

		nDone := sumValues(maps.nCompleted)
		nTodo := sumValues(maps.nIncomplete)
		gDone := sumValues(maps.gCompleted)
		gTodo := sumValues(maps.gIncomplete)
		gReward := sumValues(maps.gReward)

		nAcc += nDone
		gAcc += gDone
		rAcc += gReward

		data.appendBucket(nDone, nTodo, nAcc, gDone, gTodo, gAcc, gReward, rAcc)
	}

	return data, nil
}

// WeeklyWithOffset 按周偏移获取单用户周实绩（0为本周，-1为上周）
func (s *PerformanceService) WeeklyWithOffset(userID string, offset int) (*PerformanceData, error) {
	return s.weeklyForUsersWithOffset([]string{userID}, offset)
}

// WeeklyForGroupWithOffset 按周偏移获取群组周实绩
func (s *PerformanceService) WeeklyForGroupWithOffset(userIDs []string, offset int) (*PerformanceData, error) {
	return s.weeklyForUsersWithOffset(userIDs, offset)
}

func (s *PerformanceService) weeklyForUsersWithOffset(userIDs []string, offset int) (*PerformanceData, error) {
	start := startOfWeek(time.Now()).AddDate(0, 0, offset*7)
	end := start.AddDate(0, 0, 6)

	data, err := s.AggregateByDays(userIDs, start, end)
	if err != nil {
		return nil, err
	}

	weekOfMonth := (start.Day()-1)/7 + 1
	data.PeriodInfo = &PeriodInfo{
		Start:       start.Format("2006-01-02"),
		End:         end.Format("2006-01-02"),
		DisplayText: fmt.Sprintf("%d年%d月第%d周", start.Year(), int(start.Month()), weekOfMonth),
		CanPrevious: offset > -52,
		CanNext:     offset < 0,
	}
	return data, nil
}

// MonthlyWithOffset 按月偏移获取单用户月实绩（0为本月，-1为上月）
func (s *PerformanceService) MonthlyWithOffset(userID string, offset int) (*PerformanceData, error) {
	return s.monthlyForUsersWithOffset([]string{userID}, offset)
}

// MonthlyForGroupWithOffset 按月偏移获取群组月实绩
func (s *PerformanceService) MonthlyForGroupWithOffset(userIDs []string, offset int) (*PerformanceData, error) {
	return s.monthlyForUsersWithOffset(userIDs, offset)
}

func (s *PerformanceService) monthlyForUsersWithOffset(userIDs []string, offset int) (*PerformanceData, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, offset, 0)
	end := start.AddDate(0, 1, -1)

	data, err := s.AggregateByDays(userIDs, start, end)
	if err != nil {
		return nil, err
	}

	data.PeriodInfo = &PeriodInfo{
		Start:       start.Format("2006-01-02"),
		End:         end.Format("2006-01-02"),
		DisplayText: fmt.Sprintf("%d年%d月", start.Year(), int(start.Month())),
		CanPrevious: offset > -12,
		CanNext:     offset < 0,
	}
	return data, nil
}

// YearlyWithOffset 按年偏移获取单用户年实绩，按周分桶（0为今年，-1为去年）
func (s *PerformanceService) YearlyWithOffset(userID string, offset int) (*PerformanceData, error) {
	return s.yearlyForUsersWithOffset([]string{userID}, offset)
}

// YearlyForGroupWithOffset 按年偏移获取群组年实绩
func (s *PerformanceService) YearlyForGroupWithOffset(userIDs []string, offset int) (*PerformanceData, error) {
	return s.yearlyForUsersWithOffset(userIDs, offset)
}

func (s *PerformanceService) yearlyForUsersWithOffset(userIDs []string, offset int) (*PerformanceData, error) {
	now := time.Now()
	start := time.Date(now.Year()+offset, 1, 1, 0, 0, 0, 0, now.Location())
	end := time.Date(start.Year(), 12, 31, 0, 0, 0, 0, now.Location())

	data, err := s.AggregateByWeeks(userIDs, start, end)
	if err != nil {
		return nil, err
	}

	data.PeriodInfo = &PeriodInfo{
		Start:       start.Format("2006-01-02"),
		End:         end.Format("2006-01-02"),
		DisplayText: fmt.Sprintf("%d年", start.Year()),
		CanPrevious: offset > -5,
		CanNext:     offset < 0,
	}
	return data, nil
}

// fetchMergedMaps 查询所有用户的五类计数并按键合并求和
func (s *PerformanceService) fetchMergedMaps(userIDs []string, start, end time.Time) (*periodMaps, error) {
	maps := &periodMaps{
		nCompleted:  make(map[string]int),
		nIncomplete: make(map[string]int),
		gCompleted:  make(map[string]int),
		gIncomplete: make(map[string]int),
		gReward:     make(map[string]int),
	}

	for _, userID := range userIDs {
		queries := []struct {
			dst   map[string]int
			fetch func(string, time.Time, time.Time) (map[string]int, error)
		}{
			{maps.nCompleted, s.repo.GetNormalCompletedCountsByDate},
			{maps.nIncomplete, s.repo.GetNormalIncompleteCountsByDueDate},
			{maps.gCompleted, s.repo.GetGroupCompletedCountsByDate},
			{maps.gIncomplete, s.repo.GetGroupIncompleteCountsByDueDate},
			{maps.gReward, s.repo.GetGroupRewardByDate},
		}
		for _, q := range queries {
			m, err := q.fetch(userID, start, end)
			if err != nil {
				return nil, err
			}
			mergeCountMaps(q.dst, m)
		}
	}

	return maps, nil
}

func validateRange(userIDs []string, start, end time.Time) error {
	if len(userIDs) == 0 {
		return fmt.Errorf("%w: 用户列表为空", ErrInvalidPeriod)
	}
	if start.After(end) {
		return fmt.Errorf("%w: 起始日期晚于结束日期", ErrInvalidPeriod)
	}
	return nil
}

func newPerformanceData() *PerformanceData {
	return &PerformanceData{
		Labels:     []string{},
		NDone:      []int{},
		NTodo:      []int{},
		NCum:       []int{},
		GDone:      []int{},
		GTodo:      []int{},
		GCum:       []int{},
		GReward:    []int{},
		GRewardCum: []int{},
	}
}

func (d *PerformanceData) appendBucket(nDone, nTodo, nCum, gDone, gTodo, gCum, gReward, gRewardCum int) {
	d.NDone = append(d.NDone, nDone)
	d.NTodo = append(d.NTodo, nTodo)
	d.NCum = append(d.NCum, nCum)
	d.GDone = append(d.GDone, gDone)
	d.GTodo = append(d.GTodo, gTodo)
	d.GCum = append(d.GCum, gCum)
	d.GReward = append(d.GReward, gReward)
	d.GRewardCum = append(d.GRewardCum, gRewardCum)
}

// mergeCountMaps 将src按键累加进dst
func mergeCountMaps(dst, src map[string]int) {
	for key, value := range src {
		dst[key] += value
	}
}

func sumValues(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

// startOfWeek 返回所在ISO周的周一（去掉时分秒）
func startOfWeek(t time.Time) time.Time {
	d := dateOnly(t)
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7 // 周日视为第7天
	}
	return d.AddDate(0, 0, -(weekday - 1))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
