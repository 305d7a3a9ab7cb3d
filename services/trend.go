package services

import (
	"fmt"

	"github.com/ktr1133/MyTeacherApp-sub003/models"
)

// trendPalette 趋势图固定配色（borderColor / backgroundColor 成对）
// 成员数超过配色数时循环复用。
var trendPalette = [][2]string{
	{"rgb(59, 130, 246)", "rgba(59, 130, 246, 0.5)"},   // blue
	{"rgb(16, 185, 129)", "rgba(16, 185, 129, 0.5)"},   // green
	{"rgb(251, 146, 60)", "rgba(251, 146, 60, 0.5)"},   // orange
	{"rgb(168, 85, 247)", "rgba(168, 85, 247, 0.5)"},   // purple
	{"rgb(236, 72, 153)", "rgba(236, 72, 153, 0.5)"},   // pink
	{"rgb(250, 204, 21)", "rgba(250, 204, 21, 0.5)"},   // yellow
}

// TrendMemberSeries 单个成员的趋势序列，四组指标与Labels等长
type TrendMemberSeries struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	BorderColor string `json:"border_color"`
	Background  string `json:"background_color"`

	NormalTasks []int `json:"normal_tasks"`
	GroupTasks  []int `json:"group_tasks"`
	Total       []int `json:"total"`
	Reward      []int `json:"reward"`
}

// TrendData 趋势图数据，月份升序
type TrendData struct {
	Labels  []string            `json:"labels"`
	Members []TrendMemberSeries `json:"members"`
}

// GetTrendData 读取截至referenceYearMonth的months个月快照并整形为成员维度的趋势序列
// 缺失月份对所有成员所有指标计0；成员在窗口内任一月份首次出现即加入结果，
// 顺序按首次出现顺序固定。Total在普通与群组序列填完后再计算。
func (s *MonthlyReportService) GetTrendData(group *models.Group, referenceYearMonth string, months int) (*TrendData, error) {
	base, err := ParseYearMonth(referenceYearMonth)
	if err != nil {
		return nil, err
	}
	if months <= 0 {
		months = 6
	}

	data := &TrendData{Labels: make([]string, 0, months), Members: []TrendMemberSeries{}}
	memberIndex := make(map[string]int)

	// 懒加入：成员首次出现时分配序列与配色
	admit := func(userID, name string) int {
		if idx, ok := memberIndex[userID]; ok {
			return idx
		}
		idx := len(data.Members)
		memberIndex[userID] = idx
		color := trendPalette[idx%len(trendPalette)]
		if name == "" {
			name = "Unknown"
		}
		data.Members = append(data.Members, TrendMemberSeries{
			UserID:      userID,
			Name:        name,
			BorderColor: color[0],
			Background:  color[1],
			NormalTasks: make([]int, months),
			GroupTasks:  make([]int, months),
			Total:       make([]int, months),
			Reward:      make([]int, months),
		})
		return idx
	}

	for i := months - 1; i >= 0; i-- {
		target := base.AddDate(0, -i, 0)
		slot := months - 1 - i
		data.Labels = append(data.Labels, fmt.Sprintf("%d月", int(target.Month())))

		report, err := s.store.FindByGroupAndMonth(group.ID, target.Format("2006-01"))
		if err != nil {
			return nil, err
		}
		if report == nil {
			continue // 缺失月份保持0
		}

		for _, summary := range report.MemberTaskSummary {
			idx := admit(summary.UserID, summary.UserName)
			data.Members[idx].NormalTasks[slot] = summary.CompletedCount
		}
		for _, summary := range report.GroupTaskSummary {
			idx := admit(summary.UserID, summary.UserName)
			data.Members[idx].GroupTasks[slot] = summary.CompletedCount
			data.Members[idx].Reward[slot] = summary.Reward
		}
	}

	// 两组序列填完后再合计
	for m := range data.Members {
		for i := 0; i < months; i++ {
			data.Members[m].Total[i] = data.Members[m].NormalTasks[i] + data.Members[m].GroupTasks[i]
		}
	}

	return data, nil
}
